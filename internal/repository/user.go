package repository

import (
	"context"
	"sync"

	"filehost-backend/internal/auth"
	"filehost-backend/internal/database"
)

// User is the live, process-wide unique instance behind a uid. All field
// mutations persist to the store before the in-memory value changes, so a
// failed write never leaves memory ahead of the store.
type User struct {
	repo *Repository
	uid  string

	mu           sync.RWMutex
	passwordHash string
	quotaBytes   int64
	maxFiles     int64
	isAdmin      bool
	usedBytes    int64
	fileIDs      map[string]struct{}
}

func (u *User) UID() string { return u.uid }

func (u *User) PasswordHash() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.passwordHash
}

func (u *User) QuotaBytes() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.quotaBytes
}

func (u *User) MaxFiles() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.maxFiles
}

func (u *User) IsAdmin() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.isAdmin
}

func (u *User) UsedBytes() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.usedBytes
}

func (u *User) FileCount() int64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return int64(len(u.fileIDs))
}

// FileIDs returns a copy of the owned-file set.
func (u *User) FileIDs() []string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	ids := make([]string, 0, len(u.fileIDs))
	for id := range u.fileIDs {
		ids = append(ids, id)
	}
	return ids
}

// CanStore checks an upload of the given size against the current usage
// snapshot. Concurrent uploads may race past the same check; that
// approximation is accepted, the commit protocol never re-validates.
func (u *User) CanStore(size int64) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.usedBytes+size <= u.quotaBytes && int64(len(u.fileIDs))+1 <= u.maxFiles
}

// SetPassword hashes and persists a new password. Outstanding access tokens
// carry a fingerprint of the old hash and stop verifying once this returns.
func (u *User) SetPassword(ctx context.Context, password string) error {
	if password == "" {
		return ErrInvalidPassword
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := u.repo.updateUser(ctx, u.uid, []database.Field{{Column: "password", Value: hashed}}); err != nil {
		return err
	}
	u.mu.Lock()
	u.passwordHash = hashed
	u.mu.Unlock()
	return nil
}

func (u *User) SetQuotaBytes(ctx context.Context, quota int64) error {
	if err := u.repo.updateUser(ctx, u.uid, []database.Field{{Column: "quota", Value: quota}}); err != nil {
		return err
	}
	u.mu.Lock()
	u.quotaBytes = quota
	u.mu.Unlock()
	return nil
}

func (u *User) SetMaxFiles(ctx context.Context, maxFiles int64) error {
	if err := u.repo.updateUser(ctx, u.uid, []database.Field{{Column: "max_files", Value: maxFiles}}); err != nil {
		return err
	}
	u.mu.Lock()
	u.maxFiles = maxFiles
	u.mu.Unlock()
	return nil
}

func (u *User) SetAdmin(ctx context.Context, isAdmin bool) error {
	if err := u.repo.updateUser(ctx, u.uid, []database.Field{{Column: "is_admin", Value: isAdmin}}); err != nil {
		return err
	}
	u.mu.Lock()
	u.isAdmin = isAdmin
	u.mu.Unlock()
	return nil
}

// notifyFileCreated is invoked by the commit protocol only. It is the single
// path by which usedBytes increases.
func (u *User) notifyFileCreated(fid string, size int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.fileIDs[fid] = struct{}{}
	u.usedBytes += size
}

// notifyFileDeleted is invoked by File.Delete.
func (u *User) notifyFileDeleted(fid string, size int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, owned := u.fileIDs[fid]; !owned {
		return
	}
	delete(u.fileIDs, fid)
	u.usedBytes -= size
}

// Delete removes the user and everything they own: every file first (row and
// blob, through the regular file deletion path), then the user row, then the
// cache key. A mid-cascade failure propagates, but every step is idempotent,
// so retrying the whole deletion is safe. The freed uid is immediately
// available for re-registration.
func (u *User) Delete(ctx context.Context) error {
	for _, fid := range u.FileIDs() {
		file, err := u.repo.GetFileInfo(ctx, fid)
		if err != nil {
			return err
		}
		if file == nil {
			// Already gone, e.g. from a previous partially failed cascade.
			u.notifyFileDeleted(fid, 0)
			continue
		}
		if err := file.Delete(ctx); err != nil {
			return err
		}
	}
	return u.repo.removeUser(ctx, u.uid)
}
