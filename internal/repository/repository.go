// Package repository is the single point of truth for users and files. It
// arbitrates between the in-memory object cache and the Postgres store, owns
// the upload-code registry, and runs the commit protocol that turns a staged
// upload into a permanent, quota-accounted file.
//
// The caches follow a "presence known, content lazy" scheme: the key set of
// every uid and file id is seeded by a one-time scan during Initialize, while
// the entity behind a key is only materialized on first access. A key that is
// absent from the map resolves to "not found" without touching the store.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/juju/clock"

	"filehost-backend/internal/auth"
	"filehost-backend/internal/blob"
	"filehost-backend/internal/database"
)

const fileIDLength = 21

var userNameRegex = regexp.MustCompile(`^[a-z0-9-_.]{3,50}$`)

type Repository struct {
	store   *database.PostgresStore
	blobs   *blob.LocalStore
	clock   clock.Clock
	log     *slog.Logger
	codeTTL time.Duration

	newFileID     func() string
	newUploadCode func() string

	// mu guards the three maps below for memory safety only. Two racing
	// first-time loads of the same id may both query the store; the first
	// cached instance wins and the key set is never corrupted.
	mu          sync.RWMutex
	users       map[string]*User
	files       map[string]*File
	uploadCodes map[string]uploadCode

	initialized bool
}

func New(store *database.PostgresStore, blobs *blob.LocalStore, clk clock.Clock, logger *slog.Logger, codeTTL time.Duration) *Repository {
	fileIDGen, err := nanoid.Standard(fileIDLength)
	if err != nil {
		panic(err)
	}

	return &Repository{
		store:         store,
		blobs:         blobs,
		clock:         clk,
		log:           logger,
		codeTTL:       codeTTL,
		newFileID:     fileIDGen,
		newUploadCode: newUploadCodeGenerator(),
		users:         make(map[string]*User),
		files:         make(map[string]*File),
		uploadCodes:   make(map[string]uploadCode),
	}
}

// Initialize must run exactly once before any other operation: it verifies
// the store connection, brings the schema up to date and seeds the known-key
// sets from a full id scan of both tables. Prior in-memory state is dropped.
func (r *Repository) Initialize(ctx context.Context, dsn string) error {
	r.mu.Lock()
	if r.initialized {
		r.mu.Unlock()
		return ErrAlreadyInitialized
	}
	r.initialized = true
	r.mu.Unlock()

	if err := r.store.GetPool().Ping(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	if err := database.RunMigrations(ctx, dsn); err != nil {
		return err
	}

	userIDs, err := r.store.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("scan user ids: %w", err)
	}
	fileIDs, err := r.store.ListFileIDs(ctx)
	if err != nil {
		return fmt.Errorf("scan file ids: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = make(map[string]*User, len(userIDs))
	r.files = make(map[string]*File, len(fileIDs))
	r.uploadCodes = make(map[string]uploadCode)
	for _, id := range userIDs {
		r.users[id] = nil
	}
	for _, id := range fileIDs {
		r.files[id] = nil
	}

	r.log.Info("repository initialized", "users", len(userIDs), "files", len(fileIDs))
	return nil
}

// CreateUser is the only path that brings a user into existence. The name is
// normalized (trimmed, lowercased) and validated before anything is written.
func (r *Repository) CreateUser(ctx context.Context, name, password string, quotaBytes, maxFiles int64) (*User, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || !userNameRegex.MatchString(name) {
		return nil, ErrInvalidUserName
	}
	if r.HasUser(name) {
		return nil, ErrDuplicateUser
	}
	if password == "" {
		return nil, ErrInvalidPassword
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err = r.store.InsertUser(ctx, database.UserRow{
		Name:         name,
		PasswordHash: hashed,
		QuotaBytes:   quotaBytes,
		MaxFiles:     maxFiles,
	})
	if err != nil {
		if err == database.ErrUserExists {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	user := &User{
		repo:         r,
		uid:          name,
		passwordHash: hashed,
		quotaBytes:   quotaBytes,
		maxFiles:     maxFiles,
		fileIDs:      make(map[string]struct{}),
	}

	r.mu.Lock()
	r.users[name] = user
	r.mu.Unlock()

	return user, nil
}

// HasUser reports whether uid is a known key. No store round-trip.
func (r *Repository) HasUser(uid string) bool {
	uid = strings.ToLower(uid)
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, known := r.users[uid]
	return known
}

// AllUserIDs lists every known uid. No store round-trip.
func (r *Repository) AllUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	return ids
}

// GetUser returns the cached user or lazily materializes it from the store.
// An unknown uid resolves to (nil, nil) immediately.
func (r *Repository) GetUser(ctx context.Context, uid string) (*User, error) {
	if uid == "" {
		return nil, nil
	}
	uid = strings.ToLower(uid)

	r.mu.RLock()
	user, known := r.users[uid]
	r.mu.RUnlock()
	if !known {
		return nil, nil
	}
	if user != nil {
		return user, nil
	}

	row, err := r.store.GetUserRow(ctx, uid)
	if err != nil {
		return nil, err
	}
	if row == nil {
		// The key set said yes but the row is gone. Drop the stale key.
		r.mu.Lock()
		delete(r.users, uid)
		r.mu.Unlock()
		return nil, nil
	}

	files, err := r.store.ListFileRowsByOwner(ctx, uid)
	if err != nil {
		return nil, err
	}

	var usedBytes int64
	fileIDs := make(map[string]struct{}, len(files))
	for _, f := range files {
		usedBytes += f.Size
		fileIDs[f.ID] = struct{}{}
	}

	user = &User{
		repo:         r,
		uid:          uid,
		passwordHash: row.PasswordHash,
		quotaBytes:   row.QuotaBytes,
		maxFiles:     row.MaxFiles,
		isAdmin:      row.IsAdmin,
		usedBytes:    usedBytes,
		fileIDs:      fileIDs,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.users[uid]; ok && current != nil {
		// Lost a racing load, keep the instance that got cached first.
		return current, nil
	}
	if _, ok := r.users[uid]; ok {
		r.users[uid] = user
	}
	return user, nil
}

// GenerateUniqueFileID draws file ids until one misses the known-key set. The
// id space (21 nanoid characters) dwarfs any realistic file count, so the
// loop terminates after one draw in practice.
func (r *Repository) GenerateUniqueFileID() string {
	for {
		fid := r.newFileID()
		if !r.HasFileInfo(fid) {
			return fid
		}
	}
}

// HasFileInfo reports whether fid is a known key. No store round-trip.
func (r *Repository) HasFileInfo(fid string) bool {
	if fid == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, known := r.files[fid]
	return known
}

// GetFileInfo returns the cached file or lazily materializes it. An unknown
// or empty fid resolves to (nil, nil) without a store query.
func (r *Repository) GetFileInfo(ctx context.Context, fid string) (*File, error) {
	if fid == "" {
		return nil, nil
	}

	r.mu.RLock()
	file, known := r.files[fid]
	r.mu.RUnlock()
	if !known {
		return nil, nil
	}
	if file != nil {
		return file, nil
	}

	row, err := r.store.GetFileRow(ctx, fid)
	if err != nil {
		return nil, err
	}
	if row == nil {
		r.mu.Lock()
		delete(r.files, fid)
		r.mu.Unlock()
		return nil, nil
	}

	file = &File{
		repo:        r,
		id:          row.ID,
		name:        row.Name,
		contentType: row.ContentType,
		extension:   row.Extension,
		size:        row.Size,
		uploadTime:  row.UploadTime,
		isPublic:    row.IsPublic,
		owner:       row.Owner,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.files[fid]; ok && current != nil {
		return current, nil
	}
	if _, ok := r.files[fid]; ok {
		r.files[fid] = file
	}
	return file, nil
}

// CreateFileInfo commits a fully staged upload: the blob is promoted into the
// permanent area, the row inserted, and only then the entity cached and the
// owner's usage raised. A failed insert compensates by deleting the promoted
// blob so that a blob never outlives its row.
//
// Quota enforcement is deliberately not re-checked here; the caller decides
// against a pre-commit snapshot of the owner's usage.
func (r *Repository) CreateFileInfo(ctx context.Context, tempPath, fid, name, contentType, extension string, size int64, uploadTime time.Time, isPublic bool, owner string) (*File, error) {
	if fid == "" || strings.Contains(fid, "/") {
		return nil, ErrInvalidFileID
	}
	owner = strings.ToLower(owner)

	user, err := r.GetUser(ctx, owner)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if r.HasFileInfo(fid) {
		return nil, ErrDuplicateFile
	}

	if err := r.blobs.Promote(tempPath, fid); err != nil {
		return nil, fmt.Errorf("promote blob: %w", err)
	}

	err = r.store.InsertFileRow(ctx, database.FileRow{
		ID:          fid,
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Owner:       owner,
		UploadTime:  uploadTime,
		IsPublic:    isPublic,
		Extension:   extension,
	})
	if err != nil {
		// Best-effort compensation. The insert failure stays the error the
		// caller sees; a failed blob delete is logged and swallowed so it
		// cannot mask it.
		if rmErr := r.blobs.Remove(fid); rmErr != nil {
			r.log.Error("compensating blob delete failed", "fid", fid, "err", rmErr)
		}
		if err == database.ErrFileExists {
			return nil, ErrDuplicateFile
		}
		return nil, err
	}

	file := &File{
		repo:        r,
		id:          fid,
		name:        name,
		contentType: contentType,
		extension:   extension,
		size:        size,
		uploadTime:  uploadTime,
		isPublic:    isPublic,
		owner:       owner,
	}

	r.mu.Lock()
	r.files[fid] = file
	r.mu.Unlock()

	user.notifyFileCreated(fid, size)

	return file, nil
}

// Blobs exposes the blob store for read access (downloads). Mutation of the
// blob area stays inside the repository.
func (r *Repository) Blobs() *blob.LocalStore {
	return r.blobs
}

// removeUser deletes the row and forgets the key entirely, making the uid
// available for re-registration. Called by User.Delete after the file cascade.
func (r *Repository) removeUser(ctx context.Context, uid string) error {
	uid = strings.ToLower(uid)
	if !r.HasUser(uid) {
		return nil
	}

	if err := r.store.DeleteUserRow(ctx, uid); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.users, uid)
	r.mu.Unlock()
	return nil
}

// removeFile deletes the row and forgets the key. Removing an unknown fid is
// a no-op success, which keeps cascading deletes retryable. The blob is the
// entity's responsibility (File.Delete removes it first).
func (r *Repository) removeFile(ctx context.Context, fid string) error {
	if !r.HasFileInfo(fid) {
		return nil
	}

	if err := r.store.DeleteFileRow(ctx, fid); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.files, fid)
	r.mu.Unlock()
	return nil
}

// updateUser persists a mutated field set for uid. Entity setters are the
// only callers and pass literal column names.
func (r *Repository) updateUser(ctx context.Context, uid string, fields []database.Field) error {
	return r.store.UpdateUserFields(ctx, uid, fields)
}

func (r *Repository) updateFile(ctx context.Context, fid string, fields []database.Field) error {
	return r.store.UpdateFileFields(ctx, fid, fields)
}
