package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filehost-backend/internal/database"
)

// File is the live instance behind a committed file id. Files only come into
// existence through the commit protocol (Repository.CreateFileInfo); id,
// size, upload time and owner are immutable afterwards.
type File struct {
	repo *Repository

	id          string
	contentType string
	extension   string
	size        int64
	uploadTime  time.Time
	owner       string

	mu       sync.RWMutex
	name     string
	isPublic bool
}

func (f *File) ID() string            { return f.id }
func (f *File) ContentType() string   { return f.contentType }
func (f *File) Extension() string     { return f.extension }
func (f *File) Size() int64           { return f.size }
func (f *File) UploadTime() time.Time { return f.uploadTime }
func (f *File) Owner() string         { return f.owner }

func (f *File) Name() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.name
}

func (f *File) IsPublic() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.isPublic
}

func (f *File) SetName(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if err := f.repo.updateFile(ctx, f.id, []database.Field{{Column: "name", Value: name}}); err != nil {
		return err
	}
	f.mu.Lock()
	f.name = name
	f.mu.Unlock()
	return nil
}

func (f *File) SetPublic(ctx context.Context, isPublic bool) error {
	if err := f.repo.updateFile(ctx, f.id, []database.Field{{Column: "is_public", Value: isPublic}}); err != nil {
		return err
	}
	f.mu.Lock()
	f.isPublic = isPublic
	f.mu.Unlock()
	return nil
}

// Delete removes the blob, then the row and cache key, then lowers the
// owner's usage. The blob goes first because its removal is idempotent: if
// the row delete fails the retry finds no blob and still finishes the job.
// The transient "row without blob" state mirrors the one the commit protocol
// already tolerates.
func (f *File) Delete(ctx context.Context) error {
	if err := f.repo.blobs.Remove(f.id); err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	if err := f.repo.removeFile(ctx, f.id); err != nil {
		return err
	}

	owner, err := f.repo.GetUser(ctx, f.owner)
	if err != nil {
		return err
	}
	if owner != nil {
		owner.notifyFileDeleted(f.id, f.size)
	}
	return nil
}
