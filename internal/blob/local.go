// Package blob holds the filesystem side of the commit protocol: a staging
// area for in-flight uploads and a flat permanent area keyed by file id.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStore struct {
	basePath    string
	stagingPath string
}

// NewLocalStore prepares both directories and empties the staging area of
// leftovers from a previous run. Both paths must be on the same partition so
// Promote can use an atomic rename.
func NewLocalStore(basePath, stagingPath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stagingPath, os.ModePerm); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(stagingPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(stagingPath, e.Name())); err != nil {
			return nil, err
		}
	}

	return &LocalStore{basePath: basePath, stagingPath: stagingPath}, nil
}

func (ls *LocalStore) pathFromID(id string) string {
	return filepath.Join(ls.basePath, id)
}

// Stage writes an incoming upload into the staging area and returns its
// temporary path and the number of bytes written.
func (ls *LocalStore) Stage(data io.Reader) (string, int64, error) {
	tempPath := filepath.Join(ls.stagingPath, uuid.New().String())

	file, err := os.Create(tempPath)
	if err != nil {
		return "", 0, err
	}

	written, err := io.Copy(file, data)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return "", 0, err
	}

	return tempPath, written, nil
}

// Discard drops a staged upload that will not be committed.
func (ls *LocalStore) Discard(tempPath string) error {
	err := os.Remove(tempPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Promote moves a staged blob into the permanent area under the given id.
// The rename is atomic, so the blob is either fully absent or fully present.
func (ls *LocalStore) Promote(tempPath, id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("invalid blob id %q", id)
	}
	return os.Rename(tempPath, ls.pathFromID(id))
}

func (ls *LocalStore) Open(id string) (io.ReadCloser, error) {
	file, err := os.Open(ls.pathFromID(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found: %w", id, err)
		}
		return nil, err
	}
	return file, nil
}

// Remove deletes a permanent blob. Removing an absent blob is a no-op, which
// keeps file deletion retryable.
func (ls *LocalStore) Remove(id string) error {
	err := os.Remove(ls.pathFromID(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
