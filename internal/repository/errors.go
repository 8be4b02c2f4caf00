package repository

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize on a second call.
	ErrAlreadyInitialized = errors.New("repository already initialized")

	// Validation failures. Always raised before any store mutation.
	ErrInvalidUserName = errors.New("user name doesn't match requirements")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidFileID   = errors.New("invalid file id")

	// Conflicts on create.
	ErrDuplicateUser = errors.New("user with this name already exists")
	ErrDuplicateFile = errors.New("file with this id is already registered")

	// ErrUserNotFound is returned when an operation requires an existing
	// user, e.g. committing a file for an owner that vanished.
	ErrUserNotFound = errors.New("user not found")
)
