// Package diskerr defines the error-kind vocabulary shared by every layer
// of the filesystem core (free-map, cache, inode, directory, resolver,
// facade). Facade operations still return booleans or nil handles to
// callers; these sentinels are for internal call sites and tests that need
// to know *why* an operation failed.
package diskerr

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidPath covers an empty path, a component longer than 14
	// bytes, descending into a file, or a missing intermediate directory.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound is returned when the final path component does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned by create/mkdir when the target already exists.
	ErrExists = errors.New("already exists")
	// ErrNotEmpty is returned when removing a non-empty directory.
	ErrNotEmpty = errors.New("directory not empty")
	// ErrInUse is returned when removing a directory that is open elsewhere.
	ErrInUse = errors.New("directory in use")
	// ErrNoSpace is returned when the free-map has no sector to allocate.
	ErrNoSpace = errors.New("no space on device")
	// ErrNoMemory is returned when a bounce-buffer allocation fails.
	ErrNoMemory = errors.New("out of memory")
	// ErrWriteDenied is returned when an inode's deny-write count is > 0.
	ErrWriteDenied = errors.New("write denied")
)

// Wrap annotates err with msg while preserving the sentinel for Cause
// inspection, mirroring how the rest of the pack layers pkg/errors context
// over a fixed set of sentinel kinds.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Is reports whether err's root cause is kind.
func Is(err error, kind error) bool {
	if err == nil {
		return false
	}
	return errors.Cause(err) == kind
}
