// Package fs is the filesystem seam between the ticket store and the
// operating system. internal/store routes every ticket, project-state, and
// active-pointer artifact through the [FS] interface instead of calling the
// os package directly (lock files and the config file still use the os
// package), which is what lets the durability tests
// swap in a fault-injecting implementation without touching a real disk.
//
// Two implementations ship with the package: [Real], a thin passthrough to
// the os package used in production, and [Chaos], which wraps another FS
// and fails a configurable fraction of writes, renames, and syncs.
// [AtomicWriter] layers the temp-file/fsync/rename discipline on top of
// either one.
package fs

import (
	"io"
	"os"
)

// File is the subset of [os.File] the store's artifact writes need: stream
// I/O plus the durability hooks (Sync) and the mode fixup AtomicWriter
// applies to its temp files (Chmod). Implementations must tolerate
// concurrent use from multiple goroutines.
type File interface {
	io.ReadWriteCloser

	// Sync commits the file's contents to stable storage. See [os.File.Sync].
	Sync() error

	// Chmod changes the file's mode. See [os.File.Chmod].
	Chmod(mode os.FileMode) error
}

// FS is the set of filesystem operations the ticket store performs. Methods
// mirror their os-package namesakes in behavior and error values; paths use
// OS path semantics, not io/fs slash paths.
//
// Implementations must be safe for concurrent use.
type FS interface {
	// Open opens a file (or directory, for fsync) read-only. See [os.Open].
	Open(path string) (File, error)

	// OpenFile opens a file with the given flags and permissions. See
	// [os.OpenFile]. AtomicWriter relies on O_CREATE|O_EXCL behaving
	// atomically here.
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads the whole file at path. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir lists a directory, sorted by name. See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates path and any missing parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Exists reports whether path names an existing file or directory.
	// (false, nil) means confirmed-absent; (false, err) means undetermined.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// Rename moves oldpath to newpath, atomically when both live on the
	// same filesystem. See [os.Rename].
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
