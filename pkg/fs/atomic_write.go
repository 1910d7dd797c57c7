package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
)

// ErrAtomicWriteDirSync marks a write whose rename landed but whose parent
// directory could not be fsynced afterward: the new artifact is in place,
// but its directory entry is not guaranteed durable across a power loss.
// Detect with errors.Is(err, ErrAtomicWriteDirSync).
var ErrAtomicWriteDirSync = errors.New("dir sync")

// AtomicWriter commits whole files via a same-directory temp file, an
// fsync, and a rename over the destination. A reader concurrent with a
// write — or a crash in the middle of one — sees either the previous
// artifact or the new one in full, never a truncated or interleaved
// document. internal/store's ArtifactStore funnels every ticket and
// project-state save through one of these.
type AtomicWriter struct {
	fs FS
}

// NewAtomicWriter builds a writer over fsys. Panics if fsys is nil.
func NewAtomicWriter(fsys FS) *AtomicWriter {
	if fsys == nil {
		panic("fs is nil")
	}

	return &AtomicWriter{fs: fsys}
}

// AtomicWriteOptions configures one Write call.
type AtomicWriteOptions struct {
	// SyncDir fsyncs the parent directory after the rename, making the
	// rename itself durable. Default true.
	SyncDir bool

	// Perm is the final file mode, applied with an explicit Chmod so the
	// umask cannot narrow it. Must be non-zero.
	Perm os.FileMode
}

// DefaultOptions returns SyncDir=true, Perm=0644.
func (*AtomicWriter) DefaultOptions() AtomicWriteOptions {
	return AtomicWriteOptions{SyncDir: true, Perm: 0o644}
}

// WriteWithDefaults is Write with DefaultOptions.
func (w *AtomicWriter) WriteWithDefaults(path string, r io.Reader) error {
	return w.Write(path, r, w.DefaultOptions())
}

// Write streams r into a fresh temp file next to path, fsyncs it, renames
// it over path, and (per opts.SyncDir) fsyncs the parent directory. On any
// failure up to and including the rename the temp file is removed and path
// is untouched; a failed directory fsync comes after the rename, so path
// already holds the new content when ErrAtomicWriteDirSync is returned.
func (w *AtomicWriter) Write(path string, r io.Reader, opts AtomicWriteOptions) error {
	if r == nil {
		panic("reader is nil")
	}

	if path == "" {
		return errors.New("path is empty")
	}

	if opts.Perm == 0 {
		return errors.New("opts.Perm must be non-zero")
	}

	dir, base := filepath.Split(path)
	if base == "" || base == "." || base == string(os.PathSeparator) {
		return fmt.Errorf("path is invalid: %q", path)
	}

	if dir == "" {
		dir = "."
	}

	dir = filepath.Clean(dir)

	tmp, tmpPath, err := w.createTemp(dir, base, opts.Perm)
	if err != nil {
		return err
	}

	renamed := false

	defer func() {
		// The temp file is closed on every path; it only still exists on
		// disk when the rename never happened.
		_ = tmp.Close()

		if !renamed {
			_ = w.fs.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(opts.Perm); err != nil {
		return fmt.Errorf("chmod temp file %q: %w", tmpPath, err)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		return fmt.Errorf("write temp file %q: %w", tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file %q: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %q: %w", tmpPath, err)
	}

	if err := w.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	renamed = true

	if opts.SyncDir {
		return w.syncDir(dir)
	}

	return nil
}

// tempSeq disambiguates concurrent writers targeting the same base name
// within this process; O_EXCL settles races with anyone else.
var tempSeq atomic.Uint64

const tempMaxAttempts = 10000

func (w *AtomicWriter) createTemp(dir, base string, perm os.FileMode) (File, string, error) {
	for range tempMaxAttempts {
		path := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d", base, tempSeq.Add(1)))

		file, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err == nil {
			return file, path, nil
		}

		if os.IsExist(err) {
			continue
		}

		return nil, "", fmt.Errorf("create temp file: %w", err)
	}

	return nil, "", fmt.Errorf("exhausted temp file attempts in %q", dir)
}

func (w *AtomicWriter) syncDir(dir string) error {
	handle, err := w.fs.Open(dir)
	if err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("open dir %q: %w", dir, err))
	}

	defer handle.Close()

	if err := handle.Sync(); err != nil {
		return errors.Join(ErrAtomicWriteDirSync, fmt.Errorf("%q: %w", dir, err))
	}

	return nil
}
