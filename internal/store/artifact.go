package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	tkfs "github.com/tkstore/tks/pkg/fs"
)

// artifactPerm is the file mode every ticket/state artifact is written with.
const artifactPerm = os.FileMode(0o644)

// ArtifactStore reads and writes the markdown+frontmatter artifacts that
// back tickets and project state. It wraps pkg/fs.AtomicWriter so a crash
// mid-write leaves either the previous full file or the new full file on
// disk, never a torn one.
type ArtifactStore struct {
	fs     tkfs.FS
	writer *tkfs.AtomicWriter
}

// NewArtifactStore builds an ArtifactStore over fsys. Passing nil uses
// pkg/fs.NewReal, the production os-backed implementation; tests may inject
// pkg/fs.NewChaos to exercise the fsync and rename failure paths.
func NewArtifactStore(fsys tkfs.FS) *ArtifactStore {
	if fsys == nil {
		fsys = tkfs.NewReal()
	}

	return &ArtifactStore{fs: fsys, writer: tkfs.NewAtomicWriter(fsys)}
}

// Read loads and returns the raw bytes of the artifact at path.
// Returns an error wrapping ErrNotFound if the file does not exist.
func (a *ArtifactStore) Read(path string) ([]byte, error) {
	data, err := a.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return nil, fmt.Errorf("%w: read %s: %v", ErrIO, path, err)
	}

	return data, nil
}

// Exists reports whether an artifact is present at path.
func (a *ArtifactStore) Exists(path string) (bool, error) {
	ok, err := a.fs.Exists(path)
	if err != nil {
		return false, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}

	return ok, nil
}

// Write atomically and durably writes data to path, creating parent
// directories as needed.
func (a *ArtifactStore) Write(path string, data []byte) error {
	dir, err := splitDir(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
	}

	opts := a.writer.DefaultOptions()
	opts.Perm = artifactPerm

	if err := a.writer.Write(path, bytes.NewReader(data), opts); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrIO, path, err)
	}

	return nil
}

// Remove deletes the artifact at path. It is not an error if the artifact
// is already absent.
func (a *ArtifactStore) Remove(path string) error {
	if err := a.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrIO, path, err)
	}

	return nil
}

// Move renames an artifact from src to dst (used by ArchiveTicket and
// UnarchiveTicket, which relocate a ticket between the active and archive
// directories rather than rewriting its contents).
func (a *ArtifactStore) Move(src, dst string) error {
	dir, err := splitDir(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrIO, dir, err)
	}

	if err := a.fs.Rename(src, dst); err != nil {
		return fmt.Errorf("%w: move %s -> %s: %v", ErrIO, src, dst, err)
	}

	return nil
}

func splitDir(path string) (string, error) {
	dir := path

	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator || path[i] == '/' {
			dir = path[:i]

			break
		}
	}

	if dir == "" || dir == path {
		return "", fmt.Errorf("path has no directory component: %q", path)
	}

	return dir, nil
}
