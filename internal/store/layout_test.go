package store_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkstore/tks/internal/store"
)

// Contract: every path Layout derives is rooted under the project root and
// never touches the filesystem; paths are derived fresh, never cached.
func Test_Layout_DerivesPaths_FromRoot(t *testing.T) {
	t.Parallel()

	root := "/tmp/example-project"
	l := store.NewLayout(root)

	assert.Equal(t, filepath.Join(root, "state.md"), l.StatePath())
	assert.Equal(t, filepath.Join(root, "active_ticket"), l.ActivePointerPath())
	assert.Equal(t, filepath.Join(root, "tickets"), l.TicketsDir())
	assert.Equal(t, filepath.Join(root, "archive"), l.ArchiveDir())

	id := "84c3d1ed-0000-4000-8000-000000000000"
	assert.Equal(t, filepath.Join(root, "tickets", id+".md"), l.TicketPath(id))
	assert.Equal(t, filepath.Join(root, "archive", id+".md"), l.ArchivedTicketPath(id))
	assert.Equal(t, l.TicketPath(id)+".lock", l.LockPath(l.TicketPath(id)))
}

// Contract: Dirs() lists every directory Initialize must create, including
// the root itself, in an order that never references a child before its
// parent.
func Test_Layout_Dirs_IncludesRootAndEverySubdir(t *testing.T) {
	t.Parallel()

	l := store.NewLayout("/tmp/p")
	dirs := l.Dirs()

	assert.Contains(t, dirs, l.Root)
	assert.Contains(t, dirs, l.TicketsDir())
	assert.Contains(t, dirs, l.ArchiveDir())
	assert.Contains(t, dirs, l.SpecsDir())
	assert.Contains(t, dirs, l.TemplatesDir())
	assert.Contains(t, dirs, l.PluginsDir())
	assert.Contains(t, dirs, l.BackupsDir())
	assert.Equal(t, l.Root, dirs[0])
}
