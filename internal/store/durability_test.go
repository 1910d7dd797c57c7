package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkstore/tks/internal/store"
	tkfs "github.com/tkstore/tks/pkg/fs"
)

// Contract: when the underlying filesystem fails a write or rename partway
// through SaveTicket, the call surfaces an ErrIO and the ticket on disk is
// either the pre-write or the post-write version in full — never a torn
// mix of both.
func Test_SaveTicket_UnderChaosFS_NeverLeavesTornArtifact(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	plain := tkfs.NewReal()
	repo := store.NewRepository(root, plain)
	require.NoError(t, repo.Initialize("Demo", "", false))

	created, err := repo.CreateTicket(store.Draft{SlugBase: "chaos", Title: "Before"})
	require.NoError(t, err)

	chaos := tkfs.NewChaos(plain, 1, &tkfs.ChaosConfig{
		WriteFailRate:  0.5,
		RenameFailRate: 0.5,
		SyncFailRate:   0.5,
	})
	chaosRepo := store.NewRepository(root, chaos)

	for i := 0; i < 50; i++ {
		loaded, err := chaosRepo.LoadTicket(created.ID)
		if err != nil {
			continue
		}

		loaded.Title = "After"
		if err := chaosRepo.SaveTicket(loaded); err != nil {
			require.ErrorIs(t, err, store.ErrIO)
		}
	}

	chaos.SetMode(tkfs.ChaosModeNoOp)

	final, err := store.NewRepository(root, plain).LoadTicket(created.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"Before", "After"}, final.Title,
		"the artifact must be one of the two complete titles, never a partial write")
}
