package store_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tkstore/tks/internal/store"
)

// Contract: parse(serialize(s)) == s for project state, matching ticket
// round-trip semantics.
func Test_ProjectState_RoundTrip_IsEqual(t *testing.T) {
	t.Parallel()

	want := &store.ProjectState{
		Name:        "Demo",
		Description: "An example project.",
		CreatedAt:   time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		Stats: store.Statistics{
			Total:    3,
			ByStatus: map[string]int{store.StatusTodo: 2, store.StatusDone: 1},
		},
	}

	text, err := store.SerializeState(want)
	require.NoError(t, err)

	got, err := store.ParseState([]byte(text))
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(want, got, cmp.AllowUnexported(store.ProjectState{})))
}

// Contract: project state with no description and no per-status counts
// still round-trips (the minimal state created by Initialize).
func Test_ProjectState_RoundTrip_Empty(t *testing.T) {
	t.Parallel()

	want := &store.ProjectState{
		Name:      "Demo",
		CreatedAt: time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
		Stats:     store.Statistics{ByStatus: map[string]int{}},
	}

	text, err := store.SerializeState(want)
	require.NoError(t, err)

	got, err := store.ParseState([]byte(text))
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(want, got, cmp.AllowUnexported(store.ProjectState{})))
}

// Contract: malformed state artifacts fail with ErrMalformedInput /
// ErrSchemaViolation, mirroring ParseTicket.
func Test_ParseState_ReturnsMalformedInput_ForGarbage(t *testing.T) {
	t.Parallel()

	_, err := store.ParseState([]byte("not a state file"))
	require.ErrorIs(t, err, store.ErrMalformedInput)
}
