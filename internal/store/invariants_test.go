package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tkstore/tks/internal/store"
)

// Contract: the transition table is exactly
// todo -> doing|blocked|done, doing -> blocked|review|done,
// blocked -> todo|doing, review -> doing|done, done -> doing. Every other
// directed pair is illegal.
func Test_TransitionAllowed_MatchesTable(t *testing.T) {
	t.Parallel()

	legal := map[string][]string{
		store.StatusTodo:    {store.StatusDoing, store.StatusBlocked, store.StatusDone},
		store.StatusDoing:   {store.StatusBlocked, store.StatusReview, store.StatusDone},
		store.StatusBlocked: {store.StatusTodo, store.StatusDoing},
		store.StatusReview:  {store.StatusDoing, store.StatusDone},
		store.StatusDone:    {store.StatusDoing},
	}

	all := []string{store.StatusTodo, store.StatusDoing, store.StatusDone, store.StatusBlocked, store.StatusReview}

	for _, from := range all {
		allowedTo := map[string]bool{from: true} // identity transition always allowed
		for _, to := range legal[from] {
			allowedTo[to] = true
		}

		for _, to := range all {
			want := allowedTo[to]
			got := store.TransitionAllowed(from, to)

			assert.Equal(t, want, got, "TransitionAllowed(%s, %s)", from, to)
		}
	}
}

// Contract: IsValidStatus/IsValidPriority accept exactly the enumerated
// values and nothing else.
func Test_IsValidStatus_And_IsValidPriority(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"todo", "doing", "done", "blocked", "review"} {
		assert.True(t, store.IsValidStatus(s))
	}

	assert.False(t, store.IsValidStatus("archived"))

	for _, p := range []string{"low", "medium", "high", "critical"} {
		assert.True(t, store.IsValidPriority(p))
	}

	assert.False(t, store.IsValidPriority("urgent"))
}

// Contract: every enumerated status and priority has non-empty display
// metadata, so CLI rendering never falls through to the raw string
// fallback for a value IsValidStatus/IsValidPriority accepts.
func Test_DisplayOf_CoversEveryEnumeratedValue(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"todo", "doing", "done", "blocked", "review"} {
		d := store.StatusDisplayOf(s)
		assert.NotEmpty(t, d.Label)
		assert.NotEmpty(t, d.Emoji)
	}

	for _, p := range []string{"low", "medium", "high", "critical"} {
		d := store.PriorityDisplayOf(p)
		assert.NotEmpty(t, d.Label)
		assert.NotEmpty(t, d.Emoji)
	}
}
