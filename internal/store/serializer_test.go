package store_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/tkstore/tks/internal/store"
)

func fullTicket() *store.Ticket {
	created := time.Date(2026, 3, 5, 9, 0, 0, 123000000, time.UTC)
	started := created.Add(time.Hour)
	closed := created.Add(2 * time.Hour)

	return &store.Ticket{
		ID:          "018f5f25-7e7d-7f0a-8c5c-123456789abc",
		Slug:        "202603050900-fix-login",
		Title:       "Fix login",
		Description: "Users cannot log in with SSO.",
		Priority:    store.PriorityHigh,
		Status:      store.StatusDone,
		Tags:        []string{"bug", "auth"},
		Assignee:    "alice",
		CreatedAt:   created,
		StartedAt:   started,
		ClosedAt:    closed,
		Tasks: []store.Task{
			{ID: "a1", Title: "reproduce", Done: true, CompletedAt: started},
			{ID: "a2", Title: "patch", Done: false},
		},
		Metadata: map[string]any{
			"external_ref": "JIRA-42",
			"retries":      int64(2),
			"urgent":       true,
			"reviewers":    []string{"bob", "carol"},
			"links":        map[string]any{"pr": "github.com/x/y/42", "draft": false},
		},
	}
}

// Contract: parse(serialize(t)) == t for every field, including metadata
// and the relative order of tasks.
func Test_Ticket_RoundTrip_IsBitwiseEqual(t *testing.T) {
	t.Parallel()

	want := fullTicket()

	text, err := store.SerializeTicket(want)
	require.NoError(t, err)

	got, err := store.ParseTicket([]byte(text))
	require.NoError(t, err)

	diff := cmp.Diff(want, got,
		cmpopts.EquateApproxTime(0),
		cmp.AllowUnexported(store.Ticket{}),
	)
	require.Empty(t, diff)
}

// Contract: a minimal ticket (no tags, assignee, tasks, or metadata)
// round-trips without spurious fields appearing on parse.
func Test_Ticket_RoundTrip_MinimalFields(t *testing.T) {
	t.Parallel()

	want := &store.Ticket{
		ID:        "018f5f25-7e7d-7f0a-8c5c-000000000001",
		Slug:      "202603050900-minimal",
		Title:     "Minimal",
		Priority:  store.PriorityMedium,
		Status:    store.StatusTodo,
		CreatedAt: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
	}

	text, err := store.SerializeTicket(want)
	require.NoError(t, err)

	got, err := store.ParseTicket([]byte(text))
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(want, got, cmp.AllowUnexported(store.Ticket{})))
}

// Contract: an unrecognized frontmatter key present on disk (forward-
// compatible schema growth) survives an unmodified round-trip rather than
// being silently dropped.
func Test_Ticket_RoundTrip_PreservesUnknownFrontmatterKey(t *testing.T) {
	t.Parallel()

	base := fullTicket()

	text, err := store.SerializeTicket(base)
	require.NoError(t, err)

	// Inject an extra key a future schema version might add, inside the
	// frontmatter block.
	withExtra := strings.Replace(text, "id: "+base.ID, "id: "+base.ID+"\nfuture_field: kept", 1)

	parsed, err := store.ParseTicket([]byte(withExtra))
	require.NoError(t, err)

	reSerialized, err := store.SerializeTicket(parsed)
	require.NoError(t, err)

	require.Contains(t, reSerialized, "future_field: kept")
}

// Contract: text that isn't valid frontmatter at all fails with
// ErrMalformedInput.
func Test_ParseTicket_ReturnsMalformedInput_ForGarbage(t *testing.T) {
	t.Parallel()

	_, err := store.ParseTicket([]byte("this is not a ticket file"))
	require.ErrorIs(t, err, store.ErrMalformedInput)
}

// Contract: well-formed frontmatter missing a required field (or with a
// value outside its enumeration) fails with ErrSchemaViolation, not
// ErrMalformedInput.
func Test_ParseTicket_ReturnsSchemaViolation_ForMissingRequiredField(t *testing.T) {
	t.Parallel()

	text := "---\nid: 018f5f25-7e7d-7f0a-8c5c-123456789abc\nslug: 202603050900-x\nstatus: todo\n---\n# Title\n"

	_, err := store.ParseTicket([]byte(text))
	require.ErrorIs(t, err, store.ErrSchemaViolation, "missing priority")
}

// Contract: an out-of-enumeration status value fails SerializeTicket with
// ErrSchemaViolation.
func Test_SerializeTicket_ReturnsSchemaViolation_ForInvalidStatus(t *testing.T) {
	t.Parallel()

	bad := fullTicket()
	bad.Status = "cancelled"

	_, err := store.SerializeTicket(bad)
	require.ErrorIs(t, err, store.ErrSchemaViolation)
}

// Contract: created_at/started_at/closed_at are rendered timezone-explicit
// with sub-second precision.
func Test_SerializeTicket_TimestampsAreTimezoneExplicitWithSubsecondPrecision(t *testing.T) {
	t.Parallel()

	tk := fullTicket()

	text, err := store.SerializeTicket(tk)
	require.NoError(t, err)

	require.Contains(t, text, tk.CreatedAt.Format(time.RFC3339Nano))
}

// Contract: a metadata value can be a scalar, a string list, or a flat
// object of scalars — the 3-way subset internal/frontmatter's grammar
// supports — and each shape round-trips through its own
// namespaced "metadata.<key>" frontmatter key.
func Test_Ticket_RoundTrip_MetadataThreeWaySubset(t *testing.T) {
	t.Parallel()

	want := fullTicket()

	text, err := store.SerializeTicket(want)
	require.NoError(t, err)

	require.Contains(t, text, "metadata.reviewers:")
	require.Contains(t, text, "metadata.links:")
	require.Contains(t, text, "metadata.external_ref:")

	got, err := store.ParseTicket([]byte(text))
	require.NoError(t, err)

	require.Equal(t, want.Metadata, got.Metadata)
}

// Contract: a metadata value of a type outside the 3-way subset (scalar,
// string list, flat object of scalars) fails serialization with
// ErrSchemaViolation rather than silently dropping or corrupting it.
func Test_SerializeTicket_ReturnsSchemaViolation_ForUnsupportedMetadataValue(t *testing.T) {
	t.Parallel()

	bad := fullTicket()
	bad.Metadata = map[string]any{"bad": []int{1, 2, 3}}

	_, err := store.SerializeTicket(bad)
	require.ErrorIs(t, err, store.ErrSchemaViolation)
}
