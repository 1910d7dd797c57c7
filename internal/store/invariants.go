package store

import (
	"fmt"
	"time"
)

// transitions enumerates the legal status transition graph consumed by
// SaveTicket. Keys are case-sensitive status values; see types.go.
var transitions = map[string][]string{
	StatusTodo:    {StatusDoing, StatusBlocked, StatusDone},
	StatusDoing:   {StatusBlocked, StatusReview, StatusDone},
	StatusBlocked: {StatusTodo, StatusDoing},
	StatusReview:  {StatusDoing, StatusDone},
	StatusDone:    {StatusDoing},
}

// TransitionAllowed reports whether a ticket may move from one status to
// another. A status "transitioning" to itself is always allowed and is a
// no-op with respect to StartedAt/ClosedAt side effects.
func TransitionAllowed(from, to string) bool {
	if from == to {
		return true
	}

	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}

	return false
}

// applyTransitionSideEffects mutates a ticket's StartedAt/ClosedAt fields
// according to the status it is moving to: entering "doing" for the first
// time sets StartedAt; entering "done" sets ClosedAt; leaving "done"
// clears ClosedAt. Both stamps fire on the transition only — re-saving a
// ticket whose status stays "done" (a title edit, say) keeps the original
// ClosedAt rather than refreshing it.
func applyTransitionSideEffects(t *Ticket, from, to string, now func() time.Time) {
	if to == StatusDoing && t.StartedAt.IsZero() {
		t.StartedAt = now()
	}

	switch {
	case to == StatusDone && from != StatusDone:
		t.ClosedAt = now()
	case to != StatusDone && from == StatusDone:
		t.ClosedAt = time.Time{}
	}
}

// Display is the per-variant presentation metadata for a status or
// priority value: a total function from the enum to {label, color, emoji}
// so CLI rendering never duplicates match arms per attribute.
type Display struct {
	Label string
	Color string // ANSI escape, no reset
	Emoji string
}

var statusDisplay = map[string]Display{
	StatusTodo:    {Label: "Todo", Color: "\x1b[90m", Emoji: "⚪"},
	StatusDoing:   {Label: "Doing", Color: "\x1b[34m", Emoji: "🔵"},
	StatusDone:    {Label: "Done", Color: "\x1b[32m", Emoji: "✅"},
	StatusBlocked: {Label: "Blocked", Color: "\x1b[31m", Emoji: "⛔"},
	StatusReview:  {Label: "Review", Color: "\x1b[35m", Emoji: "🟣"},
}

var priorityDisplay = map[string]Display{
	PriorityLow:      {Label: "Low", Color: "\x1b[90m", Emoji: "🔽"},
	PriorityMedium:   {Label: "Medium", Color: "\x1b[33m", Emoji: "▪️"},
	PriorityHigh:     {Label: "High", Color: "\x1b[31m", Emoji: "🔺"},
	PriorityCritical: {Label: "Critical", Color: "\x1b[41m", Emoji: "🚨"},
}

// StatusDisplayOf returns the presentation metadata for a status value.
// An unrecognized value renders as its bare string; IsValidStatus is the
// boundary check that should have rejected it earlier.
func StatusDisplayOf(status string) Display {
	if d, ok := statusDisplay[status]; ok {
		return d
	}

	return Display{Label: status}
}

// PriorityDisplayOf returns the presentation metadata for a priority value.
func PriorityDisplayOf(priority string) Display {
	if d, ok := priorityDisplay[priority]; ok {
		return d
	}

	return Display{Label: priority}
}

// IsValidStatus reports whether status is one of the enumerated values.
func IsValidStatus(status string) bool {
	_, ok := statusDisplay[status]

	return ok
}

// IsValidPriority reports whether priority is one of the enumerated values.
func IsValidPriority(priority string) bool {
	_, ok := priorityDisplay[priority]

	return ok
}

// formatTransitionError renders a diagnostic naming the attempted and legal
// transitions, used by SaveTicket.
func formatTransitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s (legal: %v)", ErrInvalidTransition, from, to, transitions[from])
}
