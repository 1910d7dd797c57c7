package store

import "errors"

// Sentinel errors callers branch on with errors.Is. Every error returned by
// this package's exported functions wraps exactly one of these: one
// package-level sentinel per distinguishable failure rather than ad hoc
// string comparisons.
var (
	// ErrNotInitialized is returned when an operation targets a project root
	// that lacks the on-disk layout.
	ErrNotInitialized = errors.New("project not initialized")

	// ErrAlreadyInitialized is returned by Initialize on an existing layout
	// when force is false.
	ErrAlreadyInitialized = errors.New("project already initialized")

	// ErrNotFound is returned when a ref resolves to no ticket.
	ErrNotFound = errors.New("ticket not found")

	// ErrAmbiguousPrefix is returned when a ref prefix matches more than one
	// ticket.
	ErrAmbiguousPrefix = errors.New("ambiguous ticket reference")

	// ErrDuplicateSlug is returned when a create would produce a slug that
	// already exists (live or archived).
	ErrDuplicateSlug = errors.New("duplicate slug")

	// ErrInvalidTransition is returned when a status change violates the
	// transition table in invariants.go.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrContention is returned when a lock's retry budget is exhausted.
	ErrContention = errors.New("lock contention")

	// ErrMalformedInput is returned when an artifact's text cannot be parsed.
	ErrMalformedInput = errors.New("malformed artifact")

	// ErrSchemaViolation is returned when an artifact parses but is missing
	// required fields or has values outside their enumeration.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrIO wraps an underlying filesystem failure that is not a contention
	// or malformed-input condition.
	ErrIO = errors.New("io failure")
)
