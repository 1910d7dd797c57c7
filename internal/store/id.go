package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewID mints a fresh, globally unique 128-bit identifier. Collision
// probability is negligible; any collision a write actually observes is
// reported as ErrIO so the caller can retry with a fresh id.
func NewID() string {
	return uuid.New().String()
}

// minPrefixLen is the shortest ref prefix accepted for resolution. Shorter
// prefixes are rejected outright rather than resolved, even if they happen
// to be unique today: a 1-2 character prefix becomes ambiguous too easily as
// a project grows, and silently accepting it invites surprises later.
const minPrefixLen = 4

// slugPattern matches a complete slug: a 12-digit local-time prefix
// (YYYYMMDDHHMM) followed by one or more lowercase kebab segments.
var slugPattern = regexp.MustCompile(`^[0-9]{12}-[a-z0-9]+(?:-[a-z0-9]+)*$`)

// kebabBasePattern matches the caller-supplied base before the timestamp
// prefix is applied: lowercase, digits, and hyphens only.
var kebabBasePattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// errInvalidSlugBase is returned by NewSlug when base isn't a valid kebab
// identifier.
var errInvalidSlugBase = fmt.Errorf("%w: slug base must be lowercase kebab-case", ErrSchemaViolation)

// NewSlug prepends a YYYYMMDDHHMM timestamp in local civil time to a
// caller-supplied kebab base, producing a slug matching slugPattern.
func NewSlug(base string, at time.Time) (string, error) {
	if !kebabBasePattern.MatchString(base) {
		return "", fmt.Errorf("%w: %q", errInvalidSlugBase, base)
	}

	return at.Format("200601021504") + "-" + base, nil
}

// IsValidSlug reports whether s has the full slug shape.
func IsValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// refKind classifies how a ref string should be matched against candidates.
type refKind int

const (
	refKindID refKind = iota
	refKindSlug
	refKindPrefix
)

// classifyRef decides how to interpret a caller-supplied ticket reference.
func classifyRef(ref string) refKind {
	if _, err := uuid.Parse(ref); err == nil {
		return refKindID
	}

	if IsValidSlug(ref) {
		return refKindSlug
	}

	return refKindPrefix
}

// candidate is the minimal shape resolveRef needs from a ticket to match a
// ref against it; Repository adapts its in-memory ticket set to this.
type candidate struct {
	ID   string
	Slug string
}

// resolveRef resolves ref (full id, full slug, or a >=4 character prefix of
// either) against candidates. It returns ErrNotFound when nothing matches,
// ErrAmbiguousPrefix when more than one candidate matches a prefix ref, and
// the matching id otherwise. Resolution never guesses: ambiguity is always
// an error.
func resolveRef(ref string, candidates []candidate) (string, error) {
	switch classifyRef(ref) {
	case refKindID:
		for _, c := range candidates {
			if c.ID == ref {
				return c.ID, nil
			}
		}

		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case refKindSlug:
		for _, c := range candidates {
			if c.Slug == ref {
				return c.ID, nil
			}
		}

		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	default:
		return resolvePrefix(ref, candidates)
	}
}

func resolvePrefix(ref string, candidates []candidate) (string, error) {
	if len(ref) < minPrefixLen {
		return "", fmt.Errorf("%w: prefix %q shorter than %d characters", ErrNotFound, ref, minPrefixLen)
	}

	var matches []string

	for _, c := range candidates {
		if strings.HasPrefix(c.ID, ref) || strings.HasPrefix(c.Slug, ref) {
			matches = append(matches, c.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d tickets", ErrAmbiguousPrefix, ref, len(matches))
	}
}
