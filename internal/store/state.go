package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tkstore/tks/internal/frontmatter"
)

var stateFieldOrder = []string{
	"schema_version", "id", "created_at", "stats_total", "stats_by_status",
}

const stateSchemaVersion = 1

// stateArtifactID is a fixed sentinel so the frontmatter package's
// "id and schema_version are required" rule applies uniformly to every
// artifact this store writes, project state included, even though state
// has no natural identifier of its own.
const stateArtifactID = "project-state"

// SerializeState renders a ProjectState the same way SerializeTicket
// renders a Ticket: a YAML frontmatter header plus a markdown body holding
// the free-form name and description.
func SerializeState(s *ProjectState) (string, error) {
	fm := frontmatter.Frontmatter{}

	fm["id"] = frontmatter.StringValue(stateArtifactID)
	fm["schema_version"] = frontmatter.IntValue(stateSchemaVersion)
	fm["created_at"] = frontmatter.StringValue(s.CreatedAt.Format(timeLayout))
	fm["stats_total"] = frontmatter.IntValue(int64(s.Stats.Total))

	if len(s.Stats.ByStatus) > 0 {
		obj := make(map[string]frontmatter.Scalar, len(s.Stats.ByStatus))
		for status, count := range s.Stats.ByStatus {
			obj[status] = frontmatter.Scalar{Kind: frontmatter.ScalarInt, Int: int64(count)}
		}

		fm["stats_by_status"] = frontmatter.Value{Kind: frontmatter.ValueObject, Object: obj}
	}

	keyOrder := make([]string, 0, len(fm))

	for _, k := range stateFieldOrder {
		if _, ok := fm[k]; ok {
			keyOrder = append(keyOrder, k)
		}
	}

	extraKeys := make([]string, 0, len(s.extra))
	for k, v := range s.extra {
		if _, known := fm[k]; known {
			continue
		}

		fm[k] = v
		extraKeys = append(extraKeys, k)
	}

	sort.Strings(extraKeys)
	keyOrder = append(keyOrder, extraKeys...)

	header, err := fm.MarshalYAML(frontmatter.WithKeyOrder(keyOrder))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	var body strings.Builder

	body.WriteString("# ")
	body.WriteString(s.Name)
	body.WriteString("\n")

	if s.Description != "" {
		body.WriteString("\n")
		body.WriteString(s.Description)
		body.WriteString("\n")
	}

	return header + body.String(), nil
}

// ParseState parses a project-state artifact written by SerializeState.
func ParseState(data []byte) (*ProjectState, error) {
	fm, tail, err := frontmatter.ParseFrontmatter(data, frontmatter.WithRequireDelimiter(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	s := &ProjectState{Stats: Statistics{ByStatus: map[string]int{}}}

	createdAt, ok := fm.GetString("created_at")
	if !ok {
		return nil, fmt.Errorf("%w: missing created_at", ErrSchemaViolation)
	}

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", ErrMalformedInput, err)
	}

	s.CreatedAt = parsed

	if total, ok := fm.GetInt("stats_total"); ok {
		s.Stats.Total = int(total)
	}

	if obj, ok := fm["stats_by_status"]; ok && obj.Kind == frontmatter.ValueObject {
		for status, scalar := range obj.Object {
			if scalar.Kind == frontmatter.ScalarInt {
				s.Stats.ByStatus[status] = int(scalar.Int)
			}
		}
	}

	known := map[string]bool{}
	for _, k := range stateFieldOrder {
		known[k] = true
	}

	for k, v := range fm {
		if !known[k] {
			if s.extra == nil {
				s.extra = map[string]rawValue{}
			}

			s.extra[k] = v
		}
	}

	lines := strings.Split(string(tail), "\n")

	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}

	if idx >= len(lines) || !strings.HasPrefix(lines[idx], "# ") {
		return nil, fmt.Errorf("%w: missing name heading", ErrSchemaViolation)
	}

	s.Name = strings.TrimPrefix(lines[idx], "# ")
	idx++

	s.Description = strings.Trim(strings.Join(lines[idx:], "\n"), "\n")

	return s, nil
}
