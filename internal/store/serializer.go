package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tkstore/tks/internal/frontmatter"
)

// rawValue preserves a frontmatter value this build doesn't recognize, so a
// forward-compatible schema addition round-trips unchanged instead of being
// silently dropped.
type rawValue = frontmatter.Value

// timeLayout is timezone-explicit with sub-second precision, required for
// created_at/started_at/closed_at round-tripping.
const timeLayout = time.RFC3339Nano

// ticketFieldOrder is the stable key order emitted for diffs. Metadata keys
// (namespaced under metadataKeyPrefix) and unknown keys (forward-compat
// extras) are appended afterward, each block sorted.
var ticketFieldOrder = []string{
	"id", "schema_version", "slug", "status", "priority",
	"tags", "assignee", "created_at", "started_at", "closed_at",
}

// metadataKeyPrefix namespaces each Ticket.Metadata entry as its own
// top-level frontmatter key (e.g. "metadata.external_ref") instead of
// nesting them under a single "metadata" object. frontmatter.Value.Object
// only holds flat scalars, so a single nested object couldn't represent a
// metadata entry whose own value is a string list or a flat object; giving
// every entry its own top-level key lets it carry any of the three shapes
// the frontmatter grammar supports.
const metadataKeyPrefix = "metadata."

const ticketSchemaVersion = 1

// SerializeTicket renders a Ticket as markdown with a YAML frontmatter
// header, the format used uniformly across tickets and project state.
func SerializeTicket(t *Ticket) (string, error) {
	fm := frontmatter.Frontmatter{}

	fm["id"] = frontmatter.StringValue(t.ID)
	fm["schema_version"] = frontmatter.IntValue(ticketSchemaVersion)
	fm["slug"] = frontmatter.StringValue(t.Slug)

	if !IsValidStatus(t.Status) {
		return "", fmt.Errorf("%w: status %q", ErrSchemaViolation, t.Status)
	}

	fm["status"] = frontmatter.StringValue(t.Status)

	if !IsValidPriority(t.Priority) {
		return "", fmt.Errorf("%w: priority %q", ErrSchemaViolation, t.Priority)
	}

	fm["priority"] = frontmatter.StringValue(t.Priority)

	if len(t.Tags) > 0 {
		fm["tags"] = frontmatter.ListValue(t.Tags)
	}

	if t.Assignee != "" {
		fm["assignee"] = frontmatter.StringValue(t.Assignee)
	}

	fm["created_at"] = frontmatter.StringValue(t.CreatedAt.Format(timeLayout))

	if !t.StartedAt.IsZero() {
		fm["started_at"] = frontmatter.StringValue(t.StartedAt.Format(timeLayout))
	}

	if !t.ClosedAt.IsZero() {
		fm["closed_at"] = frontmatter.StringValue(t.ClosedAt.Format(timeLayout))
	}

	metaKeys := make([]string, 0, len(t.Metadata))
	for k := range t.Metadata {
		metaKeys = append(metaKeys, k)
	}

	sort.Strings(metaKeys)

	namespacedMetaKeys := make([]string, 0, len(metaKeys))

	for _, k := range metaKeys {
		v, err := metadataValueToFrontmatter(t.Metadata[k])
		if err != nil {
			return "", fmt.Errorf("%w: metadata key %q: %v", ErrSchemaViolation, k, err)
		}

		fullKey := metadataKeyPrefix + k
		fm[fullKey] = v
		namespacedMetaKeys = append(namespacedMetaKeys, fullKey)
	}

	keyOrder := make([]string, 0, len(fm))

	for _, k := range ticketFieldOrder {
		if _, ok := fm[k]; ok {
			keyOrder = append(keyOrder, k)
		}
	}

	keyOrder = append(keyOrder, namespacedMetaKeys...)

	extraKeys := make([]string, 0, len(t.extra))
	for k, v := range t.extra {
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
	body.WriteString(t.Title)
	body.WriteString("\n")

	if t.Description != "" {
		body.WriteString("\n")
		body.WriteString(t.Description)
		body.WriteString("\n")
	}

	if len(t.Tasks) > 0 {
		body.WriteString("\n## Tasks\n\n")
		body.WriteString(formatTasks(t.Tasks))
	}

	return header + body.String(), nil
}

// ParseTicket parses a ticket artifact previously produced by
// SerializeTicket (or a forward-compatible successor of it).
func ParseTicket(data []byte) (*Ticket, error) {
	fm, tail, err := frontmatter.ParseFrontmatter(data, frontmatter.WithRequireDelimiter(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	t := &Ticket{}

	id, ok := fm.GetString("id")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrSchemaViolation)
	}

	t.ID = id

	slug, ok := fm.GetString("slug")
	if !ok || !IsValidSlug(slug) {
		return nil, fmt.Errorf("%w: missing or malformed slug", ErrSchemaViolation)
	}

	t.Slug = slug

	status, ok := fm.GetString("status")
	if !ok || !IsValidStatus(status) {
		return nil, fmt.Errorf("%w: missing or invalid status", ErrSchemaViolation)
	}

	t.Status = status

	priority, ok := fm.GetString("priority")
	if !ok || !IsValidPriority(priority) {
		return nil, fmt.Errorf("%w: missing or invalid priority", ErrSchemaViolation)
	}

	t.Priority = priority

	if tags, ok := fm.GetList("tags"); ok {
		t.Tags = tags
	}

	if assignee, ok := fm.GetString("assignee"); ok {
		t.Assignee = assignee
	}

	createdAt, ok := fm.GetString("created_at")
	if !ok {
		return nil, fmt.Errorf("%w: missing created_at", ErrSchemaViolation)
	}

	parsedCreated, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: created_at: %v", ErrMalformedInput, err)
	}

	t.CreatedAt = parsedCreated

	if startedAt, ok := fm.GetString("started_at"); ok {
		parsed, err := time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: started_at: %v", ErrMalformedInput, err)
		}

		t.StartedAt = parsed
	}

	if closedAt, ok := fm.GetString("closed_at"); ok {
		parsed, err := time.Parse(timeLayout, closedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: closed_at: %v", ErrMalformedInput, err)
		}

		t.ClosedAt = parsed
	}

	metadata := make(map[string]any)

	for k, v := range fm {
		name, ok := strings.CutPrefix(k, metadataKeyPrefix)
		if !ok {
			continue
		}

		val, err := frontmatterValueToMetadata(v)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata key %q: %v", ErrSchemaViolation, name, err)
		}

		metadata[name] = val
	}

	if len(metadata) > 0 {
		t.Metadata = metadata
	}

	known := map[string]bool{}
	for _, k := range ticketFieldOrder {
		known[k] = true
	}

	for k, v := range fm {
		if known[k] || strings.HasPrefix(k, metadataKeyPrefix) {
			continue
		}

		if t.extra == nil {
			t.extra = map[string]rawValue{}
		}

		t.extra[k] = v
	}

	title, description, tasks, err := parseBody(tail)
	if err != nil {
		return nil, err
	}

	t.Title = title
	t.Description = description
	t.Tasks = tasks

	return t, nil
}

func parseBody(tail []byte) (title, description string, tasks []Task, err error) {
	lines := strings.Split(string(tail), "\n")

	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}

	if idx >= len(lines) || !strings.HasPrefix(lines[idx], "# ") {
		return "", "", nil, fmt.Errorf("%w: missing title heading", ErrSchemaViolation)
	}

	title = strings.TrimPrefix(lines[idx], "# ")
	idx++

	bodyLines := lines[idx:]

	tasksHeaderIdx := -1

	for i, l := range bodyLines {
		if l == "## Tasks" {
			tasksHeaderIdx = i

			break
		}
	}

	descLines := bodyLines
	if tasksHeaderIdx >= 0 {
		descLines = bodyLines[:tasksHeaderIdx]

		tasks, err = parseTasks(bodyLines[tasksHeaderIdx+1:])
		if err != nil {
			return "", "", nil, err
		}
	}

	description = strings.Trim(strings.Join(descLines, "\n"), "\n")

	return title, description, tasks, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// metadataValueToFrontmatter converts one Ticket.Metadata entry into the
// frontmatter.Value shape that best fits it: a scalar, a string list, or a
// flat object of scalars — the 3-way subset internal/frontmatter's grammar
// supports.
func metadataValueToFrontmatter(v any) (frontmatter.Value, error) {
	switch val := v.(type) {
	case string:
		return frontmatter.StringValue(val), nil
	case bool:
		return frontmatter.Value{Kind: frontmatter.ValueScalar, Scalar: frontmatter.Scalar{Kind: frontmatter.ScalarBool, Bool: val}}, nil
	case int:
		return frontmatter.IntValue(int64(val)), nil
	case int64:
		return frontmatter.IntValue(val), nil
	case []string:
		return frontmatter.ListValue(val), nil
	case map[string]any:
		obj, err := flatObjectToScalars(val)
		if err != nil {
			return frontmatter.Value{}, err
		}

		return frontmatter.Value{Kind: frontmatter.ValueObject, Object: obj}, nil
	default:
		return frontmatter.Value{}, fmt.Errorf("unsupported value type %T", v)
	}
}

func flatObjectToScalars(obj map[string]any) (map[string]frontmatter.Scalar, error) {
	out := make(map[string]frontmatter.Scalar, len(obj))

	for k, v := range obj {
		switch val := v.(type) {
		case string:
			out[k] = frontmatter.Scalar{Kind: frontmatter.ScalarString, String: val}
		case bool:
			out[k] = frontmatter.Scalar{Kind: frontmatter.ScalarBool, Bool: val}
		case int:
			out[k] = frontmatter.Scalar{Kind: frontmatter.ScalarInt, Int: int64(val)}
		case int64:
			out[k] = frontmatter.Scalar{Kind: frontmatter.ScalarInt, Int: val}
		default:
			return nil, fmt.Errorf("nested key %q: unsupported value type %T", k, v)
		}
	}

	return out, nil
}

// frontmatterValueToMetadata is metadataValueToFrontmatter's inverse.
func frontmatterValueToMetadata(v frontmatter.Value) (any, error) {
	switch v.Kind {
	case frontmatter.ValueScalar:
		switch v.Scalar.Kind {
		case frontmatter.ScalarString:
			return v.Scalar.String, nil
		case frontmatter.ScalarBool:
			return v.Scalar.Bool, nil
		case frontmatter.ScalarInt:
			return v.Scalar.Int, nil
		}
	case frontmatter.ValueList:
		return v.List, nil
	case frontmatter.ValueObject:
		return scalarsToFlatObject(v.Object), nil
	}

	return nil, fmt.Errorf("unsupported frontmatter value kind %d", v.Kind)
}

func scalarsToFlatObject(obj map[string]frontmatter.Scalar) map[string]any {
	out := make(map[string]any, len(obj))

	for k, v := range obj {
		switch v.Kind {
		case frontmatter.ScalarString:
			out[k] = v.String
		case frontmatter.ScalarBool:
			out[k] = v.Bool
		case frontmatter.ScalarInt:
			out[k] = v.Int
		}
	}

	return out
}
