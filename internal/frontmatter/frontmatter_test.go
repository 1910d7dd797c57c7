package frontmatter_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkstore/tks/internal/frontmatter"
)

func ticketHeader() frontmatter.Frontmatter {
	return frontmatter.Frontmatter{
		"id":             frontmatter.StringValue("018f5f25-7e7d-7f0a-8c5c-123456789abc"),
		"schema_version": frontmatter.IntValue(1),
		"slug":           frontmatter.StringValue("202603050900-fix-login"),
		"status":         frontmatter.StringValue("todo"),
		"priority":       frontmatter.StringValue("high"),
		"tags":           frontmatter.ListValue([]string{"bug", "auth"}),
	}
}

// Contract: marshal then parse returns the same map for every supported
// shape: scalars of all three kinds, lists, and flat objects.
func Test_Frontmatter_RoundTrip_AllShapes(t *testing.T) {
	t.Parallel()

	fm := ticketHeader()
	fm["archived"] = frontmatter.Value{
		Kind:   frontmatter.ValueScalar,
		Scalar: frontmatter.Scalar{Kind: frontmatter.ScalarBool, Bool: true},
	}
	fm["estimate"] = frontmatter.IntValue(8)
	fm["links"] = frontmatter.Value{
		Kind: frontmatter.ValueObject,
		Object: map[string]frontmatter.Scalar{
			"pr":     {Kind: frontmatter.ScalarString, String: "github.com/x/y/42"},
			"draft":  {Kind: frontmatter.ScalarBool, Bool: false},
			"weight": {Kind: frontmatter.ScalarInt, Int: 3},
		},
	}

	text, err := fm.MarshalYAML()
	require.NoError(t, err)

	parsed, tail, err := frontmatter.ParseFrontmatter([]byte(text))
	require.NoError(t, err)
	require.Empty(t, tail)

	if diff := cmp.Diff(fm, parsed); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// Contract: a ticket's metadata entries round-trip as independent
// top-level "metadata.<key>" keys, one per entry, each free to be a
// scalar, a list, or a flat object — the shape internal/store's serializer
// relies on since a single nested "metadata" object couldn't hold a
// list-valued or object-valued entry.
func Test_Frontmatter_RoundTrip_NamespacedMetadataKeys(t *testing.T) {
	t.Parallel()

	fm := ticketHeader()
	fm["metadata.external_ref"] = frontmatter.StringValue("JIRA-42")
	fm["metadata.reviewers"] = frontmatter.ListValue([]string{"bob", "carol"})
	fm["metadata.links"] = frontmatter.Value{
		Kind: frontmatter.ValueObject,
		Object: map[string]frontmatter.Scalar{
			"pr": {Kind: frontmatter.ScalarString, String: "github.com/x/y/42"},
		},
	}

	text, err := fm.MarshalYAML()
	require.NoError(t, err)

	parsed, _, err := frontmatter.ParseFrontmatter([]byte(text))
	require.NoError(t, err)

	ref, ok := parsed.GetString("metadata.external_ref")
	require.True(t, ok)
	assert.Equal(t, "JIRA-42", ref)

	reviewers, ok := parsed.GetList("metadata.reviewers")
	require.True(t, ok)
	assert.Equal(t, []string{"bob", "carol"}, reviewers)

	links := parsed["metadata.links"]
	require.Equal(t, frontmatter.ValueObject, links.Kind)
	assert.Equal(t, "github.com/x/y/42", links.Object["pr"].String)
}

// Contract: string scalars that look like another type (an int, a bool)
// or carry surrounding whitespace are quoted on output so they parse back
// as the same string, not as the type they resemble.
func Test_Marshal_QuotesAmbiguousStrings(t *testing.T) {
	t.Parallel()

	fm := ticketHeader()
	fm["metadata.build"] = frontmatter.StringValue("007")
	fm["metadata.flag"] = frontmatter.StringValue("true")
	fm["metadata.padded"] = frontmatter.StringValue("  spaced  ")

	text, err := fm.MarshalYAML()
	require.NoError(t, err)

	parsed, _, err := frontmatter.ParseFrontmatter([]byte(text))
	require.NoError(t, err)

	build, ok := parsed.GetString("metadata.build")
	require.True(t, ok, "numeric-looking string must stay a string")
	assert.Equal(t, "007", build)

	flag, ok := parsed.GetString("metadata.flag")
	require.True(t, ok, "bool-looking string must stay a string")
	assert.Equal(t, "true", flag)

	padded, ok := parsed.GetString("metadata.padded")
	require.True(t, ok)
	assert.Equal(t, "  spaced  ", padded)
}

// Contract: frontmatter marshal respects custom key order.
func Test_Marshal_RespectsKeyOrder(t *testing.T) {
	t.Parallel()

	fm := ticketHeader()

	text, err := fm.MarshalYAML(frontmatter.WithKeyOrder([]string{
		"id", "schema_version", "slug", "status", "priority", "tags",
	}))
	require.NoError(t, err)

	lines := strings.Split(text, "\n")
	require.Equal(t, "---", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "id:"))
	assert.True(t, strings.HasPrefix(lines[2], "schema_version:"))
	assert.True(t, strings.HasPrefix(lines[3], "slug:"))
	assert.True(t, strings.HasPrefix(lines[4], "status:"))
	assert.True(t, strings.HasPrefix(lines[5], "priority:"))
	assert.True(t, strings.HasPrefix(lines[6], "tags:"))
}

// Contract: id and schema_version are mandatory in every artifact header.
func Test_Marshal_RequiresIDAndSchemaVersion(t *testing.T) {
	t.Parallel()

	noID := frontmatter.Frontmatter{"schema_version": frontmatter.IntValue(1)}
	_, err := noID.MarshalYAML()
	require.ErrorContains(t, err, "missing id")

	noVersion := frontmatter.Frontmatter{"id": frontmatter.StringValue("x")}
	_, err = noVersion.MarshalYAML()
	require.ErrorContains(t, err, "missing schema_version")
}

// Contract: the tail starts after the closing delimiter, with leading
// blank lines trimmed, and is byte-identical from there on.
func Test_Parse_ReturnsBodyTail(t *testing.T) {
	t.Parallel()

	payload := "---\nid: 018f5f25\nschema_version: 1\n---\n\n# Fix login\n\nBody text.\n"

	fm, tail, err := frontmatter.ParseFrontmatter([]byte(payload))
	require.NoError(t, err)

	id, ok := fm.GetString("id")
	require.True(t, ok)
	assert.Equal(t, "018f5f25", id)

	assert.Equal(t, "# Fix login\n\nBody text.\n", string(tail))
}

// Contract: an empty fenced block is valid and yields an empty map.
func Test_Parse_EmptyBlock(t *testing.T) {
	t.Parallel()

	fm, tail, err := frontmatter.ParseFrontmatter([]byte("---\n---\nbody\n"))
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "body\n", string(tail))
}

// Contract: both fence delimiters are required by default; WithRequireDelimiter(false)
// accepts bare header text with an empty tail.
func Test_Parse_DelimiterHandling(t *testing.T) {
	t.Parallel()

	_, _, err := frontmatter.ParseFrontmatter([]byte("id: x\n---\n"))
	require.ErrorContains(t, err, "missing opening delimiter")

	_, _, err = frontmatter.ParseFrontmatter([]byte("---\nid: x\n"))
	require.ErrorContains(t, err, "missing closing delimiter")

	fm, tail, err := frontmatter.ParseFrontmatter(
		[]byte("id: x\nschema_version: 2\n"),
		frontmatter.WithRequireDelimiter(false),
	)
	require.NoError(t, err)
	assert.Empty(t, tail)

	version, ok := fm.GetInt("schema_version")
	require.True(t, ok)
	assert.Equal(t, int64(2), version)
}

// Contract: the grammar rejects what full YAML would accept — anchors,
// flow mappings, tabs, nested blocks, duplicate keys.
func Test_Parse_RejectsOutOfGrammarInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		header  string
		wantErr string
	}{
		{"anchor", "id: &a x\n", "unsupported value"},
		{"flow mapping", "id: {a: b}\n", "unsupported value"},
		{"duplicate key", "id: a\nid: b\n", "duplicate key"},
		{"tab indent", "tags:\n\t- bug\n", "tabs are not allowed"},
		{"bare indent", "  id: x\n", "unexpected indentation"},
		{"missing colon", "just-a-word\n", "missing ':'"},
		{"key with space", "bad key: x\n", "whitespace in key"},
		{"empty block", "tags:\n", "missing block value"},
		{"inconsistent indent", "tags:\n  - a\n   - b\n", "inconsistent indentation"},
		{"unterminated flow list", "tags: [a, b\n", "unterminated list"},
		{"empty flow item", "tags: [a, , b]\n", "empty list item"},
		{"duplicate object key", "links:\n  pr: a\n  pr: b\n", "duplicate object key"},
		{"empty object value", "links:\n  pr:\n", "empty object value"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := frontmatter.ParseFrontmatter([]byte("---\n" + tc.header + "---\n"))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

// Contract: flow and block lists parse to the same value, and an empty
// flow list is allowed.
func Test_Parse_ListForms(t *testing.T) {
	t.Parallel()

	flow, _, err := frontmatter.ParseFrontmatter([]byte("---\ntags: [bug, auth]\n---\n"))
	require.NoError(t, err)

	block, _, err := frontmatter.ParseFrontmatter([]byte("---\ntags:\n  - bug\n  - auth\n---\n"))
	require.NoError(t, err)

	flowTags, _ := flow.GetList("tags")
	blockTags, _ := block.GetList("tags")
	assert.Equal(t, flowTags, blockTags)

	empty, _, err := frontmatter.ParseFrontmatter([]byte("---\ntags: []\n---\n"))
	require.NoError(t, err)

	emptyTags, ok := empty.GetList("tags")
	require.True(t, ok)
	assert.Empty(t, emptyTags)
}

// Contract: quoted strings carry spaces, colons, and escapes; single
// quotes are literal.
func Test_Parse_QuotedStrings(t *testing.T) {
	t.Parallel()

	payload := "---\na: \"x: y\"\nb: 'literal \\n'\nc: \"tab\\there\"\n---\n"

	fm, _, err := frontmatter.ParseFrontmatter([]byte(payload))
	require.NoError(t, err)

	a, _ := fm.GetString("a")
	assert.Equal(t, "x: y", a)

	b, _ := fm.GetString("b")
	assert.Equal(t, `literal \n`, b)

	c, _ := fm.GetString("c")
	assert.Equal(t, "tab\there", c)
}

// Contract: a header longer than the line cap is rejected rather than
// parsed open-endedly.
func Test_Parse_EnforcesLineCap(t *testing.T) {
	t.Parallel()

	var b strings.Builder

	b.WriteString("---\n")

	for i := 0; i < 300; i++ {
		b.WriteString("key")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": v\n")
	}

	b.WriteString("---\n")

	_, _, err := frontmatter.ParseFrontmatter([]byte(b.String()))
	require.ErrorContains(t, err, "line limit")
}

// Contract: CRLF input parses identically to LF input.
func Test_Parse_AcceptsCRLF(t *testing.T) {
	t.Parallel()

	payload := "---\r\nid: 018f5f25\r\nschema_version: 1\r\n---\r\nbody\r\n"

	fm, tail, err := frontmatter.ParseFrontmatter([]byte(payload))
	require.NoError(t, err)

	id, ok := fm.GetString("id")
	require.True(t, ok)
	assert.Equal(t, "018f5f25", id)
	assert.Equal(t, "body\r\n", string(tail))
}
