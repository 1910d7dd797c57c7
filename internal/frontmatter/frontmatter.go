// Package frontmatter parses and serializes the restricted YAML subset used
// for the header block of every ticket and project-state artifact.
//
// The grammar is deliberately small so that parsing is deterministic and a
// document can never mean two things: scalars (string, int64, bool), lists
// of strings, and flat string-keyed objects of scalars. A complete header
// looks like:
//
//	---
//	id: 018f5f25-7e7d-7f0a-8c5c-123456789abc
//	schema_version: 1
//	slug: 202603050900-fix-login
//	status: todo
//	priority: high
//	tags:
//	  - bug
//	  - auth
//	assignee: alice
//	metadata.external_ref: JIRA-42
//	metadata.reviewers: [bob, carol]
//	metadata.links:
//	  pr: github.com/x/y/42
//	---
//
// Anchors, aliases, tags, flow mappings, multi-line strings, and nested
// lists/objects are all rejected. A general YAML parser would accept those
// constructs; the whole point of this package is that it does not. There is
// no null or float type: a value such as null or 1.5 reads back as a plain
// string.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ScalarKind discriminates the scalar types the grammar accepts.
type ScalarKind uint8

const (
	ScalarString ScalarKind = iota
	ScalarInt
	ScalarBool
)

// Scalar is one typed leaf value. Exactly the field named by Kind is
// meaningful.
type Scalar struct {
	Kind   ScalarKind
	String string
	Int    int64
	Bool   bool
}

// ValueKind discriminates the three shapes a top-level value can take.
type ValueKind uint8

const (
	ValueScalar ValueKind = iota
	ValueList
	ValueObject
)

// Value is one top-level frontmatter value. Object is flat: its values are
// Scalars, never another Value, so the grammar cannot nest. A caller that
// needs a list- or object-valued entry inside a conceptual group (the
// store's ticket metadata) gives each entry its own top-level key instead.
type Value struct {
	Kind   ValueKind
	Scalar Scalar
	List   []string
	Object map[string]Scalar
}

// StringValue wraps s as a string-scalar Value.
func StringValue(s string) Value {
	return Value{Kind: ValueScalar, Scalar: Scalar{Kind: ScalarString, String: s}}
}

// IntValue wraps i as an int-scalar Value.
func IntValue(i int64) Value {
	return Value{Kind: ValueScalar, Scalar: Scalar{Kind: ScalarInt, Int: i}}
}

// ListValue wraps items as a string-list Value.
func ListValue(items []string) Value {
	return Value{Kind: ValueList, List: items}
}

// Frontmatter maps top-level keys to parsed values.
type Frontmatter map[string]Value

// GetString returns the string scalar at key, or ("", false) when key is
// absent or holds a different shape.
func (fm Frontmatter) GetString(key string) (string, bool) {
	v, ok := fm[key]
	if !ok || v.Kind != ValueScalar || v.Scalar.Kind != ScalarString {
		return "", false
	}

	return v.Scalar.String, true
}

// GetInt returns the int scalar at key, or (0, false) when key is absent or
// holds a different shape.
func (fm Frontmatter) GetInt(key string) (int64, bool) {
	v, ok := fm[key]
	if !ok || v.Kind != ValueScalar || v.Scalar.Kind != ScalarInt {
		return 0, false
	}

	return v.Scalar.Int, true
}

// GetList returns the string list at key, or (nil, false) when key is
// absent or holds a different shape.
func (fm Frontmatter) GetList(key string) ([]string, bool) {
	v, ok := fm[key]
	if !ok || v.Kind != ValueList {
		return nil, false
	}

	return v.List, true
}

// MarshalOption configures MarshalYAML.
type MarshalOption func(*marshalConfig)

type marshalConfig struct {
	keyOrder []string
}

// WithKeyOrder fixes the exact output key order. Keys present in the map
// but absent from the order are an error, as is the reverse: the caller
// owns the complete ordering or none of it.
func WithKeyOrder(keys []string) MarshalOption {
	return func(cfg *marshalConfig) { cfg.keyOrder = keys }
}

// MarshalYAML renders the map between "---" fence lines, deterministically.
// Without WithKeyOrder, keys are emitted alphabetically with "id" and
// "schema_version" hoisted to the front. Both of those keys are mandatory
// in every artifact this store writes, so their absence is an error here
// rather than a surprise at parse time.
//
// String scalars that would not re-parse verbatim (they look like an int, a
// bool, a list, or carry surrounding whitespace or control characters) are
// emitted double-quoted, so serialize-then-parse returns the same typed
// value for every input.
func (fm Frontmatter) MarshalYAML(opts ...MarshalOption) (string, error) {
	var cfg marshalConfig

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if fm == nil {
		return "", errors.New("marshal frontmatter: nil map")
	}

	if _, ok := fm["id"]; !ok {
		return "", errors.New("marshal frontmatter: missing id")
	}

	if _, ok := fm["schema_version"]; !ok {
		return "", errors.New("marshal frontmatter: missing schema_version")
	}

	order := cfg.keyOrder
	if order == nil {
		order = defaultKeyOrder(fm)
	}

	var b strings.Builder

	b.WriteString("---\n")

	for _, key := range order {
		value, ok := fm[key]
		if !ok {
			return "", fmt.Errorf("marshal frontmatter: ordered key %q not in map", key)
		}

		if err := writeEntry(&b, key, value); err != nil {
			return "", err
		}
	}

	b.WriteString("---\n")

	return b.String(), nil
}

func defaultKeyOrder(fm Frontmatter) []string {
	keys := make([]string, 0, len(fm))

	for key := range fm {
		if key != "id" && key != "schema_version" {
			keys = append(keys, key)
		}
	}

	slices.Sort(keys)

	return append([]string{"id", "schema_version"}, keys...)
}

func writeEntry(b *strings.Builder, key string, value Value) error {
	b.WriteString(key)
	b.WriteString(":")

	switch value.Kind {
	case ValueScalar:
		b.WriteString(" ")
		b.WriteString(renderScalar(value.Scalar))
		b.WriteString("\n")

		return nil
	case ValueList:
		if len(value.List) == 0 {
			b.WriteString(" []\n")

			return nil
		}

		b.WriteString("\n")

		for _, item := range value.List {
			if item == "" {
				return fmt.Errorf("marshal frontmatter: %s: empty list item", key)
			}

			b.WriteString("  - ")
			b.WriteString(renderString(item))
			b.WriteString("\n")
		}

		return nil
	case ValueObject:
		if len(value.Object) == 0 {
			return fmt.Errorf("marshal frontmatter: %s: empty object", key)
		}

		b.WriteString("\n")

		objKeys := make([]string, 0, len(value.Object))
		for objKey := range value.Object {
			objKeys = append(objKeys, objKey)
		}

		slices.Sort(objKeys)

		for _, objKey := range objKeys {
			b.WriteString("  ")
			b.WriteString(objKey)
			b.WriteString(": ")
			b.WriteString(renderScalar(value.Object[objKey]))
			b.WriteString("\n")
		}

		return nil
	default:
		return fmt.Errorf("marshal frontmatter: %s: unsupported value kind %d", key, value.Kind)
	}
}

func renderScalar(s Scalar) string {
	switch s.Kind {
	case ScalarInt:
		return strconv.FormatInt(s.Int, 10)
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	default:
		return renderString(s.String)
	}
}

// renderString emits s raw when it would parse back as the identical string
// scalar, quoted otherwise. Quoting is the exception, not the rule: plain
// identifiers, slugs, and timestamps all pass through untouched.
func renderString(s string) string {
	if stringSurvivesRaw(s) {
		return s
	}

	return strconv.Quote(s)
}

func stringSurvivesRaw(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return false
	}

	if strings.ContainsAny(s, "\n\r\t\"'") {
		return false
	}

	parsed, err := parseScalar([]byte(s))
	if err != nil {
		return false
	}

	return parsed.Kind == ScalarString && parsed.String == s
}

// maxHeaderLines bounds the frontmatter block. A header past this size is a
// corrupt or hostile file, not a ticket.
const maxHeaderLines = 200

// ParseOption configures ParseFrontmatter.
type ParseOption func(*parseConfig)

type parseConfig struct {
	requireDelimiter bool
}

// WithRequireDelimiter controls whether the input must be fenced by "---"
// lines. When false the whole input is treated as header with an empty
// tail.
func WithRequireDelimiter(required bool) ParseOption {
	return func(cfg *parseConfig) { cfg.requireDelimiter = required }
}

// ParseFrontmatter parses the header block of src and returns the parsed
// map plus the tail: the bytes after the closing delimiter with leading
// blank lines removed. An empty block ("---\n---\n") is valid and yields an
// empty map. By default the fence delimiters are required.
func ParseFrontmatter(src []byte, opts ...ParseOption) (Frontmatter, []byte, error) {
	cfg := parseConfig{requireDelimiter: true}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	cur := &cursor{src: src}

	if cfg.requireDelimiter {
		first, ok := cur.next()
		if !ok || !bytes.Equal(first.text, delimiter) {
			return nil, nil, errors.New("parse frontmatter: missing opening delimiter")
		}
	}

	p := &parser{cur: cur, fenced: cfg.requireDelimiter}

	fm, closed, err := p.parseHeader()
	if err != nil {
		return nil, nil, err
	}

	if cfg.requireDelimiter && !closed {
		return nil, nil, errors.New("parse frontmatter: missing closing delimiter")
	}

	tail := cur.rest()
	if cfg.requireDelimiter {
		tail = trimBlankPrefix(tail)
	}

	return fm, tail, nil
}

var delimiter = []byte("---")

// line is one header line with its 1-based position for diagnostics.
type line struct {
	text []byte
	num  int
}

// cursor walks src line by line and supports pushing one line back, which
// is how block parsing hands a dedented line to its caller.
type cursor struct {
	src    []byte
	offset int
	num    int
	pushed *line
}

func (c *cursor) next() (line, bool) {
	if c.pushed != nil {
		out := *c.pushed
		c.pushed = nil

		return out, true
	}

	if c.offset >= len(c.src) {
		return line{}, false
	}

	start := c.offset
	for c.offset < len(c.src) && c.src[c.offset] != '\n' {
		c.offset++
	}

	text := c.src[start:c.offset]
	if c.offset < len(c.src) {
		c.offset++ // consume the newline
	}

	if len(text) > 0 && text[len(text)-1] == '\r' {
		text = text[:len(text)-1]
	}

	c.num++

	return line{text: text, num: c.num}, true
}

func (c *cursor) unread(l line) {
	c.pushed = &l
}

func (c *cursor) rest() []byte {
	if c.offset >= len(c.src) {
		return nil
	}

	return c.src[c.offset:]
}

type parser struct {
	cur    *cursor
	fenced bool
	lines  int
}

// parseHeader consumes lines until the closing delimiter (fenced) or EOF.
// The bool result reports whether a closing delimiter was seen.
func (p *parser) parseHeader() (Frontmatter, bool, error) {
	out := make(Frontmatter)

	for {
		l, ok := p.cur.next()
		if !ok {
			return out, false, nil
		}

		if p.fenced && bytes.Equal(l.text, delimiter) {
			return out, true, nil
		}

		if err := p.countLine(); err != nil {
			return nil, false, err
		}

		if len(bytes.TrimSpace(l.text)) == 0 {
			continue
		}

		if l.text[0] == ' ' || l.text[0] == '\t' {
			return nil, false, parseErr(l.num, "unexpected indentation")
		}

		key, inline, err := splitKeyLine(l)
		if err != nil {
			return nil, false, err
		}

		if _, exists := out[key]; exists {
			return nil, false, parseErr(l.num, "duplicate key")
		}

		value, err := p.parseValue(l, inline)
		if err != nil {
			return nil, false, err
		}

		out[key] = value
	}
}

// splitKeyLine cuts "key: value" at the first colon and validates the key.
func splitKeyLine(l line) (string, []byte, error) {
	keyRaw, rest, ok := bytes.Cut(l.text, []byte{':'})
	if !ok {
		return "", nil, parseErr(l.num, "missing ':'")
	}

	key := bytes.TrimSpace(keyRaw)
	if len(key) == 0 {
		return "", nil, parseErr(l.num, "empty key")
	}

	if bytes.ContainsAny(key, " \t") {
		return "", nil, parseErr(l.num, "whitespace in key")
	}

	return string(key), bytes.TrimSpace(rest), nil
}

// parseValue handles the value side of a top-level entry: an inline scalar
// or flow list on the key's own line, or a block (list or object) indented
// below it.
func (p *parser) parseValue(keyLine line, inline []byte) (Value, error) {
	if len(inline) > 0 {
		if inline[0] == '[' {
			if inline[len(inline)-1] != ']' {
				return Value{}, parseErr(keyLine.num, "unterminated list")
			}

			list, err := parseFlowList(inline)
			if err != nil {
				return Value{}, parseErr(keyLine.num, err.Error())
			}

			return Value{Kind: ValueList, List: list}, nil
		}

		scalar, err := parseScalar(inline)
		if err != nil {
			return Value{}, parseErr(keyLine.num, err.Error())
		}

		return Value{Kind: ValueScalar, Scalar: scalar}, nil
	}

	first, ok, err := p.nextContentLine()
	if err != nil {
		return Value{}, err
	}

	if !ok {
		return Value{}, parseErr(keyLine.num, "missing block value")
	}

	indent, hasTab := measureIndent(first.text)
	if hasTab {
		return Value{}, parseErr(first.num, "tabs are not allowed")
	}

	if indent == 0 {
		return Value{}, parseErr(first.num, "expected indented block")
	}

	body := first.text[indent:]
	if len(body) >= 2 && body[0] == '-' && body[1] == ' ' {
		list, err := p.parseBlockList(first, indent)
		if err != nil {
			return Value{}, err
		}

		return Value{Kind: ValueList, List: list}, nil
	}

	obj, err := p.parseBlockObject(first, indent)
	if err != nil {
		return Value{}, err
	}

	return Value{Kind: ValueObject, Object: obj}, nil
}

// nextContentLine skips blank lines and returns the next meaningful one.
// The closing delimiter is pushed back for parseHeader to see.
func (p *parser) nextContentLine() (line, bool, error) {
	for {
		l, ok := p.cur.next()
		if !ok {
			return line{}, false, nil
		}

		if p.fenced && bytes.Equal(l.text, delimiter) {
			p.cur.unread(l)

			return line{}, false, nil
		}

		if err := p.countLine(); err != nil {
			return line{}, false, err
		}

		if len(bytes.TrimSpace(l.text)) > 0 {
			return l, true, nil
		}
	}
}

// parseBlockList consumes "- item" lines at the given indent. A dedented
// line ends the list and is handed back to the caller; a different indent
// at the same depth is an error, not a nested structure.
func (p *parser) parseBlockList(first line, indent int) ([]string, error) {
	items := []string{}

	for current, ok := first, true; ok; {
		lineIndent, hasTab := measureIndent(current.text)

		switch {
		case hasTab:
			return nil, parseErr(current.num, "tabs are not allowed")
		case lineIndent < indent:
			p.cur.unread(current)

			return items, nil
		case lineIndent != indent:
			return nil, parseErr(current.num, "inconsistent indentation")
		}

		body := current.text[indent:]
		if len(body) < 2 || body[0] != '-' || body[1] != ' ' {
			return nil, parseErr(current.num, "expected list item")
		}

		raw := bytes.TrimSpace(body[2:])
		if len(raw) == 0 {
			return nil, parseErr(current.num, "empty list item")
		}

		item, err := parseString(raw)
		if err != nil {
			return nil, parseErr(current.num, err.Error())
		}

		items = append(items, item)

		current, ok, err = p.nextContentLine()
		if err != nil {
			return nil, err
		}
	}

	return items, nil
}

// parseBlockObject consumes "key: scalar" lines at the given indent.
func (p *parser) parseBlockObject(first line, indent int) (map[string]Scalar, error) {
	obj := make(map[string]Scalar)

	for current, ok := first, true; ok; {
		lineIndent, hasTab := measureIndent(current.text)

		switch {
		case hasTab:
			return nil, parseErr(current.num, "tabs are not allowed")
		case lineIndent < indent:
			p.cur.unread(current)

			return obj, nil
		case lineIndent != indent:
			return nil, parseErr(current.num, "inconsistent indentation")
		}

		entry := line{text: current.text[indent:], num: current.num}

		key, raw, err := splitKeyLine(entry)
		if err != nil {
			return nil, err
		}

		if len(raw) == 0 {
			return nil, parseErr(current.num, "empty object value")
		}

		if _, exists := obj[key]; exists {
			return nil, parseErr(current.num, "duplicate object key")
		}

		scalar, err := parseScalar(raw)
		if err != nil {
			return nil, parseErr(current.num, err.Error())
		}

		obj[key] = scalar

		current, ok, err = p.nextContentLine()
		if err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func (p *parser) countLine() error {
	p.lines++
	if p.lines > maxHeaderLines {
		return errors.New("parse frontmatter: exceeds maximum line limit")
	}

	return nil
}

// parseFlowList parses an inline "[a, b, c]" list. Splitting is on raw
// commas, so an item cannot contain one even when quoted; MarshalYAML only
// ever emits block lists, where that limitation does not exist.
func parseFlowList(value []byte) ([]string, error) {
	inner := bytes.TrimSpace(value[1 : len(value)-1])
	if len(inner) == 0 {
		return []string{}, nil
	}

	parts := bytes.Split(inner, []byte{','})
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		raw := bytes.TrimSpace(part)
		if len(raw) == 0 {
			return nil, errors.New("empty list item")
		}

		item, err := parseString(raw)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, nil
}

// parseScalar types a raw value: bool, then int, then string. A leading
// YAML metacharacter is rejected outright rather than guessed at.
func parseScalar(raw []byte) (Scalar, error) {
	if len(raw) == 0 {
		return Scalar{}, errors.New("empty scalar")
	}

	switch raw[0] {
	case '[', ']', '{', '}', '|', '>', '&', '*', '!', '%', '@', '`':
		return Scalar{}, errors.New("unsupported value")
	case '-':
		if len(raw) >= 2 && raw[1] == ' ' {
			return Scalar{}, errors.New("unsupported value")
		}
	}

	if s := string(raw); s == "true" || s == "false" {
		return Scalar{Kind: ScalarBool, Bool: s == "true"}, nil
	}

	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return Scalar{Kind: ScalarInt, Int: n}, nil
	}

	s, err := parseString(raw)
	if err != nil {
		return Scalar{}, err
	}

	return Scalar{Kind: ScalarString, String: s}, nil
}

// parseString unquotes a double- ("a b", full escape support) or single-
// ('a b', literal) quoted value; anything else passes through as-is.
func parseString(raw []byte) (string, error) {
	switch {
	case raw[0] == '"':
		if len(raw) < 2 || raw[len(raw)-1] != '"' {
			return "", errors.New("unterminated quoted string")
		}

		s, err := strconv.Unquote(string(raw))
		if err != nil {
			return "", errors.New("invalid quoted string")
		}

		return s, nil
	case raw[0] == '\'':
		if len(raw) < 2 || raw[len(raw)-1] != '\'' {
			return "", errors.New("unterminated quoted string")
		}

		return string(raw[1 : len(raw)-1]), nil
	default:
		return string(raw), nil
	}
}

func measureIndent(text []byte) (int, bool) {
	for i, c := range text {
		switch c {
		case ' ':
			continue
		case '\t':
			return 0, true
		default:
			return i, false
		}
	}

	return len(text), false
}

func trimBlankPrefix(tail []byte) []byte {
	for len(tail) > 0 {
		switch {
		case tail[0] == '\n':
			tail = tail[1:]
		case tail[0] == '\r' && len(tail) >= 2 && tail[1] == '\n':
			tail = tail[2:]
		default:
			return tail
		}
	}

	return tail
}

func parseErr(lineNum int, msg string) error {
	return fmt.Errorf("parse frontmatter line %d: %s", lineNum, msg)
}
