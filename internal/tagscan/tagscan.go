// Package tagscan recognizes the line-level lexical elements of the formdoc
// text format: structural tags in both the bracket and comment flavors,
// checkbox marker lines, and fenced value blocks. It knows nothing about
// document structure; the parser owns nesting and semantics.
package tagscan

import (
	"fmt"
	"strings"
)

// Syntax distinguishes the two interchangeable tag spellings.
type Syntax string

const (
	SyntaxBracket Syntax = "bracket"
	SyntaxComment Syntax = "comment"
)

// Tag is one recognized structural tag line.
type Tag struct {
	Name    string
	Closing bool
	Attrs   []Attr
	Syntax  Syntax
}

// Attr is a single key=value attribute. Bare attributes ("required") have an
// empty Value and Bare set.
type Attr struct {
	Key   string
	Value string
	Bare  bool
}

// Get returns the value for a key and whether the attribute is present.
func (t *Tag) Get(key string) (string, bool) {
	for _, attr := range t.Attrs {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Has reports whether the attribute is present, bare or valued.
func (t *Tag) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// ParseTag inspects a line and, when it is a structural tag, returns the
// decoded tag. Lines that are not tags return ok=false with no error; lines
// that look like tags but are malformed return an error.
func ParseTag(line string) (*Tag, bool, error) {
	trimmed := strings.TrimSpace(line)

	var inner string
	var syntax Syntax
	switch {
	case strings.HasPrefix(trimmed, "[!") && strings.HasSuffix(trimmed, "]"):
		inner = trimmed[2 : len(trimmed)-1]
		syntax = SyntaxBracket
	case strings.HasPrefix(trimmed, "<!--") && strings.HasSuffix(trimmed, "-->"):
		body := strings.TrimSpace(trimmed[4 : len(trimmed)-3])
		if !strings.HasPrefix(body, "!") {
			return nil, false, nil // ordinary comment
		}
		inner = body[1:]
		syntax = SyntaxComment
	default:
		return nil, false, nil
	}

	closing := false
	if strings.HasPrefix(inner, "/") {
		closing = true
		inner = inner[1:]
	}

	fields, err := splitAttrs(inner)
	if err != nil {
		return nil, true, err
	}
	if len(fields) == 0 {
		return nil, true, fmt.Errorf("tagscan: empty tag")
	}

	name := fields[0]
	if name == "" || strings.Contains(name, "=") {
		return nil, true, fmt.Errorf("tagscan: tag name missing")
	}
	tag := &Tag{Name: name, Closing: closing, Syntax: syntax}
	if closing && len(fields) > 1 {
		return nil, true, fmt.Errorf("tagscan: closing tag %q carries attributes", name)
	}

	for _, raw := range fields[1:] {
		attr, err := parseAttr(raw)
		if err != nil {
			return nil, true, err
		}
		tag.Attrs = append(tag.Attrs, attr)
	}
	return tag, true, nil
}

// splitAttrs splits the tag interior on spaces while honoring double quotes.
func splitAttrs(s string) ([]string, error) {
	var out []string
	var cur strings.Builder
	inQuote := false
	escaped := false

	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}

	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune('\\')
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote || escaped {
		return nil, fmt.Errorf("tagscan: unterminated quoted attribute")
	}
	flush()
	return out, nil
}

func parseAttr(raw string) (Attr, error) {
	key, value, found := strings.Cut(raw, "=")
	if key == "" {
		return Attr{}, fmt.Errorf("tagscan: attribute with empty key")
	}
	if !found {
		return Attr{Key: key, Bare: true}, nil
	}
	unquoted, err := unquote(value)
	if err != nil {
		return Attr{}, fmt.Errorf("tagscan: attribute %q: %w", key, err)
	}
	return Attr{Key: key, Value: unquoted}, nil
}

func unquote(value string) (string, error) {
	if !strings.HasPrefix(value, "\"") {
		if strings.Contains(value, "\"") {
			return "", fmt.Errorf("stray quote in bare value")
		}
		return value, nil
	}
	if len(value) < 2 || !strings.HasSuffix(value, "\"") {
		return "", fmt.Errorf("unterminated quote")
	}
	inner := value[1 : len(value)-1]
	var out strings.Builder
	escaped := false
	for _, r := range inner {
		switch {
		case escaped:
			if r != '"' && r != '\\' {
				return "", fmt.Errorf("unsupported escape %q", string(r))
			}
			out.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return "", fmt.Errorf("unescaped quote")
		default:
			out.WriteRune(r)
		}
	}
	if escaped {
		return "", fmt.Errorf("dangling escape")
	}
	return out.String(), nil
}

// Quote renders an attribute value in canonical form: bare when it contains
// no whitespace or quotes, double-quoted otherwise.
func Quote(value string) string {
	if value != "" && !strings.ContainsAny(value, " \t\"\\") {
		return value
	}
	var out strings.Builder
	out.WriteByte('"')
	for _, r := range value {
		if r == '"' || r == '\\' {
			out.WriteByte('\\')
		}
		out.WriteRune(r)
	}
	out.WriteByte('"')
	return out.String()
}
