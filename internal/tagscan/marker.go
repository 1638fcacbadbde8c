package tagscan

import (
	"strings"
)

// Marker is one checkbox marker line, e.g. "- [x] Ship it {#ship}".
type Marker struct {
	Mark     string
	Label    string
	OptionID string
}

// ParseMarker inspects a line and returns the decoded marker when the line is
// a checkbox marker. The marker must start with a dash bullet indented at
// most three spaces, followed by a single-character bracket state.
func ParseMarker(line string) (*Marker, bool) {
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return nil, false
	}
	rest := line[indent:]
	if !strings.HasPrefix(rest, "- [") {
		return nil, false
	}
	rest = rest[len("- ["):]
	if len(rest) < 2 || rest[1] != ']' {
		return nil, false
	}
	mark := string(rest[0])
	label := strings.TrimSpace(rest[2:])

	marker := &Marker{Mark: mark, Label: label}
	if idx := strings.LastIndex(label, "{#"); idx >= 0 && strings.HasSuffix(label, "}") {
		marker.OptionID = label[idx+2 : len(label)-1]
		marker.Label = strings.TrimSpace(label[:idx])
	}
	return marker, true
}

// Slug derives an option id from a label: lowercase, alphanumerics kept,
// everything else collapsed to single dashes.
func Slug(label string) string {
	var out strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && out.Len() > 0 {
				out.WriteByte('-')
			}
			dash = false
			out.WriteRune(r)
		default:
			dash = true
		}
	}
	if out.Len() == 0 {
		return "option"
	}
	return out.String()
}
