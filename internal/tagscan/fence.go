package tagscan

import (
	"strings"
)

// Fence describes the opening line of a fenced value block.
type Fence struct {
	Char   byte
	Length int
	Info   string
}

// FenceChars are the candidate fence characters in preference order.
var FenceChars = []byte{'`', '~'}

// ParseFenceOpen inspects a line and returns the fence descriptor when the
// line opens a fenced block: at least three of the same fence character,
// indented at most three spaces, followed by an optional info string.
func ParseFenceOpen(line string) (*Fence, bool) {
	indent := 0
	for indent < len(line) && line[indent] == ' ' {
		indent++
	}
	if indent > 3 || indent == len(line) {
		return nil, false
	}
	char := line[indent]
	if char != '`' && char != '~' {
		return nil, false
	}
	length := 0
	for indent+length < len(line) && line[indent+length] == char {
		length++
	}
	if length < 3 {
		return nil, false
	}
	info := strings.TrimSpace(line[indent+length:])
	if char == '`' && strings.ContainsRune(info, '`') {
		return nil, false
	}
	return &Fence{Char: char, Length: length, Info: info}, true
}

// Closes reports whether the line closes the fence: a run of at least the
// opening length of the same character with nothing but spaces around it.
func (f *Fence) Closes(line string) bool {
	trimmed := strings.TrimRight(line, " ")
	indent := 0
	for indent < len(trimmed) && trimmed[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return false
	}
	run := trimmed[indent:]
	if len(run) < f.Length {
		return false
	}
	for i := 0; i < len(run); i++ {
		if run[i] != f.Char {
			return false
		}
	}
	return true
}

// MaxRun returns, for each candidate fence character, the longest run of that
// character appearing at line start (indent at most three) anywhere in the
// value. The serializer uses it to pick a collision-free fence.
func MaxRun(value string) map[byte]int {
	runs := map[byte]int{'`': 0, '~': 0}
	for _, line := range strings.Split(value, "\n") {
		indent := 0
		for indent < len(line) && line[indent] == ' ' {
			indent++
		}
		if indent > 3 || indent == len(line) {
			continue
		}
		char := line[indent]
		if _, tracked := runs[char]; !tracked {
			continue
		}
		length := 0
		for indent+length < len(line) && line[indent+length] == char {
			length++
		}
		if length > runs[char] {
			runs[char] = length
		}
	}
	return runs
}
