package serializer

import (
	"strings"

	"github.com/goliatone/go-formdoc/internal/tagscan"
)

// chooseFence picks the fence character and opening length for a literal
// value block. For each candidate character it finds the longest run
// appearing at line start (indent at most three) inside the value, prefers
// the character with the smaller maximum run, and opens with
// max(3, maxRun+1) characters so the content can never close the fence
// early.
func chooseFence(value string) (byte, int) {
	runs := tagscan.MaxRun(value)

	char := tagscan.FenceChars[0]
	best := runs[char]
	for _, candidate := range tagscan.FenceChars[1:] {
		if runs[candidate] < best {
			char = candidate
			best = runs[candidate]
		}
	}

	length := best + 1
	if length < 3 {
		length = 3
	}
	return char, length
}

// needsRawMarker reports whether the value contains structural tag syntax and
// must therefore be marked "do not interpret" so it round-trips as inert
// literal text.
func needsRawMarker(value string) bool {
	for _, line := range strings.Split(value, "\n") {
		if _, isTag, _ := tagscan.ParseTag(line); isTag {
			return true
		}
	}
	return false
}
