package schema

import (
	"strings"

	"github.com/google/uuid"
)

// Note is a free-text annotation attached to a form, group, field, or
// field#option reference. Notes never affect completion; they only ride along
// through serialization.
type Note struct {
	ID   string
	Ref  string
	By   string
	Text string
}

// NewNoteID generates a fresh note identifier.
func NewNoteID() string {
	return "note-" + uuid.NewString()
}

// SplitRef splits a note reference into its node id and optional option id.
func SplitRef(ref string) (nodeID, optionID string) {
	nodeID, optionID, _ = strings.Cut(ref, "#")
	return nodeID, optionID
}
