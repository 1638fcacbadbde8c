package harness

import (
	"time"

	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// State is where a session sits in its lifecycle.
type State string

const (
	// StateActive means the session can still run turns.
	StateActive State = "active"
	// StateComplete means inspection reports no required issues.
	StateComplete State = "complete"
	// StateStalled means the session ended without completing: the turn
	// budget ran out, a turn produced no patches and no rejections to learn
	// from, or two turns in a row applied nothing.
	StateStalled State = "stalled"
)

// Transcript is the full record of one session: input identity, limits,
// every turn as it ran, and the final assertion. It is self-contained enough
// that Replay can verify it against nothing but the original document text.
type Transcript struct {
	SessionID string    `json:"session_id"`
	FormID    string    `json:"form_id"`
	InputHash string    `json:"input_hash"`
	Config    Config    `json:"config"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished,omitempty"`
	Turns     []Turn    `json:"turns"`
	Final     State     `json:"final,omitempty"`
	FinalHash string    `json:"final_hash,omitempty"`
}

// Turn records one agent exchange. Proposed holds the batch as applied
// (after budget truncation); NoteIDs pins generated note ids so replay can
// reproduce them.
type Turn struct {
	Index      int                `json:"index"`
	Issues     []inspect.Issue    `json:"issues"`
	Proposed   []patch.Patch      `json:"proposed"`
	Truncated  bool               `json:"truncated,omitempty"`
	Applied    int                `json:"applied"`
	Rejections []*patch.Rejection `json:"rejections,omitempty"`
	NoteIDs    []string           `json:"note_ids,omitempty"`
	Hash       string             `json:"hash"`
	Stats      Stats              `json:"stats,omitempty"`
}
