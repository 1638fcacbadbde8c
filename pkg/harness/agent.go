package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// Agent is the single suspension point of a session. The harness hands it
// the outstanding issues and waits; whether the answers come from a human, a
// script, or a model is invisible to the loop.
type Agent interface {
	Propose(ctx context.Context, req Request) (*Response, error)
}

// Request is what an agent sees each turn. Issues are already ranked and
// capped to the turn budget; Rejections carry the previous turn's refused
// patches so the agent can correct them instead of repeating the mistake.
type Request struct {
	Turn         int                `json:"turn"`
	Title        string             `json:"title,omitempty"`
	Instructions map[string]string  `json:"instructions,omitempty"`
	Issues       []inspect.Issue    `json:"issues"`
	Rejections   []*patch.Rejection `json:"rejections,omitempty"`
	// MaxPatches is the largest batch the harness will accept this turn.
	MaxPatches int `json:"max_patches"`
}

// Response is an agent's proposed batch for one turn.
type Response struct {
	Patches []patch.Patch `json:"patches"`
	Stats   Stats         `json:"stats,omitempty"`
}

// Stats is optional per-turn accounting reported by the agent. Volatile by
// nature; replay normalizes it away before comparing transcripts.
type Stats struct {
	PromptTokens int           `json:"prompt_tokens,omitempty"`
	ReplyTokens  int           `json:"reply_tokens,omitempty"`
	Elapsed      time.Duration `json:"elapsed,omitempty"`
}

// AgentError wraps a failure inside an agent. The turn it interrupted is
// abandoned with no partial application; Retryable tells the caller whether
// running the same turn again can succeed.
type AgentError struct {
	Retryable bool
	Err       error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("harness: agent: %v", e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }
