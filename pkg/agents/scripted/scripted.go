// Package scripted implements a deterministic agent that plays back a fixed
// sequence of patch batches, one per turn. It backs tests and transcript
// tooling; there is no decision logic, only the script.
package scripted

import (
	"context"

	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// Agent replays its batches in order. Once the script runs out it proposes
// empty turns, which the harness treats as no progress.
type Agent struct {
	turns [][]patch.Patch
	next  int
}

// New builds an agent from per-turn batches.
func New(turns ...[]patch.Patch) *Agent {
	return &Agent{turns: turns}
}

// FromTranscript builds an agent that re-proposes a recorded session's
// batches verbatim.
func FromTranscript(tr *harness.Transcript) *Agent {
	a := &Agent{}
	for _, turn := range tr.Turns {
		a.turns = append(a.turns, turn.Proposed)
	}
	return a
}

// Propose returns the next scripted batch.
func (a *Agent) Propose(ctx context.Context, req harness.Request) (*harness.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.next >= len(a.turns) {
		return &harness.Response{}, nil
	}
	batch := a.turns[a.next]
	a.next++
	return &harness.Response{Patches: batch}, nil
}

// Remaining reports how many scripted turns are left.
func (a *Agent) Remaining() int {
	return len(a.turns) - a.next
}

// Func adapts a plain function to the agent capability, for tests that need
// behavior a static script cannot express.
type Func func(ctx context.Context, req harness.Request) (*harness.Response, error)

// Propose calls the wrapped function.
func (f Func) Propose(ctx context.Context, req harness.Request) (*harness.Response, error) {
	return f(ctx, req)
}
