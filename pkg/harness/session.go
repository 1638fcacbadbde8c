// Package harness drives a document to completion through repeated agent
// turns. Each turn inspects the document, shows the agent a bounded slice of
// the outstanding issues, applies the agent's proposed patches through the
// patch engine, and records the exchange in a transcript. The loop owns all
// mutation; agents only ever see requests and answer with patches.
package harness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formdoc/pkg/inspect"
	"github.com/goliatone/go-formdoc/pkg/patch"
	"github.com/goliatone/go-formdoc/pkg/schema"
	"github.com/goliatone/go-formdoc/pkg/serializer"
)

// ErrNotActive is returned by Step on a session that already finished.
var ErrNotActive = errors.New("harness: session is not active")

// Session owns one document for the duration of a run. It is not safe for
// concurrent use; one session, one goroutine.
type Session struct {
	doc        *schema.Document
	agent      Agent
	cfg        Config
	transcript *Transcript
	state      State

	// rejections carried from the previous turn into the next request.
	rejections []*patch.Rejection
	// prevZero remembers whether the previous turn applied nothing.
	prevZero bool

	now func() time.Time
}

// Option configures a session.
type Option func(*Session)

// WithConfig replaces the default limits.
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithSessionID pins the session id instead of generating one.
func WithSessionID(id string) Option {
	return func(s *Session) { s.transcript.SessionID = id }
}

// WithClock replaces the transcript clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession binds a parsed document to an agent under the given limits.
func NewSession(doc *schema.Document, agent Agent, opts ...Option) (*Session, error) {
	if doc == nil || doc.Form == nil {
		return nil, fmt.Errorf("harness: session requires a parsed document")
	}
	if agent == nil {
		return nil, fmt.Errorf("harness: session requires an agent")
	}

	s := &Session{
		doc:        doc,
		agent:      agent,
		cfg:        DefaultConfig(),
		state:      StateActive,
		transcript: &Transcript{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	hash, err := serializer.Hash(doc)
	if err != nil {
		return nil, fmt.Errorf("harness: input hash: %w", err)
	}
	if s.transcript.SessionID == "" {
		s.transcript.SessionID = uuid.NewString()
	}
	s.transcript.FormID = doc.Form.ID
	s.transcript.InputHash = hash
	s.transcript.Config = s.cfg
	s.transcript.Started = s.now()
	return s, nil
}

// Document returns the session's document. Callers must not mutate it while
// the session is active.
func (s *Session) Document() *schema.Document { return s.doc }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Transcript returns the record accumulated so far.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Step runs exactly one turn. An agent failure abandons the turn with no
// partial application and leaves the session active, so a caller may retry
// when the error is retryable.
func (s *Session) Step(ctx context.Context) (State, error) {
	if s.state != StateActive {
		return s.state, ErrNotActive
	}
	if err := ctx.Err(); err != nil {
		return s.state, err
	}

	result := inspect.Inspect(s.doc)
	if result.Complete {
		return s.finish(StateComplete)
	}
	if len(s.transcript.Turns) >= s.cfg.MaxTurns {
		return s.finish(StateStalled)
	}

	issues := s.filterRoles(result.Issues)
	if len(issues) > s.cfg.MaxIssuesPerTurn {
		issues = issues[:s.cfg.MaxIssuesPerTurn]
	}

	req := Request{
		Turn:         len(s.transcript.Turns) + 1,
		Title:        s.doc.Title,
		Instructions: s.doc.Instructions,
		Issues:       issues,
		Rejections:   s.rejections,
		MaxPatches:   s.cfg.MaxPatchesPerTurn,
	}

	resp, err := s.agent.Propose(ctx, req)
	if err != nil {
		var agentErr *AgentError
		if !errors.As(err, &agentErr) {
			agentErr = &AgentError{Err: err}
		}
		return s.state, agentErr
	}
	if resp == nil {
		return s.state, &AgentError{Err: errors.New("agent returned no response")}
	}

	proposed := resp.Patches
	truncated := false
	if len(proposed) > s.cfg.MaxPatchesPerTurn {
		proposed = proposed[:s.cfg.MaxPatchesPerTurn]
		truncated = true
	}

	applied := patch.Apply(s.doc, proposed)
	hash, err := serializer.Hash(s.doc)
	if err != nil {
		return s.state, fmt.Errorf("harness: turn hash: %w", err)
	}

	s.transcript.Turns = append(s.transcript.Turns, Turn{
		Index:      req.Turn,
		Issues:     issues,
		Proposed:   proposed,
		Truncated:  truncated,
		Applied:    applied.Applied,
		Rejections: applied.Rejections,
		NoteIDs:    applied.NoteIDs,
		Hash:       hash,
		Stats:      resp.Stats,
	})
	s.rejections = applied.Rejections

	zero := applied.Applied == 0
	switch post := inspect.Inspect(s.doc); {
	case post.Complete:
		return s.finish(StateComplete)
	case zero && (len(applied.Rejections) == 0 || s.prevZero):
		// A fully rejected turn gets one more chance: the rejections go back
		// to the agent, which may correct itself. A turn that produced
		// nothing at all, or a second zero-progress turn in a row, is a loop.
		return s.finish(StateStalled)
	case len(s.transcript.Turns) >= s.cfg.MaxTurns:
		return s.finish(StateStalled)
	}
	s.prevZero = zero
	return s.state, nil
}

// filterRoles withholds issues on fields owned by roles this session does not
// fill. Fields without a role belong to everyone.
func (s *Session) filterRoles(issues []inspect.Issue) []inspect.Issue {
	if len(s.cfg.Roles) == 0 {
		return issues
	}
	allowed := make(map[string]bool, len(s.cfg.Roles))
	for _, role := range s.cfg.Roles {
		allowed[role] = true
	}
	filtered := make([]inspect.Issue, 0, len(issues))
	for _, issue := range issues {
		id, _ := schema.SplitRef(issue.Ref)
		if field, ok := s.doc.Field(id); ok && field.Role != "" && !allowed[field.Role] {
			continue
		}
		filtered = append(filtered, issue)
	}
	return filtered
}

// Run steps until the session leaves the active state. The transcript is
// returned even on error so callers can persist partial runs.
func (s *Session) Run(ctx context.Context) (*Transcript, error) {
	for s.state == StateActive {
		if _, err := s.Step(ctx); err != nil {
			return s.transcript, err
		}
	}
	return s.transcript, nil
}

func (s *Session) finish(state State) (State, error) {
	hash, err := serializer.Hash(s.doc)
	if err != nil {
		return s.state, fmt.Errorf("harness: final hash: %w", err)
	}
	s.state = state
	s.transcript.Final = state
	s.transcript.FinalHash = hash
	s.transcript.Finished = s.now()
	return s.state, nil
}
