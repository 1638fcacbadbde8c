package harness

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formdoc/pkg/patch"
	"github.com/goliatone/go-formdoc/pkg/schema"
	"github.com/goliatone/go-formdoc/pkg/testsupport"
)

func mustParse(t *testing.T, input string) *schema.Document {
	t.Helper()
	return testsupport.MustParse(t, input)
}

// stubAgent answers each Propose call with the next queued step and records
// every request it saw. An exhausted queue answers with an empty batch.
type stubAgent struct {
	steps []stubStep
	calls []Request
}

type stubStep struct {
	patches []patch.Patch
	err     error
}

func (a *stubAgent) Propose(_ context.Context, req Request) (*Response, error) {
	a.calls = append(a.calls, req)
	if len(a.steps) == 0 {
		return &Response{}, nil
	}
	step := a.steps[0]
	a.steps = a.steps[1:]
	if step.err != nil {
		return nil, step.err
	}
	return &Response{Patches: step.patches}, nil
}

const oneField = "[!form id=release]\n[!field id=version kind=string required]\n[!/field]\n[!/form]\n"

func TestSessionCompletes(t *testing.T) {
	doc := mustParse(t, oneField)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "version", Value: "v1.2.0"}}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateComplete {
		t.Errorf("final = %s", tr.Final)
	}
	if session.State() != StateComplete {
		t.Errorf("state = %s", session.State())
	}
	if len(tr.Turns) != 1 {
		t.Fatalf("turns = %+v", tr.Turns)
	}
	turn := tr.Turns[0]
	if turn.Index != 1 || turn.Applied != 1 || len(turn.Rejections) != 0 {
		t.Errorf("turn = %+v", turn)
	}
	if tr.FormID != "release" || tr.SessionID == "" {
		t.Errorf("transcript identity = %q %q", tr.FormID, tr.SessionID)
	}
	if tr.InputHash == "" || tr.FinalHash == "" || tr.InputHash == tr.FinalHash {
		t.Errorf("hashes = %q -> %q", tr.InputHash, tr.FinalHash)
	}
	if turn.Hash != tr.FinalHash {
		t.Errorf("turn hash %q, final hash %q", turn.Hash, tr.FinalHash)
	}

	field, _ := doc.Field("version")
	if field.Response.Value != schema.StringValue("v1.2.0") {
		t.Errorf("document not mutated: %+v", field.Response)
	}
}

func TestSessionAlreadyCompleteRunsNoTurn(t *testing.T) {
	doc := mustParse(t, "[!form id=f]\n[!field id=a kind=string required]\n```value\ndone\n```\n[!/field]\n[!/form]\n")
	agent := &stubAgent{}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateComplete || len(tr.Turns) != 0 {
		t.Errorf("final=%s turns=%+v", tr.Final, tr.Turns)
	}
	if len(agent.calls) != 0 {
		t.Errorf("agent consulted %d times for a finished document", len(agent.calls))
	}
	if tr.FinalHash != tr.InputHash {
		t.Errorf("hashes diverged without any turn: %q vs %q", tr.InputHash, tr.FinalHash)
	}
}

func TestSessionStallsWhenNothingApplies(t *testing.T) {
	doc := mustParse(t, oneField)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "ghost", Value: "x"}}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The fully rejected first turn earns one retry with the rejections in
	// hand; the empty batch that follows proves no progress is coming.
	if tr.Final != StateStalled {
		t.Errorf("final = %s", tr.Final)
	}
	if len(tr.Turns) != 2 {
		t.Fatalf("turns = %+v", tr.Turns)
	}
	first := tr.Turns[0]
	if first.Applied != 0 || len(first.Rejections) != 1 || first.Rejections[0].Reason != patch.ReasonUnknownID {
		t.Errorf("first turn = %+v", first)
	}
	if len(agent.calls) != 2 {
		t.Fatalf("calls = %d", len(agent.calls))
	}
	if len(agent.calls[1].Rejections) != 1 {
		t.Errorf("second request rejections = %+v", agent.calls[1].Rejections)
	}
	second := tr.Turns[1]
	if second.Applied != 0 || len(second.Rejections) != 0 {
		t.Errorf("second turn = %+v", second)
	}
}

func TestSessionRecoversFromRejectedTurn(t *testing.T) {
	doc := mustParse(t, "[!form id=f]\n[!field id=count kind=number required]\n[!/field]\n[!/form]\n")
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetNumber, Field: "count", Value: "not a number"}}},
		{patches: []patch.Patch{{Op: patch.OpSetNumber, Field: "count", Value: "12"}}},
	}}

	cfg := DefaultConfig()
	cfg.MaxTurns = 3
	session, err := NewSession(doc, agent, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateComplete || len(tr.Turns) != 2 {
		t.Fatalf("final=%s turns=%+v", tr.Final, tr.Turns)
	}
	first := tr.Turns[0]
	if first.Applied != 0 || len(first.Rejections) != 1 || first.Rejections[0].Reason != patch.ReasonInvalidValue {
		t.Errorf("first turn = %+v", first)
	}
	second := agent.calls[1]
	if len(second.Rejections) != 1 || second.Rejections[0].Reason != patch.ReasonInvalidValue {
		t.Errorf("second request rejections = %+v", second.Rejections)
	}
}

func TestSessionStallsOnRepeatedRejectedTurns(t *testing.T) {
	doc := mustParse(t, oneField)
	bad := patch.Patch{Op: patch.OpSetString, Field: "ghost", Value: "x"}
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{bad}},
		{patches: []patch.Patch{bad}},
		{patches: []patch.Patch{bad}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateStalled || len(tr.Turns) != 2 {
		t.Errorf("final=%s turns=%d", tr.Final, len(tr.Turns))
	}
}

func TestSessionFiltersIssuesByRole(t *testing.T) {
	doc := mustParse(t, `[!form id=f]
[!field id=eng kind=string required role=dev]
[!/field]
[!field id=plan kind=string required role=pm]
[!/field]
[!field id=shared kind=string required]
[!/field]
[!/form]
`)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{
			{Op: patch.OpSetString, Field: "eng", Value: "done"},
			{Op: patch.OpSetString, Field: "shared", Value: "ok"},
		}},
	}}

	cfg := DefaultConfig()
	cfg.Roles = []string{"dev"}
	cfg.MaxTurns = 1
	session, err := NewSession(doc, agent, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(agent.calls) != 1 {
		t.Fatalf("calls = %d", len(agent.calls))
	}
	var refs []string
	for _, issue := range agent.calls[0].Issues {
		refs = append(refs, issue.Ref)
	}
	if diff := cmp.Diff([]string{"eng", "shared"}, refs); diff != "" {
		t.Errorf("shown issues mismatch (-want +got):\n%s", diff)
	}
	// The pm field stays open, so the session runs out its single turn.
	if tr.Final != StateStalled {
		t.Errorf("final = %s", tr.Final)
	}
}

func TestSessionStallsOnTurnBudget(t *testing.T) {
	doc := mustParse(t, `[!form id=f]
[!field id=a kind=string required]
[!/field]
[!field id=b kind=string required]
[!/field]
[!/form]
`)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "a", Value: "one"}}},
	}}

	cfg := DefaultConfig()
	cfg.MaxTurns = 1
	session, err := NewSession(doc, agent, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateStalled || len(tr.Turns) != 1 {
		t.Errorf("final=%s turns=%d", tr.Final, len(tr.Turns))
	}
	if tr.Turns[0].Applied != 1 {
		t.Errorf("turn = %+v", tr.Turns[0])
	}
}

func TestSessionCapsIssuesPerTurn(t *testing.T) {
	doc := mustParse(t, `[!form id=f]
[!field id=a kind=string required]
[!/field]
[!field id=b kind=string required]
[!/field]
[!field id=c kind=string required]
[!/field]
[!/form]
`)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{
			{Op: patch.OpSetString, Field: "a", Value: "1"},
			{Op: patch.OpSetString, Field: "b", Value: "2"},
			{Op: patch.OpSetString, Field: "c", Value: "3"},
		}},
	}}

	cfg := DefaultConfig()
	cfg.MaxIssuesPerTurn = 1
	session, err := NewSession(doc, agent, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(agent.calls) != 1 {
		t.Fatalf("calls = %d", len(agent.calls))
	}
	req := agent.calls[0]
	if len(req.Issues) != 1 || req.Issues[0].Ref != "a" {
		t.Errorf("issues = %+v", req.Issues)
	}
	if req.Turn != 1 || req.MaxPatches != cfg.MaxPatchesPerTurn {
		t.Errorf("request = %+v", req)
	}
}

func TestSessionTruncatesPatchBudget(t *testing.T) {
	doc := mustParse(t, `[!form id=f]
[!field id=a kind=string required]
[!/field]
[!field id=b kind=string required]
[!/field]
[!/form]
`)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{
			{Op: patch.OpSetString, Field: "a", Value: "1"},
			{Op: patch.OpSetString, Field: "b", Value: "2"},
		}},
		{patches: []patch.Patch{
			{Op: patch.OpSetString, Field: "b", Value: "2"},
		}},
	}}

	cfg := DefaultConfig()
	cfg.MaxPatchesPerTurn = 1
	session, err := NewSession(doc, agent, WithConfig(cfg))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateComplete || len(tr.Turns) != 2 {
		t.Fatalf("final=%s turns=%+v", tr.Final, tr.Turns)
	}
	first := tr.Turns[0]
	if !first.Truncated || len(first.Proposed) != 1 || first.Applied != 1 {
		t.Errorf("first turn = %+v", first)
	}
	if tr.Turns[1].Truncated {
		t.Errorf("second turn = %+v", tr.Turns[1])
	}
}

func TestSessionCarriesRejectionsForward(t *testing.T) {
	doc := mustParse(t, `[!form id=f]
[!field id=a kind=string required]
[!/field]
[!field id=b kind=number required]
[!/field]
[!/form]
`)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{
			{Op: patch.OpSetString, Field: "a", Value: "ok"},
			{Op: patch.OpSetNumber, Field: "b", Value: "not a number"},
		}},
		{patches: []patch.Patch{
			{Op: patch.OpSetNumber, Field: "b", Value: "7"},
		}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.Final != StateComplete || len(agent.calls) != 2 {
		t.Fatalf("final=%s calls=%d", tr.Final, len(agent.calls))
	}
	if len(agent.calls[0].Rejections) != 0 {
		t.Errorf("first request carries rejections: %+v", agent.calls[0].Rejections)
	}
	second := agent.calls[1]
	if len(second.Rejections) != 1 || second.Rejections[0].Reason != patch.ReasonInvalidValue {
		t.Errorf("second request rejections = %+v", second.Rejections)
	}
}

func TestSessionAgentErrorLeavesSessionActive(t *testing.T) {
	doc := mustParse(t, oneField)
	agent := &stubAgent{steps: []stubStep{
		{err: errors.New("upstream timeout")},
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "version", Value: "v1"}}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	state, err := session.Step(context.Background())
	var agentErr *AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("Step error = %v, want *AgentError", err)
	}
	if state != StateActive || session.State() != StateActive {
		t.Errorf("state after agent failure = %s", state)
	}
	if len(session.Transcript().Turns) != 0 {
		t.Errorf("failed turn was recorded: %+v", session.Transcript().Turns)
	}

	// The same turn retried succeeds.
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run after retry: %v", err)
	}
	if tr.Final != StateComplete || len(tr.Turns) != 1 {
		t.Errorf("final=%s turns=%d", tr.Final, len(tr.Turns))
	}
}

func TestSessionStepAfterFinish(t *testing.T) {
	doc := mustParse(t, oneField)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "version", Value: "v1"}}},
	}}

	session, err := NewSession(doc, agent)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := session.Step(context.Background()); !errors.Is(err, ErrNotActive) {
		t.Errorf("Step on finished session = %v, want ErrNotActive", err)
	}
}

func TestSessionClockAndID(t *testing.T) {
	doc := mustParse(t, oneField)
	agent := &stubAgent{steps: []stubStep{
		{patches: []patch.Patch{{Op: patch.OpSetString, Field: "version", Value: "v1"}}},
	}}

	now := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	session, err := NewSession(doc, agent,
		WithSessionID("session-fixed"),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	tr, err := session.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if tr.SessionID != "session-fixed" {
		t.Errorf("session id = %q", tr.SessionID)
	}
	if !tr.Started.Equal(now) || !tr.Finished.Equal(now) {
		t.Errorf("timestamps = %v %v", tr.Started, tr.Finished)
	}
}

func TestSessionCancelledContext(t *testing.T) {
	doc := mustParse(t, oneField)
	session, err := NewSession(doc, &stubAgent{})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := session.Step(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Step = %v, want context.Canceled", err)
	}
	if session.State() != StateActive {
		t.Errorf("state = %s", session.State())
	}
}

func TestNewSessionValidation(t *testing.T) {
	doc := mustParse(t, oneField)

	if _, err := NewSession(nil, &stubAgent{}); err == nil {
		t.Error("nil document accepted")
	}
	if _, err := NewSession(doc, nil); err == nil {
		t.Error("nil agent accepted")
	}

	var cfgErr *ConfigError
	_, err := NewSession(doc, &stubAgent{}, WithConfig(Config{MaxTurns: 0, MaxIssuesPerTurn: 1, MaxPatchesPerTurn: 1}))
	if !errors.As(err, &cfgErr) || cfgErr.Field != "MaxTurns" {
		t.Errorf("zero MaxTurns: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"defaults", DefaultConfig(), ""},
		{"zero turns", Config{MaxIssuesPerTurn: 1, MaxPatchesPerTurn: 1}, "MaxTurns"},
		{"zero issues", Config{MaxTurns: 1, MaxPatchesPerTurn: 1}, "MaxIssuesPerTurn"},
		{"negative patches", Config{MaxTurns: 1, MaxIssuesPerTurn: 1, MaxPatchesPerTurn: -1}, "MaxPatchesPerTurn"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.field == "" {
				if err != nil {
					t.Errorf("Validate = %v", err)
				}
				return
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tc.field {
				t.Errorf("Validate = %v, want ConfigError on %s", err, tc.field)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	want := Config{MaxTurns: 8, MaxIssuesPerTurn: 5, MaxPatchesPerTurn: 10}
	if diff := cmp.Diff(want, DefaultConfig()); diff != "" {
		t.Errorf("DefaultConfig mismatch (-want +got):\n%s", diff)
	}
}
