// Package openai implements an agent backed by OpenAI-compatible chat
// completions. Each turn renders the request as a prompt, asks the model for
// a JSON patch array, and reports token usage, measured locally with
// tiktoken when the API omits it.
package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"

	"github.com/goliatone/go-formdoc/pkg/harness"
	"github.com/goliatone/go-formdoc/pkg/patch"
)

// DefaultModel is used when no model option is given.
const DefaultModel = "gpt-4o"

// tokenEncoding is the fallback tokenizer; close enough for accounting
// across the chat model family.
const tokenEncoding = "cl100k_base"

// Agent proposes patches by querying a chat completion model.
type Agent struct {
	client  openai.Client
	model   string
	baseURL string
	apiKey  string

	enc *tiktoken.Tiktoken
}

// Option configures the agent.
type Option func(*Agent)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(baseURL string) Option {
	return func(a *Agent) { a.baseURL = baseURL }
}

// New builds an agent. The API key falls back to OPENAI_API_KEY through the
// client's own environment handling when empty.
func New(apiKey string, opts ...Option) (*Agent, error) {
	a := &Agent{model: DefaultModel, apiKey: apiKey}
	for _, opt := range opts {
		opt(a)
	}

	var clientOpts []option.RequestOption
	if a.apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(a.apiKey))
	}
	if a.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(a.baseURL))
	}
	a.client = openai.NewClient(clientOpts...)

	enc, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		return nil, fmt.Errorf("openai: tokenizer: %w", err)
	}
	a.enc = enc
	return a, nil
}

// Propose sends one turn to the model and decodes its patch array. Transport
// failures are retryable; an unparseable reply is not, since resending the
// same prompt tends to reproduce it.
func (a *Agent) Propose(ctx context.Context, req harness.Request) (*harness.Response, error) {
	start := time.Now()

	user, err := renderRequest(req)
	if err != nil {
		return nil, &harness.AgentError{Err: err}
	}

	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, &harness.AgentError{Retryable: true, Err: fmt.Errorf("openai: completion: %w", err)}
	}
	if len(completion.Choices) == 0 {
		return nil, &harness.AgentError{Retryable: true, Err: fmt.Errorf("openai: completion has no choices")}
	}
	reply := completion.Choices[0].Message.Content

	raw, err := extractArray(reply)
	if err != nil {
		return nil, &harness.AgentError{Err: err}
	}
	patches, err := patch.DecodeJSON([]byte(raw))
	if err != nil {
		return nil, &harness.AgentError{Err: fmt.Errorf("openai: %w", err)}
	}

	stats := harness.Stats{
		PromptTokens: int(completion.Usage.PromptTokens),
		ReplyTokens:  int(completion.Usage.CompletionTokens),
		Elapsed:      time.Since(start),
	}
	if stats.PromptTokens == 0 {
		stats.PromptTokens = a.countTokens(systemPrompt) + a.countTokens(user)
	}
	if stats.ReplyTokens == 0 {
		stats.ReplyTokens = a.countTokens(reply)
	}

	return &harness.Response{Patches: patches, Stats: stats}, nil
}

func (a *Agent) countTokens(text string) int {
	if a.enc == nil {
		return 0
	}
	return len(a.enc.Encode(text, nil, nil))
}
