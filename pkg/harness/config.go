package harness

import "fmt"

// Config bounds one session. Limits are hard caps, not targets; a session
// that exhausts MaxTurns without completing stalls rather than erroring.
type Config struct {
	// MaxTurns caps how many agent turns a session may run.
	MaxTurns int `json:"max_turns"`
	// MaxIssuesPerTurn caps how many ranked issues each request shows.
	MaxIssuesPerTurn int `json:"max_issues_per_turn"`
	// MaxPatchesPerTurn caps how many proposed patches a turn applies.
	MaxPatchesPerTurn int `json:"max_patches_per_turn"`
	// Roles optionally restricts which declared roles this session fills.
	// When set, issues on fields assigned to another role are withheld from
	// the agent; fields with no role always pass through.
	Roles []string `json:"roles,omitempty"`
}

// DefaultConfig returns the limits used when a session declares none.
func DefaultConfig() Config {
	return Config{
		MaxTurns:          8,
		MaxIssuesPerTurn:  5,
		MaxPatchesPerTurn: 10,
	}
}

// ConfigError reports an unusable limit.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("harness: config: %s %s", e.Field, e.Msg)
}

// Validate checks that every limit is positive.
func (c Config) Validate() error {
	if c.MaxTurns <= 0 {
		return &ConfigError{Field: "MaxTurns", Msg: "must be positive"}
	}
	if c.MaxIssuesPerTurn <= 0 {
		return &ConfigError{Field: "MaxIssuesPerTurn", Msg: "must be positive"}
	}
	if c.MaxPatchesPerTurn <= 0 {
		return &ConfigError{Field: "MaxPatchesPerTurn", Msg: "must be positive"}
	}
	return nil
}
