// Package guardrails decides, turn by turn, whether a conversation may
// continue, must be blocked, or should surface the human-contact panel.
package guardrails

// Config holds the guardrail ceilings and stuck-detection tuning.
type Config struct {
	// MaxTextChars is the hard ceiling on a single message's length.
	MaxTextChars int `yaml:"max_text_chars"`

	// MaxUserPer60s is the burst-rate ceiling on user turns per minute.
	MaxUserPer60s int `yaml:"max_user_per_60s"`

	// MaxLLMCalls bounds assistant turns for low/medium-risk conversations.
	MaxLLMCalls int `yaml:"max_llm_calls"`

	// MaxLLMCallsHigh is the tighter budget once risk is high.
	MaxLLMCallsHigh int `yaml:"max_llm_calls_high"`

	// StuckWithinLastUserTurns is the window (including the current
	// message) scanned for stuck signals.
	StuckWithinLastUserTurns int `yaml:"stuck_within_last_user_turns"`

	// StuckMinHits is the hit threshold that surfaces the contact panel.
	StuckMinHits int `yaml:"stuck_min_hits"`

	// RepeatWithinLastUserTurns is how many prior user turns are checked
	// for a repeat loop.
	RepeatWithinLastUserTurns int `yaml:"repeat_within_last_user_turns"`

	// RepeatMinMatches is how many times the same normalized message must
	// recur to count the repeat loop as one stuck hit.
	RepeatMinMatches int `yaml:"repeat_min_matches"`

	// ShowPanelOnLLMBudget treats the budget ceiling as a graceful exit
	// with the panel instead of a dead end.
	ShowPanelOnLLMBudget bool `yaml:"show_panel_on_llm_budget"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxTextChars:              2500,
		MaxUserPer60s:             12,
		MaxLLMCalls:               40,
		MaxLLMCallsHigh:           18,
		StuckWithinLastUserTurns:  10,
		StuckMinHits:              3,
		RepeatWithinLastUserTurns: 3,
		RepeatMinMatches:          2,
		ShowPanelOnLLMBudget:      true,
	}
}

// withDefaults fills any zero-valued field from DefaultConfig so partial
// YAML overrides behave predictably.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxTextChars <= 0 {
		c.MaxTextChars = d.MaxTextChars
	}
	if c.MaxUserPer60s <= 0 {
		c.MaxUserPer60s = d.MaxUserPer60s
	}
	if c.MaxLLMCalls <= 0 {
		c.MaxLLMCalls = d.MaxLLMCalls
	}
	if c.MaxLLMCallsHigh <= 0 {
		c.MaxLLMCallsHigh = d.MaxLLMCallsHigh
	}
	if c.StuckWithinLastUserTurns <= 0 {
		c.StuckWithinLastUserTurns = d.StuckWithinLastUserTurns
	}
	if c.StuckMinHits <= 0 {
		c.StuckMinHits = d.StuckMinHits
	}
	if c.RepeatWithinLastUserTurns <= 0 {
		c.RepeatWithinLastUserTurns = d.RepeatWithinLastUserTurns
	}
	if c.RepeatMinMatches <= 0 {
		c.RepeatMinMatches = d.RepeatMinMatches
	}
	return c
}
