package guardrails

import (
	"time"

	"askmom/internal/core"
	"askmom/internal/textnorm"
)

// stuckPhrases are the only signals that strongly indicate a user is
// genuinely stuck and not progressing. Ordinary follow-up prompts such as
// "now what" or "help me" are intentionally absent: the normal reply path
// handles those without surfacing the contact panel. Phrases are matched
// against strictly normalized text, so apostrophe variants collapse.
var stuckPhrases = []string{
	"i dont understand",
	"i dont get it",
	"confused",
	"im stuck",
	"still not working",
	"same thing",
	"doesnt work",
	"does not work",
	"its not working",
}

// Friendly messages shown on hard blocks.
const (
	msgTooLong     = "Your message is a bit long for me to safely process in one go."
	msgRateLimited = "I might be missing details because messages are coming in fast."
	msgLLMBudget   = "We've done a lot of back-and-forth on this and I don't want to spin our wheels."
)

// Policy evaluates the guardrail checks for one conversation turn. It
// holds no conversation state itself; history is injected per call and
// the decision is a pure function of it.
type Policy struct {
	cfg Config
	now func() time.Time

	normalizedStuck []string
}

// New creates a Policy with the given configuration. Zero-valued ceilings
// fall back to the defaults.
func New(cfg Config) *Policy {
	return NewWithClock(cfg, time.Now)
}

// NewWithClock creates a Policy with an injected clock, used by the
// burst-rate window.
func NewWithClock(cfg Config, now func() time.Time) *Policy {
	p := &Policy{
		cfg: cfg.withDefaults(),
		now: now,
	}
	p.normalizedStuck = make([]string, 0, len(stuckPhrases))
	for _, s := range stuckPhrases {
		if n := textnorm.Normalize(s); n != "" {
			p.normalizedStuck = append(p.normalizedStuck, n)
		}
	}
	return p
}

// Config returns the effective (default-filled) configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Check evaluates the guardrails for a new user message against the
// conversation history. History must be in ascending creation order and
// already include the committed current user turn, so the new message
// counts itself exactly once in every window.
//
// Stuck detection runs first, before any ceiling: a genuinely stuck user
// must never be silently blocked by an unrelated rate or budget limit.
func (p *Policy) Check(history []core.Turn, newText string, riskLevel core.RiskLevel) core.GuardrailDecision {
	if p.stuckHitCount(history, newText) >= p.cfg.StuckMinHits {
		return core.GuardrailDecision{
			ShowContactPanel: true,
			Reason:           core.BlockStuck,
		}
	}

	if len(newText) > p.cfg.MaxTextChars {
		return block(core.BlockTooLong, msgTooLong, false)
	}

	if p.userTurnsInLast60s(history) >= p.cfg.MaxUserPer60s {
		return block(core.BlockRateLimited, msgRateLimited, false)
	}

	if p.assistantTurnCount(history) >= p.llmLimit(riskLevel) {
		return block(core.BlockLLMBudget, msgLLMBudget, p.cfg.ShowPanelOnLLMBudget)
	}

	return core.GuardrailDecision{}
}

func block(reason core.BlockReason, friendly string, showPanel bool) core.GuardrailDecision {
	return core.GuardrailDecision{
		Block:            true,
		ShowContactPanel: showPanel,
		Reason:           reason,
		FriendlyMessage:  friendly,
	}
}

func (p *Policy) llmLimit(riskLevel core.RiskLevel) int {
	if riskLevel.AtLeast(core.RiskHigh) {
		return p.cfg.MaxLLMCallsHigh
	}
	return p.cfg.MaxLLMCalls
}

func (p *Policy) assistantTurnCount(history []core.Turn) int {
	n := 0
	for i := range history {
		if history[i].Role == core.RoleAssistant {
			n++
		}
	}
	return n
}

func (p *Policy) userTurnsInLast60s(history []core.Turn) int {
	cutoff := p.now().Add(-60 * time.Second)
	n := 0
	for i := range history {
		if history[i].Role == core.RoleUser && !history[i].CreatedAt.Before(cutoff) {
			n++
		}
	}
	return n
}

// recentUserTexts returns up to n normalized user-turn texts, newest
// first, skipping turns that normalize to empty.
func recentUserTexts(history []core.Turn, n int) []string {
	if n <= 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		if history[i].Role != core.RoleUser {
			continue
		}
		if t := textnorm.Normalize(history[i].Text); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stuckHitCount counts stuck signals across the last N user turns
// including the current message: one hit per turn containing a stuck
// phrase, plus at most one extra hit when the same message is being sent
// in a loop.
func (p *Policy) stuckHitCount(history []core.Turn, newText string) int {
	n := p.cfg.StuckWithinLastUserTurns
	if n <= 0 || p.cfg.StuckMinHits <= 0 {
		return 0
	}

	normalizedNew := textnorm.Normalize(newText)
	recent := recentUserTexts(history, n)

	// The current message is committed before the check runs; drop it so
	// appending normalizedNew below does not double-count it.
	if len(recent) > 0 && recent[0] == normalizedNew {
		recent = recent[1:]
	}

	window := recent
	if len(window) > n-1 {
		window = window[:n-1]
	}
	window = append(window, normalizedNew)

	if len(window) < p.cfg.StuckMinHits {
		return 0
	}

	hits := 0
	for _, t := range window {
		if textnorm.ContainsAny(t, p.normalizedStuck) {
			hits++
		}
	}

	if p.repeatedTextLoop(recent, normalizedNew) {
		hits++
	}
	return hits
}

// repeatedTextLoop reports whether the exact same normalized message
// appears at least RepeatMinMatches times among the last
// RepeatWithinLastUserTurns prior user turns.
func (p *Policy) repeatedTextLoop(priorTexts []string, normalizedNew string) bool {
	n := p.cfg.RepeatWithinLastUserTurns
	if normalizedNew == "" || n <= 0 {
		return false
	}

	if len(priorTexts) > n {
		priorTexts = priorTexts[:n]
	}

	matches := 0
	for _, t := range priorTexts {
		if t == normalizedNew {
			matches++
		}
	}
	return matches >= p.cfg.RepeatMinMatches
}
