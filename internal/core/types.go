// Package core provides the shared types and interfaces for the safety
// orchestration layer.
package core

import (
	"strings"
	"time"
)

// RiskLevel is the coarse per-message risk classification.
// Levels are ordered: low < medium < high.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// rank maps risk levels to their ordering for comparisons.
func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r is at or above the given level.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.rank() >= other.rank()
}

// Max returns the higher of the two levels. High is absorbing: once a turn
// is classified high it is never silently downgraded during processing.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.rank() > r.rank() {
		return other
	}
	return r
}

// ParseRiskLevel normalizes a risk level string, falling back to the given
// default for empty or unknown values.
func ParseRiskLevel(s string, fallback RiskLevel) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow
	case RiskMedium:
		return RiskMedium
	case RiskHigh:
		return RiskHigh
	default:
		return fallback
	}
}

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message within a conversation. Turns are append-only and
// never mutated after creation; Text holds the redacted content when the
// redactor fired.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	RiskLevel      RiskLevel `json:"risk_level"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is the summary record the store maintains per conversation.
type Conversation struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title,omitempty"`
	Status        string    `json:"status"`
	RiskLevel     RiskLevel `json:"risk_level"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// Conversation status values.
const (
	StatusOpen      = "open"
	StatusEscalated = "escalated"
	StatusClosed    = "closed"
)

// RedactionReason names the category of sensitive data that was scrubbed.
type RedactionReason string

const (
	ReasonSSN         RedactionReason = "ssn"
	ReasonCreditCard  RedactionReason = "credit_card"
	ReasonBankAccount RedactionReason = "bank_account"
)

// RedactionResult is the redactor's output for a single text.
type RedactionResult struct {
	CleanText   string            `json:"clean_text"`
	Reasons     []RedactionReason `json:"reasons"`
	WasRedacted bool              `json:"was_redacted"`
}

// BlockedArtifact records that redaction occurred. It deliberately carries
// only the redacted content, never the original digits.
type BlockedArtifact struct {
	ID              string            `json:"id"`
	ConversationID  string            `json:"conversation_id"`
	TurnID          string            `json:"turn_id"`
	Reasons         []RedactionReason `json:"reasons"`
	RedactedContent string            `json:"redacted_content"`
	Fingerprint     uint64            `json:"fingerprint"`
	CreatedAt       time.Time         `json:"created_at"`
}

// BlockReason names why the guardrail policy blocked or redirected a turn.
type BlockReason string

const (
	BlockStuck       BlockReason = "stuck"
	BlockTooLong     BlockReason = "too_long"
	BlockRateLimited BlockReason = "rate_limited"
	BlockLLMBudget   BlockReason = "llm_budget"
)

// GuardrailDecision is computed fresh per turn from the conversation's
// history plus the new message. It is never persisted.
type GuardrailDecision struct {
	Block            bool        `json:"block"`
	ShowContactPanel bool        `json:"show_contact_panel"`
	Reason           BlockReason `json:"reason,omitempty"`
	FriendlyMessage  string      `json:"friendly_message,omitempty"`
}

// Allowed reports whether the turn may continue (possibly with the contact
// panel surfaced).
func (d GuardrailDecision) Allowed() bool {
	return !d.Block
}

// ContactDraft holds pre-filled human-handoff messages. Drafts are built
// deterministically and rebuilt each time escalation fires.
type ContactDraft struct {
	SMSBody      string `json:"sms_body"`
	EmailSubject string `json:"email_subject"`
	EmailBody    string `json:"email_body"`
}

// StructuredReply is the orchestrator's outward response contract.
// Summary is never empty on a non-error path.
type StructuredReply struct {
	ConversationID    string        `json:"conversation_id"`
	MessageID         string        `json:"message_id,omitempty"`
	RiskLevel         RiskLevel     `json:"risk_level"`
	Summary           string        `json:"summary"`
	Steps             []string      `json:"steps"`
	EscalateSuggested bool          `json:"escalate_suggested"`
	Confidence        float64       `json:"confidence"`
	Model             string        `json:"model"`
	PromptVersion     string        `json:"prompt_version"`
	ShowContactPanel  bool          `json:"show_contact_panel"`
	ContactDraft      *ContactDraft `json:"contact_draft,omitempty"`

	// Advisory routing metadata: whether an upstream model call was (or
	// would have been) warranted, and why. Never changes the user-facing
	// reply by itself.
	ModelRecommended bool   `json:"model_recommended"`
	ModelReason      string `json:"model_reason,omitempty"`
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
