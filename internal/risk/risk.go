// Package risk provides the cheap pre-model risk classifier. It exists so
// guardrail decisions are gated on a risk signal even when the upstream
// model is skipped or unavailable.
package risk

import (
	"askmom/internal/core"
	"askmom/internal/textnorm"
)

// vocabulary is the fixed high-risk phrase list: payment instruments,
// remote-access tooling, credential/code requests, and refund/urgency
// language. Matching is case-insensitive via normalization.
var vocabulary = []string{
	"gift card", "itunes", "google play", "steam card",
	"wire transfer", "western union", "moneygram",
	"crypto", "bitcoin", "ethereum",
	"remote access", "anydesk", "teamviewer", "logmein",
	"bank login", "routing number", "account number",
	"verification code", "2fa code", "one time code", "otp",
	"refund", "chargeback", "invoice", "past due",
	"microsoft support", "apple support", "security alert",
	"your computer is infected", "virus", "trojan",
	"refund department", "call this number",
}

// Classify returns high when the text contains any phrase from the
// high-risk vocabulary, low otherwise. Pure and stateless; always runs
// before any model-based assessment.
func Classify(text string) core.RiskLevel {
	t := textnorm.Normalize(text)
	if t == "" {
		return core.RiskLow
	}
	if textnorm.ContainsAny(t, vocabulary) {
		return core.RiskHigh
	}
	return core.RiskLow
}

// Vocabulary returns a copy of the high-risk phrase list, normalized the
// same way Classify normalizes input.
func Vocabulary() []string {
	out := make([]string, len(vocabulary))
	copy(out, vocabulary)
	return out
}
