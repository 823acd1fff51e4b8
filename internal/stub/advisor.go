package stub

import (
	"regexp"
	"strings"

	"askmom/internal/core"
)

// Advise decides whether an upstream model call is warranted for this
// turn, and why. It is advisory routing metadata: it never changes the
// stub reply by itself, but the orchestrator consults it when a generator
// is configured.
func Advise(rawText string, riskLevel core.RiskLevel, confidence float64) (bool, string) {
	t := strings.TrimSpace(rawText)
	down := strings.ToLower(t)

	// The rules already handle obvious high-risk turns; a model call adds
	// latency without adding safety.
	if riskLevel == core.RiskHigh {
		return false, "high_risk_rules"
	}

	var reasons []string

	// Long blobs benefit from summarization/extraction.
	if len(t) >= 400 {
		reasons = append(reasons, "long_message")
	}

	lowConfidence := confidence < 0.72

	for _, w := range complexTerms {
		if strings.Contains(down, w) {
			reasons = append(reasons, "complex_terms")
			break
		}
	}

	if looksLikeErrorLog(t) {
		reasons = append(reasons, "looks_like_error_log")
	}

	// Short low-risk messages (greetings, one-liners) are handled cheaply;
	// low confidence alone is not a reason to pay for a model call there.
	if lowConfidence && !(riskLevel == core.RiskLow && len(t) <= 120) {
		reasons = append(reasons, "low_confidence")
	}

	if len(reasons) == 0 {
		return false, "not_needed"
	}
	return true, strings.Join(reasons, ",")
}

// complexTerms mark troubleshooting domains where model reasoning helps.
var complexTerms = []string{
	"certificate", "firewall", "port", "dns", "router", "vpn", "printer",
	"outlook", "gmail", "imap", "smtp", "ssl", "tls", "driver", "update",
	"malware", "popup", "subscription",
}

var (
	errorCodePattern = regexp.MustCompile(`(?i)error\s*\d+`)
	tracePattern     = regexp.MustCompile(`(?i)\b(exception|stack trace|traceback)\b`)
	hexPattern       = regexp.MustCompile(`(?i)\b0x[0-9a-f]+\b`)
)

// looksLikeErrorLog flags pasted error-log style strings: error codes,
// stack traces, hex addresses, or path-and-colon-dense text.
func looksLikeErrorLog(t string) bool {
	if len(t) < 20 {
		return false
	}
	if errorCodePattern.MatchString(t) {
		return true
	}
	if tracePattern.MatchString(t) {
		return true
	}
	if strings.Count(t, ":") >= 4 && strings.Count(t, "/") >= 2 {
		return true
	}
	return hexPattern.MatchString(t)
}
