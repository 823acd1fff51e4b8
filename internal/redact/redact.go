// Package redact detects and scrubs sensitive numbers from message text
// before anything is persisted. It deliberately favors over-redaction:
// missing a card number is worse than masking a harmless one.
package redact

import (
	"regexp"
	"strings"

	"askmom/internal/core"
)

// Replacement sentinels. None of them contain digits, which makes
// redaction idempotent: running Redact over already-redacted text is a
// no-op.
const (
	MaskSSN    = "[REDACTED_SSN]"
	MaskCard   = "[REDACTED_CARD]"
	MaskNumber = "[REDACTED_NUMBER]"
)

var (
	// ssnPattern matches DDD-DD-DDDD and the contiguous 9-digit form.
	ssnPattern = regexp.MustCompile(`\b\d{3}-?\d{2}-?\d{4}\b`)

	// cardPattern matches runs of 13-19 digits with any mix of space/dash
	// separators between them ("4111 - 1111 ..." included). Candidates are
	// only masked when the Luhn checksum passes, so arbitrary long numbers
	// survive.
	cardPattern = regexp.MustCompile(`\b\d(?:[ -]*\d){12,18}\b`)

	// Bank accounts vary too much for a shape-based match. We require a
	// banking keyword anywhere in the text AND a digit run of 8+ before
	// masking. The keyword scope is the whole text, not proximity to the
	// digits: conservative on purpose, occasional over-redaction is the
	// accepted cost.
	bankKeywords = regexp.MustCompile(`(?i)(account|routing|aba|iban|swift)`)
	longNumber   = regexp.MustCompile(`\b\d{8,}\b`)
)

// Detect returns the redaction reasons present in the text, in a fixed
// order (ssn, credit_card, bank_account). Empty slice means the text is
// safe to store as-is.
func Detect(text string) []core.RedactionReason {
	if text == "" {
		return nil
	}

	var reasons []core.RedactionReason
	if ssnLike(text) {
		reasons = append(reasons, core.ReasonSSN)
	}
	if creditCardLike(text) {
		reasons = append(reasons, core.ReasonCreditCard)
	}
	if bankAccountLike(text) {
		reasons = append(reasons, core.ReasonBankAccount)
	}
	return reasons
}

// Redact scrubs all detected sensitive sequences, replacing each category
// with its fixed sentinel. Order matters: SSNs first so a 9-digit SSN is
// never half-consumed by the card matcher.
func Redact(text string) string {
	if text == "" {
		return ""
	}

	t := ssnPattern.ReplaceAllString(text, MaskSSN)

	t = cardPattern.ReplaceAllStringFunc(t, func(m string) string {
		if luhnValid(digitsOnly(m)) {
			return MaskCard
		}
		return m
	})

	return redactBankishNumbers(t)
}

// Scan is the combined entry point: it must run before any persistence of
// raw text. When WasRedacted is set the caller stores CleanText only.
func Scan(text string) core.RedactionResult {
	reasons := Detect(text)
	if len(reasons) == 0 {
		return core.RedactionResult{CleanText: text}
	}
	return core.RedactionResult{
		CleanText:   Redact(text),
		Reasons:     reasons,
		WasRedacted: true,
	}
}

func ssnLike(t string) bool {
	return ssnPattern.MatchString(t)
}

func creditCardLike(t string) bool {
	for _, m := range cardPattern.FindAllString(t, -1) {
		if luhnValid(digitsOnly(m)) {
			return true
		}
	}
	return false
}

func bankAccountLike(t string) bool {
	return bankKeywords.MatchString(t) && longNumber.MatchString(t)
}

func redactBankishNumbers(t string) string {
	if !bankAccountLike(t) {
		return t
	}
	return longNumber.ReplaceAllString(t, MaskNumber)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// luhnValid implements the Luhn checksum: double every second digit from
// the right, subtract 9 when the doubled value exceeds 9, and require the
// sum to be divisible by 10. Only 13-19 digit strings qualify.
func luhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	for i := 0; i < len(digits); i++ {
		c := digits[len(digits)-1-i]
		if c < '0' || c > '9' {
			return false
		}
		n := int(c - '0')
		if i%2 == 1 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	return sum%10 == 0
}
