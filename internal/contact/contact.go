// Package contact composes SMS/email drafts for human handoff. Drafts are
// read aloud or sent by the user verbatim, so there is no randomness here:
// the same inputs always produce the same draft.
package contact

import (
	"strings"

	"askmom/internal/core"
)

// DefaultAppName is used when the builder is constructed without a name.
const DefaultAppName = "Mom's Computer"

// Builder builds contact drafts for one deployment's app name.
type Builder struct {
	appName string
}

// NewBuilder creates a Builder. An empty appName falls back to the default.
func NewBuilder(appName string) *Builder {
	if appName == "" {
		appName = DefaultAppName
	}
	return &Builder{appName: appName}
}

// Build derives a draft from the conversation title, the most recent user
// message, and the risk level. Pure function of its inputs.
func (b *Builder) Build(conversationTitle, lastUserText string, riskLevel core.RiskLevel) core.ContactDraft {
	title := strings.TrimSpace(conversationTitle)
	userText := strings.TrimSpace(lastUserText)

	var subject string
	switch {
	case riskLevel == core.RiskHigh:
		subject = "Possible scam — need quick advice"
	case title != "":
		subject = "Tech help — stuck on " + title
	default:
		subject = "Tech help — quick question"
	}

	closing := closingLine(riskLevel)

	smsLines := []string{"Hey — can you help me real quick?"}
	if title != "" {
		smsLines = append(smsLines, "Topic: "+title)
	}
	if userText != "" {
		smsLines = append(smsLines, "What happened: "+userText)
	}
	smsLines = append(smsLines, closing)

	emailLines := []string{
		"Hi,",
		"",
		"I'm using " + b.appName + " and I'm not sure what to do next.",
	}
	if title != "" {
		emailLines = append(emailLines, "Topic: "+title)
	}
	emailLines = append(emailLines, "")
	if userText != "" {
		emailLines = append(emailLines, "What happened:\n"+userText, "")
	}
	emailLines = append(emailLines,
		closing,
		"",
		"— Sent from "+b.appName,
	)

	return core.ContactDraft{
		SMSBody:      strings.Join(smsLines, "\n"),
		EmailSubject: subject,
		EmailBody:    strings.Join(emailLines, "\n"),
	}
}

// closingLine picks the single closing question by risk tier.
func closingLine(riskLevel core.RiskLevel) string {
	switch riskLevel {
	case core.RiskHigh:
		return "What should I do right now to stay safe?"
	case core.RiskMedium:
		return "What should I do next?"
	default:
		return "What's the next step I should try?"
	}
}
