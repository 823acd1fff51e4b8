package stub

import (
	"math/rand"

	"askmom/internal/core"
	"askmom/internal/textnorm"
)

// ModelName identifies stub-generated replies in the outward contract.
const ModelName = "stub"

// maxSteps caps the step list in every reply.
const maxSteps = 6

// highRiskTriggers are the fast, blunt scam signals. A match short-circuits
// every other path and produces the fixed high-risk template: consistency
// matters most when risk is highest, so there is no randomness here.
var highRiskTriggers = []string{
	"gift card", "itunes", "google play", "steam card",
	"wire transfer", "western union", "moneygram",
	"crypto", "bitcoin", "ethereum",
	"remote access", "anydesk", "teamviewer", "logmein",
	"bank login", "routing number", "account number",
	"verification code", "2fa code", "one time code", "otp",
	"refund department", "your computer is infected", "security alert",
	"call this number",
}

// Route produces a deterministic reply for one turn. Resolution order:
// high-risk triggers, greeting/low-signal, intent playbooks, generic
// fallback. All variation comes from the seed; identical seeds produce
// identical replies.
func Route(rawText string, seed Seed) *core.StructuredReply {
	strict := textnorm.Normalize(rawText)
	loose := textnorm.NormalizeLoose(rawText)

	var reply *core.StructuredReply
	switch {
	case textnorm.ContainsAny(strict, highRiskTriggers):
		reply = highRiskReply()
	case isGreeting(rawText):
		reply = greetingReply(seed.rng())
	default:
		if intent := detectIntent(loose); intent != "" {
			reply = playbookReply(intent, seed.rng())
		}
		if reply == nil {
			reply = defaultReply(seed.rng())
		}
	}

	if len(reply.Steps) > maxSteps {
		reply.Steps = reply.Steps[:maxSteps]
	}

	reply.ModelRecommended, reply.ModelReason = Advise(rawText, reply.RiskLevel, reply.Confidence)
	return reply
}

// highRiskReply is the fixed scam-interruption template.
func highRiskReply() *core.StructuredReply {
	return &core.StructuredReply{
		RiskLevel: core.RiskHigh,
		Summary: "Stop right there. This looks scammy. Do NOT pay, do NOT share codes/passwords, " +
			"and do NOT allow remote access.",
		Steps: []string{
			"Do not buy gift cards, do not wire money, and do not send crypto.",
			"Do not call any number shown on a pop-up or email.",
			"Close the page/app and tell me the *exact* words you saw.",
			"If you already shared a password/code, change the password immediately and contact your bank/provider.",
		},
		EscalateSuggested: true,
		Confidence:        0.94,
		Model:             ModelName,
		PromptVersion:     "v2_highrisk",
	}
}

var defaultOpeners = []string{
	"Got it. I can help you figure this out safely.",
	"Okay - tell me what's happening and we'll work it out.",
	"Alright. We'll troubleshoot this the clean way.",
	"No problem. Give me the details and we'll fix it.",
	"Okay - walk me through what you did, then what you saw.",
}

var defaultFollowups = []string{
	"What device are you using (iPhone/Android/Mac/Windows) and what app/site?",
	"What were you trying to do right before the problem happened?",
	"What does the screen say (exact words), and is anyone asking for money, codes, or remote access?",
	"Did this start after clicking a link or installing something?",
	"Is this happening on Wi-Fi, cellular, or both?",
}

var defaultStepPool = []string{
	"Tell me the device (iPhone/Android/Mac/Windows).",
	"Tell me the app/site name.",
	"Paste the exact error message or describe it.",
	"Tell me the last thing you clicked.",
	"If it mentions money/codes/remote access, stop and tell me exactly what it asked for.",
}

// defaultReply is the generic troubleshooting fallback when nothing more
// specific matched.
func defaultReply(r *rand.Rand) *core.StructuredReply {
	summary := pick(r, defaultOpeners) + " " + pick(r, defaultFollowups)

	steps := shuffleTake(r, defaultStepPool, 3, 5)
	steps = append(steps, "If you can, type the exact wording from the screen - one line at a time.")

	return &core.StructuredReply{
		RiskLevel:     core.RiskMedium,
		Summary:       summary,
		Steps:         steps,
		Confidence:    0.78,
		Model:         ModelName,
		PromptVersion: "v4_default_variants",
	}
}
