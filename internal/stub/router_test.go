package stub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/core"
)

func testSeed(text string) Seed {
	return Seed{
		TimeBucket:     2_962_000,
		UserID:         "u1",
		ConversationID: "c1",
		RawText:        text,
	}
}

func TestRouteDeterministic(t *testing.T) {
	texts := []string{
		"hi",
		"my printer is offline",
		"the screen went dark while I was reading my email this morning",
	}
	for _, txt := range texts {
		a := Route(txt, testSeed(txt))
		b := Route(txt, testSeed(txt))
		require.Equal(t, a, b, "same seed must reproduce the reply for %q", txt)
	}
}

func TestRouteSeedChangesVariation(t *testing.T) {
	s1 := testSeed("hi")
	s2 := s1
	s2.TimeBucket++
	assert.NotEqual(t, s1.Fold(), s2.Fold())
}

func TestRouteHighRiskTemplateIsFixed(t *testing.T) {
	reply := Route("they told me to buy a gift card and read the numbers", testSeed("x"))

	require.Equal(t, core.RiskHigh, reply.RiskLevel)
	assert.True(t, reply.EscalateSuggested)
	assert.Contains(t, reply.Summary, "Do NOT pay")
	assert.Equal(t, "v2_highrisk", reply.PromptVersion)
	assert.Equal(t, ModelName, reply.Model)
	assert.GreaterOrEqual(t, reply.Confidence, 0.9)

	// Rules already cover this turn; no model call is recommended.
	assert.False(t, reply.ModelRecommended)
	assert.Equal(t, "high_risk_rules", reply.ModelReason)

	// No seeded variation on the high-risk path.
	other := Route("they told me to buy a gift card and read the numbers", Seed{TimeBucket: 99, UserID: "other"})
	assert.Equal(t, reply.Summary, other.Summary)
	assert.Equal(t, reply.Steps, other.Steps)
}

func TestRouteGreetingPath(t *testing.T) {
	for _, txt := range []string{"hi", "hello!", "hola", "", "good morning"} {
		reply := Route(txt, testSeed(txt))
		assert.Equal(t, "v4_greeting_variants", reply.PromptVersion, "text %q", txt)
		assert.Equal(t, core.RiskLow, reply.RiskLevel)
		assert.NotEmpty(t, reply.Summary)
		assert.NotEmpty(t, reply.Steps)
	}
}

func TestRoutePlaybookSelection(t *testing.T) {
	tests := []struct {
		text    string
		version string
	}{
		{"my wifi keeps dropping every evening", "v1_wifi_playbook"},
		{"i forgot password for my email account today", "v1_password_reset_playbook"},
		{"i think my email was hacked by someone", "v1_email_hacked_playbook"},
		{"phone says storage full and nothing downloads", "v1_storage_playbook"},
		{"the printer went offline again this week", "v1_printer_playbook"},
		{"a popup says my machine has a virus", "v1_popup_playbook"},
		{"i got charged for a subscription i never ordered", "v1_subscription_playbook"},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			reply := Route(tt.text, testSeed(tt.text))
			assert.Equal(t, tt.version, reply.PromptVersion)
		})
	}
}

func TestRouteStepCap(t *testing.T) {
	// Across a spread of seeds no reply ever exceeds the step cap.
	for bucket := int64(0); bucket < 50; bucket++ {
		s := Seed{TimeBucket: bucket, UserID: "u", ConversationID: "c", RawText: "hi"}
		reply := Route("hi", s)
		assert.LessOrEqual(t, len(reply.Steps), maxSteps)
	}
}

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain hi", "hi", true},
		{"hey with tail", "hey there", true},
		{"spanish", "buenos dias", true},
		{"empty", "", true},
		{"emoji only", "👍👍", true},
		{"keyboard mash", "asdfgh jkl", true},
		{"risk phrase never greets", "hi, they want a gift card", false},
		{"refund never greets", "hi, they want a refund", false},
		{"real problem", "my printer stopped printing after the update yesterday", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isGreeting(tt.in))
		})
	}
}

func TestDetectIntentPriority(t *testing.T) {
	// Wifi outranks printer when both token sets match.
	assert.Equal(t, IntentWifi, detectIntent("printer says no internet"))
	assert.Equal(t, Intent(""), detectIntent("something entirely unrelated"))
}

func TestAdvise(t *testing.T) {
	long := make([]byte, 450)
	for i := range long {
		long[i] = 'a'
		if i%8 == 7 {
			long[i] = ' '
		}
	}

	tests := []struct {
		name       string
		text       string
		risk       core.RiskLevel
		confidence float64
		want       bool
		reason     string
	}{
		{"high risk handled by rules", "buy gift cards", core.RiskHigh, 0.5, false, "high_risk_rules"},
		{"long message", string(long), core.RiskLow, 0.9, true, "long_message"},
		{"error log", "I keep seeing error 404 when I open the page", core.RiskLow, 0.9, true, "looks_like_error_log"},
		{"complex terms", "my printer driver needs something after the last change", core.RiskMedium, 0.9, true, "complex_terms"},
		{"low confidence medium risk", "something odd happened", core.RiskMedium, 0.5, true, "low_confidence"},
		{"short low risk not escalated", "hello there", core.RiskLow, 0.5, false, "not_needed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Advise(tt.text, tt.risk, tt.confidence)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, reason, tt.reason)
		})
	}
}
