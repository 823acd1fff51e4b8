package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askmom/internal/core"
)

func TestBuildSubjectByRisk(t *testing.T) {
	b := NewBuilder("")

	d := b.Build("printer offline", "it will not print", core.RiskHigh)
	assert.Equal(t, "Possible scam — need quick advice", d.EmailSubject)

	d = b.Build("printer offline", "it will not print", core.RiskMedium)
	assert.Equal(t, "Tech help — stuck on printer offline", d.EmailSubject)

	d = b.Build("", "it will not print", core.RiskLow)
	assert.Equal(t, "Tech help — quick question", d.EmailSubject)
}

func TestBuildBodies(t *testing.T) {
	b := NewBuilder("")

	d := b.Build("wifi down", "the router has a red light", core.RiskMedium)

	assert.Contains(t, d.SMSBody, "Topic: wifi down")
	assert.Contains(t, d.SMSBody, "What happened: the router has a red light")
	assert.Contains(t, d.SMSBody, "What should I do next?")

	assert.Contains(t, d.EmailBody, DefaultAppName)
	assert.Contains(t, d.EmailBody, "the router has a red light")

	// Empty fields simply drop their lines.
	d = b.Build("", "", core.RiskLow)
	assert.NotContains(t, d.SMSBody, "Topic:")
	assert.NotContains(t, d.SMSBody, "What happened:")
	assert.Contains(t, d.SMSBody, "What's the next step I should try?")
}

func TestBuildCustomAppName(t *testing.T) {
	b := NewBuilder("Grandma Helper")
	d := b.Build("", "hi", core.RiskLow)
	assert.Contains(t, d.EmailBody, "Grandma Helper")
	assert.NotContains(t, d.EmailBody, DefaultAppName)
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder("")
	a := b.Build("topic", "text", core.RiskHigh)
	c := b.Build("topic", "text", core.RiskHigh)
	require.Equal(t, a, c)
}
