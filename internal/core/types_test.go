package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskLevelOrdering(t *testing.T) {
	assert.True(t, RiskHigh.AtLeast(RiskHigh))
	assert.True(t, RiskHigh.AtLeast(RiskLow))
	assert.True(t, RiskMedium.AtLeast(RiskLow))
	assert.False(t, RiskLow.AtLeast(RiskMedium))
	assert.False(t, RiskMedium.AtLeast(RiskHigh))

	assert.Equal(t, RiskHigh, RiskLow.Max(RiskHigh))
	assert.Equal(t, RiskHigh, RiskHigh.Max(RiskMedium))
	assert.Equal(t, RiskMedium, RiskMedium.Max(RiskLow))
}

func TestParseRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, ParseRiskLevel(" HIGH ", RiskLow))
	assert.Equal(t, RiskMedium, ParseRiskLevel("medium", RiskLow))
	assert.Equal(t, RiskLow, ParseRiskLevel("", RiskLow))
	assert.Equal(t, RiskMedium, ParseRiskLevel("bogus", RiskMedium))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.3))
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.5, ClampConfidence(0.5))
}
