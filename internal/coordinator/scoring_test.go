package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentScore_NoRequiredCapabilities(t *testing.T) {
	agent := AgentDescriptor{HealthScore: 0.8}
	assert.InDelta(t, 0.48, agentScore(agent, nil), 1e-9)
}

func TestAgentScore_FullAndPartialMatch(t *testing.T) {
	agent := AgentDescriptor{HealthScore: 1.0, Capabilities: []string{"code_generation", "testing"}}

	full := agentScore(agent, []string{"code_generation", "testing"})
	assert.InDelta(t, 1.0, full, 1e-9)

	partial := agentScore(agent, []string{"code_generation", "research"})
	assert.InDelta(t, 0.8, partial, 1e-9) // 0.6*1.0 + 0.4*0.5
}

func TestCapabilityMatch_AnyMatchAdmits(t *testing.T) {
	agent := AgentDescriptor{Capabilities: []string{"research"}}
	assert.True(t, capabilityMatch(agent, []string{"code_generation", "research"}))
	assert.False(t, capabilityMatch(agent, []string{"code_generation"}))
}

func TestFanoutBestScore_Formula(t *testing.T) {
	// len_norm = 500/1000 = 0.5, tok_norm = 128/256 = 0.5, cache_hit_ratio = 0.5
	// elapsed 1000ms -> 0.4*(1000/5000) = 0.08
	score := fanoutBestScore(500, 128, 0.5, 1000, false)
	expected := 0.6*0.5 + 0.3*0.5 + 0.1*0.5 - 0.08
	assert.InDelta(t, expected, score, 1e-9)
}

func TestFanoutBestScore_VerifiedBonus(t *testing.T) {
	unverified := fanoutBestScore(1000, 256, 1.0, 0, false)
	verified := fanoutBestScore(1000, 256, 1.0, 0, true)
	assert.InDelta(t, 0.1, verified-unverified, 1e-9)
}

func TestFanoutBestScore_ClampsExtremeInputs(t *testing.T) {
	// text/token lengths far beyond the normalization caps must not exceed
	// the 1.0 normalized contribution.
	score := fanoutBestScore(100000, 100000, 1.0, 0, true)
	assert.InDelta(t, 0.6+0.3+0.1+0.1, score, 1e-9)
}
