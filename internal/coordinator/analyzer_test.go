package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allowedQuota() QuotaValidation {
	return QuotaValidation{Allowed: true, Remaining: QuotaRemaining{Agents: 10, Tokens: 1000, Inferences: 10}}
}

func TestAnalyze_SinglePatternIsSimple(t *testing.T) {
	a := Analyze("req-1", "please write some code for me", allowedQuota)
	assert.Equal(t, ComplexitySimple, a.Complexity)
	assert.Equal(t, 1, a.AgentCount)
	require.Len(t, a.SuggestedSpecs, 1)
	assert.Equal(t, "development", a.SuggestedSpecs[0].AgentType)
	assert.Contains(t, a.ParsedCapabilities, "code_generation")
}

func TestAnalyze_TeamKeywordRaisesFloor(t *testing.T) {
	a := Analyze("req-2", "write some code", allowedQuota)
	require.Equal(t, 1, a.AgentCount)

	a = Analyze("req-3", "build a team to write code", allowedQuota)
	assert.GreaterOrEqual(t, a.AgentCount, 3)
}

func TestAnalyze_ComplexKeywordRaisesFloor(t *testing.T) {
	a := Analyze("req-4", "a comprehensive review of our code", allowedQuota)
	assert.GreaterOrEqual(t, a.AgentCount, 4)
}

func TestAnalyze_ComplexityFollowsAgentCountNotPatternCount(t *testing.T) {
	a := Analyze("req-complex-team", "Build a complex software system with a team of developers, testers, and reviewers", allowedQuota)
	require.Equal(t, 4, a.AgentCount) // 3 matched patterns, bumped to 4 by "complex"
	assert.Contains(t, []ComplexityLevel{ComplexityComplex, ComplexityEnterprise}, a.Complexity)

	var specializations []string
	for _, s := range a.SuggestedSpecs {
		specializations = append(specializations, s.Specialization)
	}
	assert.Contains(t, specializations, "Software Developer")
	assert.Contains(t, specializations, "Test Engineer")
	assert.Contains(t, specializations, "Code Reviewer")
}

func TestAnalyze_CountCappedAtTen(t *testing.T) {
	instructions := "code testing review write marketing analyze research team comprehensive complex"
	a := Analyze("req-5", instructions, allowedQuota)
	assert.LessOrEqual(t, a.AgentCount, 10)
}

func TestAnalyze_PadsSpecsWithGeneralist(t *testing.T) {
	a := Analyze("req-6", "build a team to write content", allowedQuota)
	require.Len(t, a.SuggestedSpecs, a.AgentCount)

	generalists := 0
	for _, s := range a.SuggestedSpecs {
		if s.AgentType == "generalist" {
			generalists++
		}
	}
	assert.Positive(t, generalists)
}

func TestAnalyze_CoordinationNeeds(t *testing.T) {
	a := Analyze("req-7", "coordinate a team to review and approve the release", allowedQuota)
	assert.Contains(t, a.CoordinationNeeds, "inter_agent_communication")
	assert.Contains(t, a.CoordinationNeeds, "task_coordination")
	assert.Contains(t, a.CoordinationNeeds, "workflow_approval")
}

func TestAnalyze_NoMatchStillProducesOneGeneralist(t *testing.T) {
	a := Analyze("req-8", "do something entirely unrelated to any keyword", allowedQuota)
	assert.Equal(t, 1, a.AgentCount)
	assert.Equal(t, ComplexitySimple, a.Complexity)
	require.Len(t, a.SuggestedSpecs, 1)
	assert.Equal(t, "generalist", a.SuggestedSpecs[0].AgentType)
}

func TestAnalyze_PropagatesQuotaCheck(t *testing.T) {
	denied := func() QuotaValidation {
		return QuotaValidation{Allowed: false, Reason: "Monthly agent creation limit reached"}
	}
	a := Analyze("req-9", "write some code", denied)
	assert.False(t, a.QuotaCheck.Allowed)
	assert.Equal(t, "Monthly agent creation limit reached", a.QuotaCheck.Reason)
}

func TestAnalyze_PlanStringMentionsAgentCountAndComplexity(t *testing.T) {
	a := Analyze("req-10", "write some code", allowedQuota)
	assert.Contains(t, a.CoordinationPlan, "Team plan:")
	assert.Contains(t, a.CoordinationPlan, string(a.Complexity))
}
