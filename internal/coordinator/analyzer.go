package coordinator

import (
	"fmt"
	"strings"
)

// analyzerPattern is one keyword-matched row of the planner table.
type analyzerPattern struct {
	name           string
	keywords       []string
	capabilities   []string
	candidateModels []string
	specialization string
}

// analyzerTable is the fixed keyword → {capabilities, models, specialization}
// table the Instruction Analyzer matches against. Order is preserved so
// spec generation stays deterministic for a given instruction string.
// Grounded on original_source's instruction_analyzer.rs pattern table.
var analyzerTable = []analyzerPattern{
	{
		name:            "development",
		keywords:        []string{"code", "programming", "develop", "software", "application"},
		capabilities:    []string{"code_generation", "software_development"},
		candidateModels: []string{"codellama", "llama"},
		specialization:  "Software Developer",
	},
	{
		name:            "testing",
		keywords:        []string{"test", "testing", "qa", "quality", "verify"},
		capabilities:    []string{"test_generation", "quality_assurance"},
		candidateModels: []string{"llama", "mistral"},
		specialization:  "Test Engineer",
	},
	{
		name:            "review",
		keywords:        []string{"review", "code review", "peer review"},
		capabilities:    []string{"code_review", "static_analysis"},
		candidateModels: []string{"codellama", "llama"},
		specialization:  "Code Reviewer",
	},
	{
		name:            "writing",
		keywords:        []string{"write", "content", "article", "blog", "documentation"},
		capabilities:    []string{"content_writing", "documentation"},
		candidateModels: []string{"llama", "mistral"},
		specialization:  "Content Writer",
	},
	{
		name:            "marketing",
		keywords:        []string{"marketing", "social media", "campaign", "promote"},
		capabilities:    []string{"marketing_strategy", "content_writing"},
		candidateModels: []string{"llama", "mistral"},
		specialization:  "Marketing Specialist",
	},
	{
		name:            "analytics",
		keywords:        []string{"analyze", "data", "analytics", "insights", "report"},
		capabilities:    []string{"data_analysis", "reporting"},
		candidateModels: []string{"llama", "mistral"},
		specialization:  "Data Analyst",
	},
	{
		name:            "research",
		keywords:        []string{"research", "investigate", "study", "explore"},
		capabilities:    []string{"research", "information_synthesis"},
		candidateModels: []string{"llama", "mistral"},
		specialization:  "Researcher",
	},
}

// ComplexityLevel classifies an analyzed instruction by its matched-pattern
// count.
type ComplexityLevel string

const (
	ComplexitySimple     ComplexityLevel = "Simple"
	ComplexityModerate   ComplexityLevel = "Moderate"
	ComplexityComplex    ComplexityLevel = "Complex"
	ComplexityEnterprise ComplexityLevel = "Enterprise"
)

// InstructionAnalysis is the full output of Analyze.
type InstructionAnalysis struct {
	RequestID          string          `json:"request_id"`
	ParsedCapabilities []string        `json:"parsed_capabilities"`
	SuggestedSpecs     []AgentSpec     `json:"suggested_specs"`
	CoordinationPlan   string          `json:"coordination_plan"`
	CoordinationNeeds  []string        `json:"coordination_needs"`
	Complexity         ComplexityLevel `json:"complexity"`
	AgentCount         int             `json:"agent_count"`
	QuotaCheck         QuotaValidation `json:"quota_check"`
}

// Analyze runs the 8-step instruction analysis pipeline: pattern match,
// count derivation, coordination-need derivation, complexity
// classification, a quota check delegated to quotaCheck, spec generation
// (padded to agent_count with Generalist specs), and a human-readable plan
// string.
func Analyze(requestID, instructions string, quotaCheck func() QuotaValidation) InstructionAnalysis {
	lower := strings.ToLower(instructions)

	var matched []analyzerPattern
	capSet := make(map[string]struct{})
	var capabilities []string
	for _, p := range analyzerTable {
		if matchesAny(lower, p.keywords) {
			matched = append(matched, p)
			for _, c := range p.capabilities {
				if _, ok := capSet[c]; !ok {
					capSet[c] = struct{}{}
					capabilities = append(capabilities, c)
				}
			}
		}
	}

	agentCount := len(matched)
	if agentCount < 1 {
		agentCount = 1
	}
	if strings.Contains(lower, "team") || strings.Contains(lower, "multiple") {
		if agentCount < 3 {
			agentCount = 3
		}
	}
	if strings.Contains(lower, "complex") || strings.Contains(lower, "comprehensive") {
		if agentCount < 4 {
			agentCount = 4
		}
	}
	if agentCount > 10 {
		agentCount = 10
	}

	var needs []string
	if agentCount > 1 {
		needs = append(needs, "inter_agent_communication")
	}
	if strings.Contains(lower, "collaborate") || strings.Contains(lower, "coordinate") {
		needs = append(needs, "task_coordination")
	}
	if strings.Contains(lower, "review") || strings.Contains(lower, "approve") {
		needs = append(needs, "workflow_approval")
	}
	if agentCount > 3 {
		needs = append(needs, "load_balancing")
	}

	var complexity ComplexityLevel
	switch {
	case agentCount <= 1:
		complexity = ComplexitySimple
	case agentCount <= 3:
		complexity = ComplexityModerate
	case agentCount <= 6:
		complexity = ComplexityComplex
	default:
		complexity = ComplexityEnterprise
	}

	var quota QuotaValidation
	if quotaCheck != nil {
		quota = quotaCheck()
	}

	specs := make([]AgentSpec, 0, agentCount)
	for _, p := range matched {
		if len(specs) >= agentCount {
			break
		}
		specs = append(specs, AgentSpec{
			AgentType:            p.name,
			RequiredCapabilities: p.capabilities,
			CandidateModels:      p.candidateModels,
			Specialization:       p.specialization,
		})
	}
	for len(specs) < agentCount {
		specs = append(specs, AgentSpec{
			AgentType:            "generalist",
			RequiredCapabilities: []string{"general_assistance"},
			CandidateModels:      []string{"llama"},
			Specialization:       "Generalist",
		})
	}

	plan := buildPlanString(agentCount, complexity, needs, specs)

	return InstructionAnalysis{
		RequestID:          requestID,
		ParsedCapabilities: capabilities,
		SuggestedSpecs:     specs,
		CoordinationPlan:   plan,
		CoordinationNeeds:  needs,
		Complexity:         complexity,
		AgentCount:         agentCount,
		QuotaCheck:         quota,
	}
}

func matchesAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func buildPlanString(agentCount int, complexity ComplexityLevel, needs []string, specs []AgentSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Team plan: %d agent(s), complexity %s\n", agentCount, complexity)
	if len(needs) > 0 {
		fmt.Fprintf(&b, "Coordination needs: %s\n", strings.Join(needs, ", "))
	} else {
		b.WriteString("Coordination needs: none\n")
	}
	b.WriteString("Specializations:\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "  - %s (%s)\n", s.Specialization, strings.Join(s.RequiredCapabilities, "/"))
	}
	return b.String()
}
