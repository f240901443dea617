package coordinator

import "math"

// weightHealth and weightCapability are the fixed routing-score weights:
// 0.6 health, 0.4 capability fit. Grounded on original_source's
// RoutingService::calculate_agent_score.
const (
	weightHealth     = 0.6
	weightCapability = 0.4
)

// agentScore combines health and capability fit into the single number the
// routing engine ranks candidates by. Capability fit is the fraction of
// requiredCapabilities the agent actually advertises, so a partial match
// still scores rather than being excluded outright (exclusion already
// happened at the candidate-discovery stage via capabilityMatch).
func agentScore(agent AgentDescriptor, requiredCapabilities []string) float64 {
	if len(requiredCapabilities) == 0 {
		return weightHealth * agent.HealthScore
	}

	var matched float64
	for _, cap := range requiredCapabilities {
		if agent.HasCapability(cap) {
			matched++
		}
	}
	capabilityFit := matched / float64(len(requiredCapabilities))

	score := weightHealth*agent.HealthScore + weightCapability*capabilityFit
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}

// capabilityMatch reports whether agent advertises at least one of the
// required capabilities. The original routing engine admits a candidate on
// ANY match, not ALL — narrowing to an exact match is left to scoring.
func capabilityMatch(agent AgentDescriptor, requiredCapabilities []string) bool {
	for _, cap := range requiredCapabilities {
		if agent.HasCapability(cap) {
			return true
		}
	}
	return false
}

// fanoutBestScore ranks a FanoutBest candidate response:
// 0.6·len_norm + 0.3·tok_norm + 0.1·cache_hit_ratio − 0.4·(elapsed_ms/5000),
// plus 0.1 if the verifier passed, where len_norm = min(1000,text_len)/1000
// and tok_norm = min(256,tokens)/256. Grounded on spec §4.3's fan-out
// formula.
func fanoutBestScore(textLen, tokenCount int, cacheHitRatio float64, elapsedMs float64, verified bool) float64 {
	lenNorm := math.Min(1000, float64(textLen)) / 1000.0
	tokNorm := math.Min(256, float64(tokenCount)) / 256.0

	score := 0.6*lenNorm + 0.3*tokNorm + 0.1*cacheHitRatio - 0.4*(elapsedMs/5000.0)
	if verified {
		score += 0.1
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return score
}
