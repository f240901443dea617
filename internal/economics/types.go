// Package economics is the client for the economics collaborator: the
// remote service that authoritatively holds per-principal subscription
// tier, limits, and usage. The coordinator's Quota Mirror only consults and
// mirrors it (spec §6.2); this package owns transport and circuit
// breaking, never billing logic.
package economics

// Subscription is the wire shape of a principal's subscription state.
type Subscription struct {
	Principal string  `json:"principal"`
	Tier      string  `json:"tier"`
	Limits    Limits  `json:"limits"`
	Usage     Usage   `json:"usage"`
}

// Limits mirrors coordinator.QuotaLimits on the wire.
type Limits struct {
	MaxAgents        int    `json:"max_agents"`
	MonthlyCreations int    `json:"monthly_creations"`
	TokenLimit       int64  `json:"token_limit"`
	InferenceRate    string `json:"inference_rate"`
}

// Usage mirrors coordinator.QuotaUsage on the wire.
type Usage struct {
	AgentsThisMonth     int   `json:"agents_this_month"`
	TokensThisMonth     int64 `json:"tokens_this_month"`
	InferencesThisMonth int   `json:"inferences_this_month"`
	LastResetAt         int64 `json:"last_reset_at"`
}

// Health is the economics collaborator's self-reported health.
type Health struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail"`
}
