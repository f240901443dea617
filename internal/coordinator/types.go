// Package coordinator implements the routing/arbitration engine, dedup
// cache, agent registry and scoring model, instruction analyzer, spawning
// coordinator, quota mirror, and coordination sessions described by the
// specification. It is the hard core of ohms-coordinator; the economics and
// inference collaborators and the RPC transport are injected as interfaces.
package coordinator

import "time"

// RoutingMode selects the dispatch discipline for a RouteRequest.
type RoutingMode string

const (
	Unicast     RoutingMode = "unicast"
	Broadcast   RoutingMode = "broadcast"
	Competitive RoutingMode = "competitive"
	FanoutBest  RoutingMode = "fanout_best"
)

// HealthStatus mirrors the ready/active/error lifecycle an agent reports.
type HealthStatus string

const (
	AgentInitializing HealthStatus = "initializing"
	AgentReady        HealthStatus = "ready"
	AgentActive       HealthStatus = "active"
	AgentError        HealthStatus = "error"
)

// AgentDescriptor is one registered worker agent.
type AgentDescriptor struct {
	AgentID      string    `json:"agent_id"`
	Principal    string    `json:"principal"`
	Address      string    `json:"address"`
	Capabilities []string  `json:"capabilities"`
	ModelID      string    `json:"model_id"`
	HealthScore  float64   `json:"health_score"`
	Status       HealthStatus `json:"status"`
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// HasCapability reports whether the agent advertises the given tag.
func (a *AgentDescriptor) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// RouteRequest is the transient input to the Routing Engine.
type RouteRequest struct {
	RequestID            string      `json:"request_id" validate:"required,max=64"`
	Principal            string      `json:"principal" validate:"required"`
	RequiredCapabilities []string    `json:"required_capabilities" validate:"required,min=1"`
	Payload              []byte      `json:"payload"`
	Mode                 RoutingMode `json:"mode" validate:"required"`
}

// RouteResponse is the emitted routing result.
type RouteResponse struct {
	RequestID         string   `json:"request_id"`
	SelectedAgents    []string `json:"selected_agents"`
	RoutingTimeMs     int64    `json:"routing_time_ms"`
	SelectionCriteria string   `json:"selection_criteria"`
}

// DedupEntry records a processed request id for at-most-once admission.
type DedupEntry struct {
	RequestID     string    `json:"request_id"`
	ProcessedAt   time.Time `json:"processed_at"`
	ResultHash    string    `json:"result_hash"`
	TTLExpiresAt  time.Time `json:"ttl_expires_at"`
}

// RoutingStat tracks per-agent cumulative dispatch performance.
type RoutingStat struct {
	AgentID             string             `json:"agent_id"`
	TotalRequests       int64              `json:"total_requests"`
	SuccessRate         float64            `json:"success_rate"`
	AverageResponseMs   float64            `json:"average_response_time_ms"`
	CapabilityQuality   map[string]float64 `json:"capability_quality"`
}

// InstructionRequest is the persisted form of a team-creation task.
type InstructionRequest struct {
	RequestID        string    `json:"request_id"`
	Principal        string    `json:"principal"`
	Instructions     string    `json:"instructions"`
	RequestedCount   *int      `json:"requested_count,omitempty"`
	PreferredModels  []string  `json:"preferred_models,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AgentSpec is one planner output unit describing an agent to spawn.
type AgentSpec struct {
	AgentType            string   `json:"agent_type"`
	RequiredCapabilities []string `json:"required_capabilities"`
	CandidateModels      []string `json:"candidate_models"`
	Specialization       string   `json:"specialization"`
}

// CreationStatus is the final status of a creation request.
type CreationStatus string

const (
	CreationInProgress    CreationStatus = "in_progress"
	CreationCompleted     CreationStatus = "completed"
	CreationFailed        CreationStatus = "failed"
	CreationQuotaExceeded CreationStatus = "quota_exceeded"
)

// AgentCreationResult is the polled outcome of a spawn.
type AgentCreationResult struct {
	RequestID     string         `json:"request_id"`
	CreatedAgents []string       `json:"created_agents"`
	ElapsedMs     int64          `json:"elapsed_ms"`
	Status        CreationStatus `json:"status"`
}

// InferenceRate is the collaborator-side priority tier for inference calls.
type InferenceRate string

const (
	RateStandard InferenceRate = "standard"
	RatePriority InferenceRate = "priority"
	RatePremium  InferenceRate = "premium"
)

// QuotaLimits is the tier-derived ceiling on usage.
type QuotaLimits struct {
	MaxAgents          int           `json:"max_agents"`
	MonthlyCreations   int           `json:"monthly_creations"`
	TokenLimit         int64         `json:"token_limit"`
	InferenceRate      InferenceRate `json:"inference_rate"`
}

// QuotaUsage is the running total against QuotaLimits for the current
// billing window.
type QuotaUsage struct {
	AgentsThisMonth     int       `json:"agents_this_month"`
	TokensThisMonth     int64     `json:"tokens_this_month"`
	InferencesThisMonth int       `json:"inferences_this_month"`
	LastResetAt         time.Time `json:"last_reset_at"`
}

// UserQuota is the per-principal quota mirror projection.
type UserQuota struct {
	Principal   string      `json:"principal"`
	Tier        string      `json:"tier"`
	Limits      QuotaLimits `json:"limits"`
	Usage       QuotaUsage  `json:"usage"`
	LastUpdated time.Time   `json:"last_updated"`
}

// QuotaRemaining is always non-negative (saturating subtraction).
type QuotaRemaining struct {
	Agents     int   `json:"agents"`
	Tokens     int64 `json:"tokens"`
	Inferences int   `json:"inferences"`
}

// QuotaValidation is the result of a local quota check.
type QuotaValidation struct {
	Allowed   bool            `json:"allowed"`
	Reason    string          `json:"reason,omitempty"`
	Remaining QuotaRemaining  `json:"remaining"`
}

// SessionStatus is the lifecycle state of a CoordinationSession.
type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionCoordinating SessionStatus = "coordinating"
	SessionCompleted   SessionStatus = "completed"
	SessionFailed      SessionStatus = "failed"
	SessionTimeout     SessionStatus = "timeout"
)

// ResourceCaps bounds what a spawned team is allowed to consume.
type ResourceCaps struct {
	MaxExecutionMs      int64    `json:"max_execution_ms"`
	MaxMemoryBytes      int64    `json:"max_memory_bytes"`
	MaxConcurrentTasks  int      `json:"max_concurrent_tasks"`
	AllowedCapabilities []string `json:"allowed_capabilities"`
}

// SessionMessage is one append-only entry in a session's message log.
type SessionMessage struct {
	Sequence int       `json:"sequence"`
	From     string    `json:"from"`
	To       string    `json:"to,omitempty"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sent_at"`
}

// CoordinationSession is a container for a spawned team.
type CoordinationSession struct {
	SessionID     string           `json:"session_id"`
	Participants  []string         `json:"participants"`
	CoordinatorID string           `json:"coordinator_id"`
	Objective     string           `json:"objective"`
	Status        SessionStatus    `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	LastActivity  time.Time        `json:"last_activity"`
	Messages      []SessionMessage `json:"messages"`
	Caps          ResourceCaps     `json:"resource_caps"`
}

// CommunicationFrequency tunes how chatty a participant is expected to be.
type CommunicationFrequency string

const (
	CommLow    CommunicationFrequency = "low"
	CommNormal CommunicationFrequency = "normal"
	CommHigh   CommunicationFrequency = "high"
)

// ConflictResolutionStrategy governs disagreement handling between
// coordinated agents.
type ConflictResolutionStrategy string

const (
	ResolveConsensus ConflictResolutionStrategy = "consensus"
	ResolveCoordinatorDecides ConflictResolutionStrategy = "coordinator_decides"
)

// CoordinationPreferences records how a participant likes to collaborate.
type CoordinationPreferences struct {
	MaxConcurrentCollaborations int                        `json:"max_concurrent_collaborations"`
	CommunicationFrequency      CommunicationFrequency     `json:"communication_frequency"`
	ConflictResolutionStrategy  ConflictResolutionStrategy `json:"conflict_resolution_strategy"`
}

// PerformanceMetrics is the running scorecard for a coordinated agent.
type PerformanceMetrics struct {
	SuccessRate           float64 `json:"success_rate"`
	AverageResponseTimeMs int64   `json:"average_response_time_ms"`
	CurrentLoad           float64 `json:"current_load"`
	ReliabilityScore      float64 `json:"reliability_score"`
	TasksCompleted        int64   `json:"tasks_completed"`
	CollaborationRating   float64 `json:"collaboration_rating"`
}

// AvailabilityStatus is a participant's current readiness to take on work.
type AvailabilityStatus string

const (
	Available   AvailabilityStatus = "available"
	Busy        AvailabilityStatus = "busy"
	Unavailable AvailabilityStatus = "unavailable"
)

// AgentCapabilityProfile supplements a registered agent with the
// coordination-specific metadata a CoordinationSession needs.
type AgentCapabilityProfile struct {
	AgentID                 string                  `json:"agent_id"`
	Capabilities            []string                `json:"capabilities"`
	Metrics                 PerformanceMetrics      `json:"performance_metrics"`
	Availability            AvailabilityStatus      `json:"availability_status"`
	CoordinationPreferences CoordinationPreferences `json:"coordination_preferences"`
}

// CoordinatorHealth is the aggregate snapshot returned by the
// unauthenticated health RPC.
type CoordinatorHealth struct {
	AgentsTotal    int           `json:"agents_total"`
	AgentsHealthy  int           `json:"agents_healthy"`
	SessionsActive int           `json:"sessions_active"`
	DedupCacheSize int           `json:"dedup_cache_size"`
	Uptime         time.Duration `json:"uptime"`
}

// clamp bounds x to [lo, hi].
func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
