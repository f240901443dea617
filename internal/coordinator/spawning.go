package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// spawnResourceCaps are the fixed resource caps a CoordinationSession gets
// when a Spawning Coordinator batch creates ≥2 agents: 1 hour execution,
// 100 MiB memory, 10 concurrent tasks.
var spawnResourceCaps = ResourceCaps{
	MaxExecutionMs:     int64((1 * time.Hour) / time.Millisecond),
	MaxMemoryBytes:     100 * 1024 * 1024,
	MaxConcurrentTasks: 10,
}

// SpawningCoordinator executes an instruction analysis into registered
// agents and, for multi-agent teams, a CoordinationSession.
type SpawningCoordinator struct {
	mu        sync.Mutex
	registry  *AgentRegistry
	stats     *StatsStore
	sessions  *SessionManager
	profiles  map[string]*AgentCapabilityProfile
	requests  map[string]InstructionRequest
	results   map[string]AgentCreationResult
	econ      EconomicsClient
	log       logging.ComponentLogger
}

// NewSpawningCoordinator wires a spawning coordinator. econ may be nil, in
// which case the post-creation tracking call is skipped.
func NewSpawningCoordinator(registry *AgentRegistry, stats *StatsStore, sessions *SessionManager, econ EconomicsClient, log logging.ComponentLogger) *SpawningCoordinator {
	if log == nil {
		log = logging.NoOp{}
	}
	return &SpawningCoordinator{
		registry: registry,
		stats:    stats,
		sessions: sessions,
		profiles: make(map[string]*AgentCapabilityProfile),
		requests: make(map[string]InstructionRequest),
		results:  make(map[string]AgentCreationResult),
		econ:     econ,
		log:      log.WithComponent("spawning"),
	}
}

// agentCreationOutcome is the per-spec outcome before aggregation into the
// overall batch status.
type agentCreationOutcome struct {
	agentID string
	status  HealthStatus
	err     error
}

// Spawn runs analyze(instructions) and then creates one agent per
// suggested spec, registering each in the Agent Registry. If two or more
// agents are created, a CoordinationSession is opened owned by the first
// agent and an AgentCapabilityProfile is installed for every participant.
// On success the economics collaborator is notified via
// TrackAgentCreation; on total failure the stored InstructionRequest is
// rolled back (removed).
func (s *SpawningCoordinator) Spawn(ctx context.Context, requestID, principal, instructions string, quotaCheck func() QuotaValidation) (AgentCreationResult, error) {
	start := time.Now()

	ir := InstructionRequest{
		RequestID:    requestID,
		Principal:    principal,
		Instructions: instructions,
		CreatedAt:    time.Now().UTC(),
	}
	s.mu.Lock()
	s.requests[requestID] = ir
	s.mu.Unlock()

	analysis := Analyze(requestID, instructions, quotaCheck)
	if !analysis.QuotaCheck.Allowed {
		s.rollback(requestID)
		result := AgentCreationResult{RequestID: requestID, Status: CreationQuotaExceeded, ElapsedMs: time.Since(start).Milliseconds()}
		s.storeResult(requestID, result)
		return result, fmt.Errorf("%s: %w", analysis.QuotaCheck.Reason, ErrMonthlyCreationLimit)
	}

	outcomes := make([]agentCreationOutcome, 0, len(analysis.SuggestedSpecs))
	now := time.Now()
	for _, spec := range analysis.SuggestedSpecs {
		outcome := s.createOne(ctx, principal, spec, now)
		outcomes = append(outcomes, outcome)
	}

	createdIDs := make([]string, 0, len(outcomes))
	readyCount, errorCount := 0, 0
	for _, o := range outcomes {
		if o.err == nil {
			createdIDs = append(createdIDs, o.agentID)
			readyCount++
		} else {
			errorCount++
		}
	}

	if readyCount == 0 {
		s.rollback(requestID)
		result := AgentCreationResult{RequestID: requestID, Status: CreationFailed, ElapsedMs: time.Since(start).Milliseconds()}
		s.storeResult(requestID, result)
		return result, ErrAllAgentsFailed
	}

	if len(createdIDs) >= 2 {
		session := s.sessions.Create(
			fmt.Sprintf("Coordinated execution of instruction request %s", requestID),
			createdIDs,
			createdIDs[0],
			spawnResourceCaps,
		)
		s.installProfiles(createdIDs)
		s.log.Info("coordination session created", map[string]interface{}{
			"session_id":  session.SessionID,
			"participants": createdIDs,
		})
	}

	if s.econ != nil {
		if err := s.econ.TrackAgentCreation(ctx, principal, readyCount); err != nil {
			s.log.Warn("economics tracking failed after successful spawn", map[string]interface{}{
				"principal": principal,
				"error":     err,
			})
		}
	}

	status := CreationCompleted
	if errorCount > 0 && readyCount > 0 {
		status = CreationCompleted // PartialSuccess persisted as Completed per spec
	}

	result := AgentCreationResult{
		RequestID:     requestID,
		CreatedAgents: createdIDs,
		ElapsedMs:     time.Since(start).Milliseconds(),
		Status:        status,
	}
	s.storeResult(requestID, result)
	return result, nil
}

func (s *SpawningCoordinator) createOne(ctx context.Context, principal string, spec AgentSpec, now time.Time) agentCreationOutcome {
	modelID := "llama"
	if len(spec.CandidateModels) > 0 {
		modelID = spec.CandidateModels[0]
	}

	agentID := fmt.Sprintf("agent_%s_%s_%d", principal, spec.AgentType, now.UnixNano())
	descriptor := &AgentDescriptor{
		AgentID:      agentID,
		Principal:    principal,
		Capabilities: spec.RequiredCapabilities,
		ModelID:      modelID,
		HealthScore:  1.0,
		Status:       AgentReady,
	}

	if err := s.registry.Register(ctx, descriptor); err != nil {
		return agentCreationOutcome{agentID: agentID, status: AgentError, err: err}
	}
	s.stats.Seed(agentID, spec.RequiredCapabilities)
	return agentCreationOutcome{agentID: agentID, status: AgentReady}
}

func (s *SpawningCoordinator) installProfiles(agentIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range agentIDs {
		s.profiles[id] = &AgentCapabilityProfile{
			AgentID: id,
			Metrics: PerformanceMetrics{
				SuccessRate:      1.0,
				CurrentLoad:      0.0,
				ReliabilityScore: 1.0,
			},
			Availability: Available,
			CoordinationPreferences: CoordinationPreferences{
				MaxConcurrentCollaborations: 5,
				CommunicationFrequency:      CommNormal,
				ConflictResolutionStrategy:  ResolveCoordinatorDecides,
			},
		}
	}
}

func (s *SpawningCoordinator) storeResult(requestID string, result AgentCreationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[requestID] = result
}

// rollback removes the stored InstructionRequest for a failed spawn, per
// the write-side failure propagation policy in §7.
func (s *SpawningCoordinator) rollback(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.requests, requestID)
}

// Result returns the stored outcome of a previously submitted spawn.
func (s *SpawningCoordinator) Result(requestID string) (AgentCreationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[requestID]
	if !ok {
		return AgentCreationResult{}, ErrCreationRequestNotFound
	}
	return r, nil
}

// InstructionRequests returns every still-live instruction request.
func (s *SpawningCoordinator) InstructionRequests() []InstructionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InstructionRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	return out
}

// Profile returns the coordination capability profile installed for an
// agent created via a multi-agent spawn.
func (s *SpawningCoordinator) Profile(agentID string) (AgentCapabilityProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[agentID]
	if !ok {
		return AgentCapabilityProfile{}, false
	}
	return *p, true
}
