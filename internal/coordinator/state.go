package coordinator

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/config"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// State is the coordinator's single owned value: every component threads
// through this narrow handle rather than through package-level globals, per
// the specification's "global coordinator state" design note (§9).
type State struct {
	StartedAt time.Time

	Registry  *AgentRegistry
	Dedup     *DedupCache
	Stats     *StatsStore
	Sessions  *SessionManager
	Quota     *QuotaMirror
	Spawner   *SpawningCoordinator
	Routing   *RoutingEngine

	log logging.ComponentLogger
}

// New builds a fully wired State from configuration and the two injected
// collaborator clients. infer or econ may be nil for a degraded/offline
// deployment: with no infer, FanoutBest requests fail with
// ErrAllAgentsFailed; with no econ, quota sync serves the local mirror.
func New(cfg *config.Config, redisClient *redis.Client, infer InferenceClient, econ EconomicsClient, log logging.ComponentLogger) *State {
	if log == nil {
		log = logging.NoOp{}
	}

	registry := NewAgentRegistry(redisClient, cfg.Namespace, log)
	dedup := NewDedupCache(cfg.DedupTTL, cfg.DedupSweepEvery)
	stats := NewStatsStore()
	sessions := NewSessionManager()
	quota := NewQuotaMirror(econ, log)
	spawner := NewSpawningCoordinator(registry, stats, sessions, econ, log)
	routing := NewRoutingEngine(registry, dedup, stats, infer, log)

	return &State{
		StartedAt: time.Now().UTC(),
		Registry:  registry,
		Dedup:     dedup,
		Stats:     stats,
		Sessions:  sessions,
		Quota:     quota,
		Spawner:   spawner,
		Routing:   routing,
		log:       log.WithComponent("state"),
	}
}

// Health returns the aggregate snapshot the unauthenticated health RPC
// exposes.
func (s *State) Health() CoordinatorHealth {
	agents := s.Registry.List()
	healthy := 0
	for _, a := range agents {
		if a.HealthScore >= 0.1 {
			healthy++
		}
	}
	return CoordinatorHealth{
		AgentsTotal:    len(agents),
		AgentsHealthy:  healthy,
		SessionsActive: s.Sessions.Count(),
		DedupCacheSize: s.Dedup.Size(),
		Uptime:         time.Since(s.StartedAt),
	}
}

// SweepExpired runs the periodic GC pass a background goroutine should
// invoke every config.DedupSweepEvery / config.SessionSweepEvery tick:
// dedup expiry and session timeout reclamation. It returns how many dedup
// entries and sessions were removed.
func (s *State) SweepExpired(_ context.Context) (dedupRemoved, sessionsRemoved int) {
	return s.Dedup.Sweep(), s.Sessions.CleanupExpired()
}
