package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// AgentRegistry tracks every agent known to the coordinator, indexed by id
// and by capability, and keeps the latest health score per agent.
//
// The in-memory map plus per-capability index is the primary source of
// truth (every Route call needs sub-millisecond candidate discovery); an
// optional Redis mirror, grounded on the teacher's RedisRegistry
// (core/redis_registry.go), gives the registry a persistence tier so a
// coordinator restart doesn't immediately forget every healthy agent.
type AgentRegistry struct {
	mu           sync.RWMutex
	agents       map[string]*AgentDescriptor
	byCapability map[string]map[string]struct{}

	redis     *redis.Client
	namespace string
	redisTTL  time.Duration

	log logging.ComponentLogger
}

// NewAgentRegistry builds an in-memory registry. redisClient may be nil, in
// which case the registry operates purely in-memory (acceptable for a
// single-replica deployment or for tests).
func NewAgentRegistry(redisClient *redis.Client, namespace string, log logging.ComponentLogger) *AgentRegistry {
	if log == nil {
		log = logging.NoOp{}
	}
	return &AgentRegistry{
		agents:       make(map[string]*AgentDescriptor),
		byCapability: make(map[string]map[string]struct{}),
		redis:        redisClient,
		namespace:    namespace,
		redisTTL:     90 * time.Second,
		log:          log.WithComponent("registry"),
	}
}

// DeriveAgentID produces a stable, opaque agent id from its owning
// principal and model, salted with the current time so re-registering the
// same principal+model pair does not collide with a stale entry.
func DeriveAgentID(principal, modelID string, now time.Time) string {
	h := sha256.New()
	h.Write([]byte(principal))
	h.Write([]byte(modelID))
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(now.UnixNano()))
	h.Write(ts[:])
	sum := h.Sum(nil)
	return "agent_" + base64.RawURLEncoding.EncodeToString(sum[:8])
}

// Register adds or replaces an agent descriptor and indexes it by
// capability. The in-memory write always happens; the Redis mirror write is
// best-effort and logged on failure rather than returned, since registry
// availability must not depend on Redis being up.
func (r *AgentRegistry) Register(ctx context.Context, agent *AgentDescriptor) error {
	if agent.AgentID == "" {
		return fmt.Errorf("agent id required: %w", ErrAgentNotFound)
	}
	agent.HealthScore = clamp(agent.HealthScore, 0, 1)
	if agent.RegisteredAt.IsZero() {
		agent.RegisteredAt = time.Now().UTC()
	}
	agent.LastSeen = time.Now().UTC()

	r.mu.Lock()
	r.removeFromIndexesLocked(agent.AgentID)
	cp := *agent
	r.agents[agent.AgentID] = &cp
	for _, cap := range agent.Capabilities {
		set, ok := r.byCapability[cap]
		if !ok {
			set = make(map[string]struct{})
			r.byCapability[cap] = set
		}
		set[agent.AgentID] = struct{}{}
	}
	r.mu.Unlock()

	r.mirrorToRedis(ctx, &cp)

	r.log.Debug("agent registered", map[string]interface{}{
		"agent_id":     agent.AgentID,
		"capabilities": agent.Capabilities,
	})
	return nil
}

// removeFromIndexesLocked drops agentID from every capability index. Caller
// must hold r.mu.
func (r *AgentRegistry) removeFromIndexesLocked(agentID string) {
	existing, ok := r.agents[agentID]
	if !ok {
		return
	}
	for _, cap := range existing.Capabilities {
		if set, ok := r.byCapability[cap]; ok {
			delete(set, agentID)
			if len(set) == 0 {
				delete(r.byCapability, cap)
			}
		}
	}
}

func (r *AgentRegistry) mirrorToRedis(ctx context.Context, agent *AgentDescriptor) {
	if r.redis == nil {
		return
	}
	data, err := json.Marshal(agent)
	if err != nil {
		r.log.Warn("failed to marshal agent for redis mirror", map[string]interface{}{"error": err})
		return
	}

	pipe := r.redis.TxPipeline()
	key := fmt.Sprintf("%s:agents:%s", r.namespace, agent.AgentID)
	pipe.Set(ctx, key, data, r.redisTTL)
	for _, cap := range agent.Capabilities {
		capKey := fmt.Sprintf("%s:capabilities:%s", r.namespace, cap)
		pipe.SAdd(ctx, capKey, agent.AgentID)
		pipe.Expire(ctx, capKey, r.redisTTL*2)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("failed to mirror agent to redis", map[string]interface{}{
			"agent_id": agent.AgentID,
			"error":    err,
		})
	}
}

// Get returns a copy of the agent descriptor for id.
func (r *AgentRegistry) Get(id string) (AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return AgentDescriptor{}, ErrAgentNotFound
	}
	return *a, nil
}

// List returns a copy of every registered agent.
func (r *AgentRegistry) List() []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentDescriptor, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, *a)
	}
	return out
}

// ByCapability returns every registered agent advertising the given
// capability tag.
func (r *AgentRegistry) ByCapability(cap string) []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCapability[cap]
	out := make([]AgentDescriptor, 0, len(ids))
	for id := range ids {
		if a, ok := r.agents[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// ByCapabilities returns agents advertising every one of the required
// capabilities (set intersection).
func (r *AgentRegistry) ByCapabilities(caps []string) []AgentDescriptor {
	if len(caps) == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	base := r.byCapability[caps[0]]
	candidates := make(map[string]struct{}, len(base))
	for id := range base {
		candidates[id] = struct{}{}
	}
	for _, cap := range caps[1:] {
		set := r.byCapability[cap]
		for id := range candidates {
			if _, ok := set[id]; !ok {
				delete(candidates, id)
			}
		}
	}

	out := make([]AgentDescriptor, 0, len(candidates))
	for id := range candidates {
		if a, ok := r.agents[id]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// Healthy returns every registered agent with health score >= minHealth.
func (r *AgentRegistry) Healthy(minHealth float64) []AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AgentDescriptor, 0, len(r.agents))
	for _, a := range r.agents {
		if a.HealthScore >= minHealth {
			out = append(out, *a)
		}
	}
	return out
}

// UpdateHealth clamps and stores a new health score, bumping last_seen.
// last_seen only ever moves forward: an out-of-order heartbeat (stale
// network retry) cannot roll the clock back.
func (r *AgentRegistry) UpdateHealth(ctx context.Context, id string, score float64, status HealthStatus) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	a.HealthScore = clamp(score, 0, 1)
	a.Status = status
	now := time.Now().UTC()
	if now.After(a.LastSeen) {
		a.LastSeen = now
	}
	cp := *a
	r.mu.Unlock()

	r.mirrorToRedis(ctx, &cp)
	return nil
}

// Remove deletes an agent from the registry and its capability indexes.
func (r *AgentRegistry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.agents[id]; !ok {
		r.mu.Unlock()
		return ErrAgentNotFound
	}
	r.removeFromIndexesLocked(id)
	delete(r.agents, id)
	r.mu.Unlock()

	if r.redis != nil {
		key := fmt.Sprintf("%s:agents:%s", r.namespace, id)
		if err := r.redis.Del(ctx, key).Err(); err != nil {
			r.log.Warn("failed to remove agent from redis mirror", map[string]interface{}{
				"agent_id": id,
				"error":    err,
			})
		}
	}
	return nil
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
