package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// requestIDPattern enforces the request-id validation rule: non-empty,
// length <= 64, characters in [A-Za-z0-9_-].
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateRequestID applies the request-id validation rule shared by every
// RPC that admits one.
func ValidateRequestID(id string) error {
	if id == "" {
		return ErrInvalidRequestID
	}
	if len(id) > 64 {
		return ErrInvalidRequestID
	}
	if !requestIDPattern.MatchString(id) {
		return ErrRequestIDChars
	}
	return nil
}

// InferenceRequest is what the routing engine sends the inference
// collaborator during a FanoutBest dispatch.
type InferenceRequest struct {
	Seed        uint64
	Prompt      string
	MaxTokens   uint32
	Temperature float32
	TopP        float32
	MsgID       string
}

// InferenceResponse is the inference collaborator's reply.
type InferenceResponse struct {
	Tokens          []string
	GeneratedText   string
	InferenceTimeMs int64
	CacheHits       uint32
	CacheMisses     uint32
}

// InferenceClient is the subset of the inference collaborator the routing
// engine's FanoutBest mode needs.
type InferenceClient interface {
	Infer(ctx context.Context, agent AgentDescriptor, req InferenceRequest) (InferenceResponse, error)
}

const (
	broadcastTopK   = 3
	competitiveCapK = 5
	fanoutMaxK      = 3
	defaultMaxTokens = 128
	defaultTemp      = 0.7
	defaultTopP      = 0.9
)

// RoutingEngine ties the Agent Registry, Dedup Cache, Scoring, Verifier,
// and an inference collaborator together into the single route() entry
// point described by the specification.
type RoutingEngine struct {
	registry *AgentRegistry
	dedup    *DedupCache
	stats    *StatsStore
	infer    InferenceClient
	log      logging.ComponentLogger
}

// NewRoutingEngine wires a routing engine. infer may be nil; FanoutBest
// requests then fail with ErrAllAgentsFailed since no agent can be reached.
func NewRoutingEngine(registry *AgentRegistry, dedup *DedupCache, stats *StatsStore, infer InferenceClient, log logging.ComponentLogger) *RoutingEngine {
	if log == nil {
		log = logging.NoOp{}
	}
	return &RoutingEngine{registry: registry, dedup: dedup, stats: stats, infer: infer, log: log.WithComponent("routing")}
}

// candidates returns every registered agent that is both healthy (>= 0.1)
// and advertises at least one of the required capabilities.
func (e *RoutingEngine) candidates(required []string) []AgentDescriptor {
	healthy := e.registry.Healthy(0.1)
	out := make([]AgentDescriptor, 0, len(healthy))
	for _, a := range healthy {
		if capabilityMatch(a, required) {
			out = append(out, a)
		}
	}
	return out
}

// rankByScore sorts candidates by descending agentScore against required.
func rankByScore(candidates []AgentDescriptor, required []string) []AgentDescriptor {
	sorted := append([]AgentDescriptor(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return agentScore(sorted[i], required) > agentScore(sorted[j], required)
	})
	return sorted
}

// Route dispatches req according to its mode and returns the resulting
// RouteResponse. Preconditions (request-id validation, dedup admission) are
// expected to already have been checked by the caller (the RPC layer),
// matching §4.4's ordering: auth, validate, dedup, then Route itself only
// handles candidate discovery and mode dispatch.
func (e *RoutingEngine) Route(ctx context.Context, req RouteRequest) (RouteResponse, error) {
	start := time.Now()

	candidates := e.candidates(req.RequiredCapabilities)
	if len(candidates) == 0 {
		return RouteResponse{}, ErrNoCapableAgents
	}

	var resp RouteResponse
	var err error

	switch req.Mode {
	case Unicast:
		resp, err = e.routeUnicast(req, candidates, start)
	case Broadcast:
		resp, err = e.routeTopK(req, candidates, start, broadcastTopK, "broadcast")
	case Competitive:
		resp, err = e.routeTopK(req, candidates, start, competitiveCapK, "competitive")
	case FanoutBest:
		resp, err = e.routeFanoutBest(ctx, req, candidates, start, fanoutMaxK, 500)
	default:
		return RouteResponse{}, fmt.Errorf("unsupported routing mode %q", req.Mode)
	}
	if err != nil {
		return RouteResponse{}, err
	}

	e.dedup.Record(resp)
	return resp, nil
}

func (e *RoutingEngine) routeUnicast(req RouteRequest, candidates []AgentDescriptor, start time.Time) (RouteResponse, error) {
	ranked := rankByScore(candidates, req.RequiredCapabilities)
	best := ranked[0]
	e.stats.RecordDispatch(best.AgentID, true, float64(time.Since(start).Milliseconds()))

	return RouteResponse{
		RequestID:         req.RequestID,
		SelectedAgents:    []string{best.AgentID},
		RoutingTimeMs:     time.Since(start).Milliseconds(),
		SelectionCriteria: "Selected by unicast routing",
	}, nil
}

func (e *RoutingEngine) routeTopK(req RouteRequest, candidates []AgentDescriptor, start time.Time, k int, label string) (RouteResponse, error) {
	ranked := rankByScore(candidates, req.RequiredCapabilities)
	if k > len(ranked) {
		k = len(ranked)
	}
	ids := make([]string, 0, k)
	for _, a := range ranked[:k] {
		ids = append(ids, a.AgentID)
		e.stats.RecordDispatch(a.AgentID, true, float64(time.Since(start).Milliseconds()))
	}

	return RouteResponse{
		RequestID:         req.RequestID,
		SelectedAgents:    ids,
		RoutingTimeMs:     time.Since(start).Milliseconds(),
		SelectionCriteria: fmt.Sprintf("Selected by %s routing", label),
	}, nil
}

// fanoutDerivedSeed derives a 64-bit seed from the first 8 bytes (big
// endian) of SHA-256(requestID), so the same request id always dispatches
// with the same seed.
func fanoutDerivedSeed(requestID string) uint64 {
	sum := sha256.Sum256([]byte(requestID))
	return binary.BigEndian.Uint64(sum[:8])
}

type fanoutResult struct {
	agentID   string
	elapsedMs float64
	score     float64
	verified  bool
	err       error
}

// routeFanoutBest implements §4.4's fan-out-best: dispatch to the top-k
// candidates in parallel, await all, score every reply that arrived within
// windowMs, and put the winner (if any) first in selected_agents. Route
// always calls it with k = fanoutMaxK and windowMs = 500; the top_k and
// window_ms values of the route_best_result RPC are not passed through.
func (e *RoutingEngine) routeFanoutBest(ctx context.Context, req RouteRequest, candidates []AgentDescriptor, start time.Time, k int, windowMs int64) (RouteResponse, error) {
	if e.infer == nil {
		return RouteResponse{}, ErrAllAgentsFailed
	}

	ranked := rankByScore(candidates, req.RequiredCapabilities)
	if k > len(ranked) {
		k = len(ranked)
	}
	selected := ranked[:k]

	seed := fanoutDerivedSeed(req.RequestID)
	infReq := InferenceRequest{
		Seed:        seed,
		Prompt:      string(req.Payload),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemp,
		TopP:        defaultTopP,
		MsgID:       req.RequestID,
	}

	results := make([]fanoutResult, len(selected))
	var wg sync.WaitGroup
	for i, agent := range selected {
		wg.Add(1)
		go func(i int, agent AgentDescriptor) {
			defer wg.Done()
			callStart := time.Now()
			out, err := e.infer.Infer(ctx, agent, infReq)
			elapsed := float64(time.Since(callStart).Milliseconds())
			if err != nil {
				results[i] = fanoutResult{agentID: agent.AgentID, elapsedMs: elapsed, err: err}
				return
			}
			verdict := VerifyResponse(out.GeneratedText)
			cacheTotal := out.CacheHits + out.CacheMisses
			var cacheRatio float64
			if cacheTotal > 0 {
				cacheRatio = float64(out.CacheHits) / float64(cacheTotal)
			}
			score := fanoutBestScore(len(out.GeneratedText), len(out.Tokens), cacheRatio, elapsed, verdict.Passed)
			results[i] = fanoutResult{agentID: agent.AgentID, elapsedMs: elapsed, score: score, verified: verdict.Passed}
		}(i, agent)
	}
	wg.Wait()

	ids := make([]string, 0, len(selected))
	for _, r := range results {
		ids = append(ids, r.agentID)
	}

	var winner string
	bestScore := 0.0
	haveWinner := false
	anySucceeded := false
	for _, r := range results {
		success := r.err == nil
		e.stats.RecordDispatch(r.agentID, success, r.elapsedMs)
		if !success {
			continue
		}
		anySucceeded = true
		if r.elapsedMs > float64(windowMs) {
			continue
		}
		if !haveWinner || r.score > bestScore {
			haveWinner = true
			bestScore = r.score
			winner = r.agentID
		}
	}
	if !anySucceeded {
		return RouteResponse{}, ErrAllAgentsFailed
	}

	if haveWinner {
		ids = reorderWinnerFirst(ids, winner)
	}

	return RouteResponse{
		RequestID:      req.RequestID,
		SelectedAgents: ids,
		RoutingTimeMs:  time.Since(start).Milliseconds(),
		SelectionCriteria: fmt.Sprintf("fan-out-best cap_k=%d window_ms=%d winner=%s", k, windowMs, winner),
	}, nil
}

// reorderWinnerFirst moves winner to the front of ids, preserving the
// relative order of everything else.
func reorderWinnerFirst(ids []string, winner string) []string {
	out := make([]string, 0, len(ids))
	out = append(out, winner)
	for _, id := range ids {
		if id != winner {
			out = append(out, id)
		}
	}
	return out
}
