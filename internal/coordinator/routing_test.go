package coordinator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

func TestValidateRequestID(t *testing.T) {
	assert.NoError(t, ValidateRequestID("abc-123_XYZ"))
	assert.ErrorIs(t, ValidateRequestID(""), ErrInvalidRequestID)
	assert.ErrorIs(t, ValidateRequestID(fmt.Sprintf("%065d", 0)), ErrInvalidRequestID)
	assert.ErrorIs(t, ValidateRequestID("has space"), ErrRequestIDChars)
}

func TestFanoutDerivedSeed_DeterministicPerRequestID(t *testing.T) {
	assert.Equal(t, fanoutDerivedSeed("req-1"), fanoutDerivedSeed("req-1"))
	assert.NotEqual(t, fanoutDerivedSeed("req-1"), fanoutDerivedSeed("req-2"))
}

func newRoutingFixture(infer InferenceClient) (*RoutingEngine, *AgentRegistry) {
	registry := NewAgentRegistry(nil, "test", logging.NoOp{})
	dedup := NewDedupCache(time.Minute, time.Minute)
	stats := NewStatsStore()
	return NewRoutingEngine(registry, dedup, stats, infer, logging.NoOp{}), registry
}

func TestRoutingEngine_NoCapableAgents(t *testing.T) {
	engine, _ := newRoutingFixture(nil)
	_, err := engine.Route(context.Background(), RouteRequest{
		RequestID:            "r1",
		RequiredCapabilities: []string{"code_generation"},
		Mode:                 Unicast,
	})
	assert.ErrorIs(t, err, ErrNoCapableAgents)
}

func TestRoutingEngine_UnicastPicksHighestScore(t *testing.T) {
	engine, registry := newRoutingFixture(nil)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "low", Capabilities: []string{"x"}, HealthScore: 0.2}))
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "high", Capabilities: []string{"x"}, HealthScore: 0.9}))

	resp, err := engine.Route(ctx, RouteRequest{RequestID: "r2", RequiredCapabilities: []string{"x"}, Mode: Unicast})
	require.NoError(t, err)
	require.Len(t, resp.SelectedAgents, 1)
	assert.Equal(t, "high", resp.SelectedAgents[0])
}

func TestRoutingEngine_BroadcastSelectsTopThree(t *testing.T) {
	engine, registry := newRoutingFixture(nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, registry.Register(ctx, &AgentDescriptor{
			AgentID: fmt.Sprintf("agent-%d", i), Capabilities: []string{"x"}, HealthScore: float64(i) / 5,
		}))
	}

	resp, err := engine.Route(ctx, RouteRequest{RequestID: "r3", RequiredCapabilities: []string{"x"}, Mode: Broadcast})
	require.NoError(t, err)
	assert.Len(t, resp.SelectedAgents, 3)
}

func TestRoutingEngine_CompetitiveIsDeterministic(t *testing.T) {
	engine, registry := newRoutingFixture(nil)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, registry.Register(ctx, &AgentDescriptor{
			AgentID: fmt.Sprintf("agent-%d", i), Capabilities: []string{"x"}, HealthScore: float64(i) / 7,
		}))
	}

	first, err := engine.Route(ctx, RouteRequest{RequestID: "r4", RequiredCapabilities: []string{"x"}, Mode: Competitive})
	require.NoError(t, err)
	second, err := engine.Route(ctx, RouteRequest{RequestID: "r5", RequiredCapabilities: []string{"x"}, Mode: Competitive})
	require.NoError(t, err)

	assert.Len(t, first.SelectedAgents, 5) // capped at competitiveCapK
	assert.Equal(t, first.SelectedAgents, second.SelectedAgents)
}

func TestRoutingEngine_DuplicateRequestIsRecordedInDedup(t *testing.T) {
	engine, registry := newRoutingFixture(nil)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x"}, HealthScore: 1}))

	resp, err := engine.Route(ctx, RouteRequest{RequestID: "r6", RequiredCapabilities: []string{"x"}, Mode: Unicast})
	require.NoError(t, err)
	assert.True(t, engine.dedup.IsDuplicate(resp.RequestID))
}

// fakeInferenceClient lets tests control per-agent inference outcomes for
// FanoutBest dispatch.
type fakeInferenceClient struct {
	responses map[string]InferenceResponse
	errors    map[string]error
}

func (f *fakeInferenceClient) Infer(_ context.Context, agent AgentDescriptor, _ InferenceRequest) (InferenceResponse, error) {
	if err, ok := f.errors[agent.AgentID]; ok {
		return InferenceResponse{}, err
	}
	return f.responses[agent.AgentID], nil
}

func TestRoutingEngine_FanoutBestNoInferenceClient(t *testing.T) {
	engine, registry := newRoutingFixture(nil)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x"}, HealthScore: 1}))

	_, err := engine.Route(ctx, RouteRequest{RequestID: "r7", RequiredCapabilities: []string{"x"}, Mode: FanoutBest})
	assert.ErrorIs(t, err, ErrAllAgentsFailed)
}

func TestRoutingEngine_FanoutBestPicksBestScoringWinner(t *testing.T) {
	infer := &fakeInferenceClient{
		responses: map[string]InferenceResponse{
			"short": {GeneratedText: "ok", Tokens: []string{"ok"}},
			"long":  {GeneratedText: "a much longer and more thorough generated response body here", Tokens: make([]string, 200)},
		},
	}
	engine, registry := newRoutingFixture(infer)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "short", Capabilities: []string{"x"}, HealthScore: 1}))
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "long", Capabilities: []string{"x"}, HealthScore: 1}))

	resp, err := engine.Route(ctx, RouteRequest{RequestID: "r8", RequiredCapabilities: []string{"x"}, Mode: FanoutBest})
	require.NoError(t, err)
	require.NotEmpty(t, resp.SelectedAgents)
	assert.Equal(t, "long", resp.SelectedAgents[0])
}

func TestRoutingEngine_FanoutBestAllFail(t *testing.T) {
	infer := &fakeInferenceClient{errors: map[string]error{"a": assertErr}}
	engine, registry := newRoutingFixture(infer)
	ctx := context.Background()
	require.NoError(t, registry.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x"}, HealthScore: 1}))

	_, err := engine.Route(ctx, RouteRequest{RequestID: "r9", RequiredCapabilities: []string{"x"}, Mode: FanoutBest})
	assert.ErrorIs(t, err, ErrAllAgentsFailed)
}

var assertErr = fmt.Errorf("inference unreachable")
