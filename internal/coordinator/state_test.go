package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/config"
)

func TestState_HealthReflectsRegistryAndSessions(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)

	state := New(cfg, nil, nil, nil, nil)
	require.NoError(t, state.Registry.Register(context.Background(), &AgentDescriptor{AgentID: "a", HealthScore: 1}))
	require.NoError(t, state.Registry.Register(context.Background(), &AgentDescriptor{AgentID: "b", HealthScore: 0}))

	h := state.Health()
	assert.Equal(t, 2, h.AgentsTotal)
	assert.Equal(t, 1, h.AgentsHealthy)
}

func TestState_SweepExpiredReclaimsDedupAndSessions(t *testing.T) {
	cfg, err := config.New()
	require.NoError(t, err)
	cfg.DedupTTL = 10 * time.Millisecond
	cfg.DedupSweepEvery = time.Hour // no background janitor race; Sweep is called explicitly below

	state := New(cfg, nil, nil, nil, nil)
	state.Dedup.Record(RouteResponse{RequestID: "r1"})
	sess := state.Sessions.Create("obj", []string{"a"}, "a", ResourceCaps{})
	sess.LastActivity = time.Now().UTC().Add(-2 * time.Hour)
	time.Sleep(30 * time.Millisecond)

	dedupRemoved, sessionsRemoved := state.SweepExpired(context.Background())
	assert.Equal(t, 1, dedupRemoved)
	assert.Equal(t, 0, state.Dedup.Size())
	assert.Equal(t, 1, sessionsRemoved)
	assert.Equal(t, 0, state.Sessions.Count())
}
