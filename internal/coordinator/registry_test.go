package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

func TestDeriveAgentID_StableSaltedByTime(t *testing.T) {
	now := time.Now()
	a := DeriveAgentID("principal-1", "llama", now)
	b := DeriveAgentID("principal-1", "llama", now)
	assert.Equal(t, a, b)

	c := DeriveAgentID("principal-1", "llama", now.Add(time.Nanosecond))
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "agent_")
}

func TestAgentRegistry_RegisterAndGet(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()

	agent := &AgentDescriptor{
		AgentID:      "agent-1",
		Capabilities: []string{"code_generation"},
		HealthScore:  2.0, // must be clamped to 1
	}
	require.NoError(t, r.Register(ctx, agent))

	got, err := r.Get("agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.HealthScore)
	assert.False(t, got.RegisteredAt.IsZero())
}

func TestAgentRegistry_GetMissing(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	_, err := r.Get("nope")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestAgentRegistry_CapabilityIndexing(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x", "y"}}))
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "b", Capabilities: []string{"y"}}))

	assert.Len(t, r.ByCapability("y"), 2)
	assert.Len(t, r.ByCapability("x"), 1)
	assert.Len(t, r.ByCapabilities([]string{"x", "y"}), 1)
}

func TestAgentRegistry_ReregisterUpdatesIndex(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x"}}))
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"z"}}))

	assert.Empty(t, r.ByCapability("x"))
	assert.Len(t, r.ByCapability("z"), 1)
}

func TestAgentRegistry_HealthyFilter(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "healthy", HealthScore: 0.9}))
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "dead", HealthScore: 0.0}))

	healthy := r.Healthy(0.1)
	require.Len(t, healthy, 1)
	assert.Equal(t, "healthy", healthy[0].AgentID)
}

func TestAgentRegistry_UpdateHealthClampsAndAdvancesLastSeen(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", HealthScore: 0.5}))
	before, _ := r.Get("a")

	require.NoError(t, r.UpdateHealth(ctx, "a", -1, AgentError))
	got, _ := r.Get("a")
	assert.Equal(t, 0.0, got.HealthScore)
	assert.Equal(t, AgentError, got.Status)
	assert.False(t, got.LastSeen.Before(before.LastSeen))
}

func TestAgentRegistry_RemoveDropsFromIndex(t *testing.T) {
	r := NewAgentRegistry(nil, "test", logging.NoOp{})
	ctx := context.Background()
	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"x"}}))

	require.NoError(t, r.Remove(ctx, "a"))
	assert.Equal(t, 0, r.Count())
	assert.Empty(t, r.ByCapability("x"))

	assert.ErrorIs(t, r.Remove(ctx, "a"), ErrAgentNotFound)
}

// TestAgentRegistry_RedisMirror exercises the Redis-backed mirror path
// against a miniredis fake server, verifying the capability-set write the
// teacher's RedisRegistry performs via a TxPipeline actually lands.
func TestAgentRegistry_RedisMirror(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewAgentRegistry(client, "ns", logging.NoOp{})
	ctx := context.Background()

	require.NoError(t, r.Register(ctx, &AgentDescriptor{AgentID: "a", Capabilities: []string{"research"}}))

	assert.True(t, mr.Exists("ns:agents:a"))
	members, err := client.SMembers(ctx, "ns:capabilities:research").Result()
	require.NoError(t, err)
	assert.Contains(t, members, "a")
}
