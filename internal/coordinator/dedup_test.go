package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCache_RecordAndDetect(t *testing.T) {
	d := NewDedupCache(time.Hour, time.Minute)

	resp := RouteResponse{RequestID: "req-1", SelectedAgents: []string{"agent-a"}, RoutingTimeMs: 12}
	assert.False(t, d.IsDuplicate(resp.RequestID))

	d.Record(resp)
	assert.True(t, d.IsDuplicate(resp.RequestID))

	hash, ok := d.CachedHash(resp.RequestID)
	require.True(t, ok)
	assert.NotEmpty(t, hash)
}

func TestDedupCache_HashIsStableAndDiscriminating(t *testing.T) {
	a := RouteResponse{RequestID: "req-1", SelectedAgents: []string{"agent-a", "agent-b"}, RoutingTimeMs: 10}
	b := a
	b.RoutingTimeMs = 20

	assert.Equal(t, hashRouteResponse(a), hashRouteResponse(a), "hash must be deterministic for identical input")
	assert.NotEqual(t, hashRouteResponse(a), hashRouteResponse(b), "differing routing time must change the hash")
}

func TestDedupCache_ExpiresAfterTTL(t *testing.T) {
	d := NewDedupCache(20*time.Millisecond, 10*time.Millisecond)
	d.Record(RouteResponse{RequestID: "short-lived"})
	assert.True(t, d.IsDuplicate("short-lived"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, d.IsDuplicate("short-lived"))
}

func TestDedupCache_Sweep(t *testing.T) {
	d := NewDedupCache(10*time.Millisecond, time.Hour)
	d.Record(RouteResponse{RequestID: "a"})
	d.Record(RouteResponse{RequestID: "b"})
	assert.Equal(t, 2, d.Size())

	time.Sleep(30 * time.Millisecond)
	removed := d.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, d.Size())
}
