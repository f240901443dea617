package coordinator

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DedupCache enforces at-most-once admission of routing requests. Entries
// are addressed by request_id and carry a short result hash so a retried
// caller can be told "already processed" without re-running the route.
//
// Backed by patrickmn/go-cache: an in-process TTL map with its own janitor
// goroutine, the same shape the teacher uses for its MemoryStore.
type DedupCache struct {
	mu    sync.RWMutex
	store *gocache.Cache
	ttl   time.Duration
}

// NewDedupCache builds a cache with the given entry TTL and janitor sweep
// interval.
func NewDedupCache(ttl, sweepEvery time.Duration) *DedupCache {
	return &DedupCache{
		store: gocache.New(ttl, sweepEvery),
		ttl:   ttl,
	}
}

// IsDuplicate reports whether requestID has already been recorded and has
// not yet expired. Expired entries are swept from the cache first.
func (d *DedupCache) IsDuplicate(requestID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.DeleteExpired()
	_, found := d.store.Get(requestID)
	return found
}

// Record admits a processed response into the cache, keyed by its
// request_id. Safe to call more than once for the same id; the later write
// wins.
func (d *DedupCache) Record(resp RouteResponse) {
	entry := DedupEntry{
		RequestID:    resp.RequestID,
		ProcessedAt:  time.Now().UTC(),
		ResultHash:   hashRouteResponse(resp),
		TTLExpiresAt: time.Now().UTC().Add(d.ttl),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.Set(resp.RequestID, entry, d.ttl)
}

// CachedHash returns the stored result hash for requestID, if present and
// unexpired. Expired entries are swept from the cache first.
func (d *DedupCache) CachedHash(requestID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store.DeleteExpired()
	v, found := d.store.Get(requestID)
	if !found {
		return "", false
	}
	return v.(DedupEntry).ResultHash, true
}

// Sweep forces an immediate expiry pass and returns the number of expired
// entries it removed. go-cache also sweeps on its own janitor ticker.
func (d *DedupCache) Sweep() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	before := d.store.ItemCount()
	d.store.DeleteExpired()
	return before - d.store.ItemCount()
}

// Size returns the number of entries the cache holds. This can include
// expired entries that no sweep has removed yet.
func (d *DedupCache) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.store.ItemCount()
}

// hashRouteResponse derives a short, stable fingerprint of a routing
// decision: SHA-256 over request_id, the comma-joined selected agent ids,
// and the big-endian routing time, truncated to 16 bytes and
// base64-encoded. Grounded on original_source's DedupService::hash_response.
func hashRouteResponse(resp RouteResponse) string {
	h := sha256.New()
	h.Write([]byte(resp.RequestID))
	h.Write([]byte(strings.Join(resp.SelectedAgents, ",")))
	var ms [8]byte
	binary.BigEndian.PutUint64(ms[:], uint64(resp.RoutingTimeMs))
	h.Write(ms[:])
	sum := h.Sum(nil)
	return base64.StdEncoding.EncodeToString(sum[:16])
}
