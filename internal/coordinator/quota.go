package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// tierLimits is the fixed tier-keyed limits table from the specification.
var tierLimits = map[string]QuotaLimits{
	"Free":       {MaxAgents: 3, MonthlyCreations: 5, TokenLimit: 1024, InferenceRate: RateStandard},
	"Basic":      {MaxAgents: 10, MonthlyCreations: 15, TokenLimit: 2048, InferenceRate: RateStandard},
	"Pro":        {MaxAgents: 25, MonthlyCreations: 25, TokenLimit: 4096, InferenceRate: RatePriority},
	"Enterprise": {MaxAgents: 100, MonthlyCreations: 100, TokenLimit: 8192, InferenceRate: RatePremium},
}

const usageResetAfter = 30 * 24 * time.Hour

// EconomicsSubscription is the projection the economics collaborator
// returns for sync.
type EconomicsSubscription struct {
	Tier   string
	Limits QuotaLimits
	Usage  QuotaUsage
}

// EconomicsClient is the subset of the economics collaborator the quota
// mirror needs. Defined here (rather than imported from internal/economics)
// to keep the coordinator package free of a dependency on its transport.
type EconomicsClient interface {
	GetUserSubscription(ctx context.Context, principal string) (*EconomicsSubscription, bool, error)
	GetOrCreateFreeSubscription(ctx context.Context, principal string) (*EconomicsSubscription, error)
	TrackAgentCreation(ctx context.Context, principal string, count int) error
}

// QuotaMirror is a per-principal local cache of the economics
// collaborator's subscription state, refreshed via Sync and enforced
// locally in between refreshes.
type QuotaMirror struct {
	mu     sync.Mutex
	quotas map[string]*UserQuota
	econ   EconomicsClient
	log    logging.ComponentLogger
}

// NewQuotaMirror builds a mirror backed by econ. econ may be nil in tests
// that only exercise local validation against a pre-seeded quota.
func NewQuotaMirror(econ EconomicsClient, log logging.ComponentLogger) *QuotaMirror {
	if log == nil {
		log = logging.NoOp{}
	}
	return &QuotaMirror{
		quotas: make(map[string]*UserQuota),
		econ:   econ,
		log:    log.WithComponent("quota"),
	}
}

// Sync consults the economics collaborator for principal's subscription. If
// none exists, it requests creation of a Free subscription and retries the
// projection into local state.
func (q *QuotaMirror) Sync(ctx context.Context, principal string) (*UserQuota, error) {
	if q.econ == nil {
		return q.getOrSeed(principal), nil
	}

	sub, found, err := q.econ.GetUserSubscription(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !found {
		sub, err = q.econ.GetOrCreateFreeSubscription(ctx, principal)
		if err != nil {
			return nil, err
		}
	}

	uq := &UserQuota{
		Principal:   principal,
		Tier:        sub.Tier,
		Limits:      sub.Limits,
		Usage:       sub.Usage,
		LastUpdated: time.Now().UTC(),
	}

	q.mu.Lock()
	q.quotas[principal] = uq
	q.mu.Unlock()

	return uq, nil
}

// getOrSeed returns the cached quota for principal, seeding a Free-tier
// default if none is cached yet (used when no economics collaborator is
// wired, e.g. in unit tests).
func (q *QuotaMirror) getOrSeed(principal string) *UserQuota {
	q.mu.Lock()
	defer q.mu.Unlock()
	if uq, ok := q.quotas[principal]; ok {
		q.maybeResetLocked(uq)
		return uq
	}
	uq := &UserQuota{
		Principal:   principal,
		Tier:        "Free",
		Limits:      tierLimits["Free"],
		Usage:       QuotaUsage{LastResetAt: time.Now().UTC()},
		LastUpdated: time.Now().UTC(),
	}
	q.quotas[principal] = uq
	return uq
}

// maybeResetLocked rolls usage back to zero once the 30-day window has
// elapsed since the last reset. Caller must hold q.mu.
func (q *QuotaMirror) maybeResetLocked(uq *UserQuota) {
	if time.Since(uq.Usage.LastResetAt) > usageResetAfter {
		uq.Usage = QuotaUsage{LastResetAt: time.Now().UTC()}
	}
}

// ValidateCreation checks whether principal may create one more agent
// against the locally mirrored monthly creation limit.
func (q *QuotaMirror) ValidateCreation(principal string) QuotaValidation {
	q.mu.Lock()
	defer q.mu.Unlock()

	uq := q.mustGetLocked(principal)
	q.maybeResetLocked(uq)

	remaining := saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.AgentsThisMonth)
	if uq.Usage.AgentsThisMonth >= uq.Limits.MonthlyCreations {
		return QuotaValidation{
			Allowed: false,
			Reason:  "Monthly agent creation limit reached",
			Remaining: QuotaRemaining{
				Agents:     0,
				Tokens:     saturatingInt64(uq.Limits.TokenLimit, uq.Usage.TokensThisMonth),
				Inferences: saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.InferencesThisMonth),
			},
		}
	}
	return QuotaValidation{
		Allowed: true,
		Remaining: QuotaRemaining{
			Agents:     remaining,
			Tokens:     saturatingInt64(uq.Limits.TokenLimit, uq.Usage.TokensThisMonth),
			Inferences: saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.InferencesThisMonth),
		},
	}
}

// ValidateTokens checks whether principal has n tokens of headroom left in
// the current billing window.
func (q *QuotaMirror) ValidateTokens(principal string, n int64) QuotaValidation {
	q.mu.Lock()
	defer q.mu.Unlock()

	uq := q.mustGetLocked(principal)
	q.maybeResetLocked(uq)

	remainingTokens := saturatingInt64(uq.Limits.TokenLimit, uq.Usage.TokensThisMonth)
	if n > remainingTokens {
		return QuotaValidation{
			Allowed: false,
			Reason:  "Insufficient token quota",
			Remaining: QuotaRemaining{
				Agents:     saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.AgentsThisMonth),
				Tokens:     remainingTokens,
				Inferences: saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.InferencesThisMonth),
			},
		}
	}
	return QuotaValidation{
		Allowed: true,
		Remaining: QuotaRemaining{
			Agents:     saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.AgentsThisMonth),
			Tokens:     remainingTokens,
			Inferences: saturatingInt(uq.Limits.MonthlyCreations, uq.Usage.InferencesThisMonth),
		},
	}
}

// RecordCreation increments the local usage counter after a successful
// local validate-then-apply sequence. Authoritative reconciliation happens
// on the next Sync.
func (q *QuotaMirror) RecordCreation(principal string, count int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	uq := q.mustGetLocked(principal)
	uq.Usage.AgentsThisMonth += count
	uq.LastUpdated = time.Now().UTC()
}

// RecordTokens increments the local token usage counter.
func (q *QuotaMirror) RecordTokens(principal string, n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	uq := q.mustGetLocked(principal)
	uq.Usage.TokensThisMonth += n
	uq.LastUpdated = time.Now().UTC()
}

// UpgradeTier performs a local tier write. Unknown tier names error.
func (q *QuotaMirror) UpgradeTier(principal, tier string) (*UserQuota, error) {
	limits, ok := tierLimits[tier]
	if !ok {
		return nil, ErrUnknownTier
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	uq := q.mustGetLocked(principal)
	uq.Tier = tier
	uq.Limits = limits
	uq.LastUpdated = time.Now().UTC()
	return uq, nil
}

// Get returns the current cached quota projection for principal, seeding a
// Free default if none has been synced yet.
func (q *QuotaMirror) Get(principal string) *UserQuota {
	q.mu.Lock()
	defer q.mu.Unlock()
	uq := q.mustGetLocked(principal)
	q.maybeResetLocked(uq)
	return uq
}

// mustGetLocked returns the cached quota, seeding a Free default if
// absent. Caller must hold q.mu.
func (q *QuotaMirror) mustGetLocked(principal string) *UserQuota {
	if uq, ok := q.quotas[principal]; ok {
		return uq
	}
	uq := &UserQuota{
		Principal:   principal,
		Tier:        "Free",
		Limits:      tierLimits["Free"],
		Usage:       QuotaUsage{LastResetAt: time.Now().UTC()},
		LastUpdated: time.Now().UTC(),
	}
	q.quotas[principal] = uq
	return uq
}

func saturatingInt(limit, used int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

func saturatingInt64(limit, used int64) int64 {
	if used >= limit {
		return 0
	}
	return limit - used
}
