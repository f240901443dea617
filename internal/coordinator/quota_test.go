package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// fakeEconomicsClient is a minimal in-memory stand-in for the economics
// collaborator. This package cannot import internal/economics (and its
// Mock) without an import cycle, so it keeps its own fake.
type fakeEconomicsClient struct {
	subs    map[string]*EconomicsSubscription
	tracked map[string]int
	err     error
}

func newFakeEconomicsClient() *fakeEconomicsClient {
	return &fakeEconomicsClient{subs: map[string]*EconomicsSubscription{}, tracked: map[string]int{}}
}

func (f *fakeEconomicsClient) GetUserSubscription(_ context.Context, principal string) (*EconomicsSubscription, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	sub, ok := f.subs[principal]
	return sub, ok, nil
}

func (f *fakeEconomicsClient) GetOrCreateFreeSubscription(_ context.Context, principal string) (*EconomicsSubscription, error) {
	sub := &EconomicsSubscription{Tier: "Free", Limits: tierLimits["Free"]}
	f.subs[principal] = sub
	return sub, nil
}

func (f *fakeEconomicsClient) TrackAgentCreation(_ context.Context, principal string, count int) error {
	f.tracked[principal] += count
	return nil
}

func TestQuotaMirror_GetSeedsFreeTier(t *testing.T) {
	q := NewQuotaMirror(nil, logging.NoOp{})
	uq := q.Get("p1")
	assert.Equal(t, "Free", uq.Tier)
	assert.Equal(t, tierLimits["Free"], uq.Limits)
}

func TestQuotaMirror_ValidateCreationDeniesAtLimit(t *testing.T) {
	q := NewQuotaMirror(nil, logging.NoOp{})
	for i := 0; i < tierLimits["Free"].MonthlyCreations; i++ {
		q.RecordCreation("p1", 1)
	}
	v := q.ValidateCreation("p1")
	assert.False(t, v.Allowed)
	assert.Equal(t, 0, v.Remaining.Agents)
}

func TestQuotaMirror_ValidateTokens(t *testing.T) {
	q := NewQuotaMirror(nil, logging.NoOp{})
	limit := tierLimits["Free"].TokenLimit

	allowed := q.ValidateTokens("p1", limit-1)
	assert.True(t, allowed.Allowed)

	denied := q.ValidateTokens("p1", limit+1)
	assert.False(t, denied.Allowed)
}

func TestQuotaMirror_RecordTokensAccumulates(t *testing.T) {
	q := NewQuotaMirror(nil, logging.NoOp{})
	q.RecordTokens("p1", 100)
	q.RecordTokens("p1", 50)
	assert.Equal(t, int64(150), q.Get("p1").Usage.TokensThisMonth)
}

func TestQuotaMirror_UpgradeTier(t *testing.T) {
	q := NewQuotaMirror(nil, logging.NoOp{})
	uq, err := q.UpgradeTier("p1", "Pro")
	require.NoError(t, err)
	assert.Equal(t, "Pro", uq.Tier)
	assert.Equal(t, tierLimits["Pro"], uq.Limits)

	_, err = q.UpgradeTier("p1", "Platinum")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestQuotaMirror_SyncCreatesFreeSubscriptionWhenMissing(t *testing.T) {
	econ := newFakeEconomicsClient()
	q := NewQuotaMirror(econ, logging.NoOp{})

	uq, err := q.Sync(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Free", uq.Tier)
}

func TestQuotaMirror_SyncPropagatesExistingSubscription(t *testing.T) {
	econ := newFakeEconomicsClient()
	econ.subs["p1"] = &EconomicsSubscription{Tier: "Enterprise", Limits: tierLimits["Enterprise"]}
	q := NewQuotaMirror(econ, logging.NoOp{})

	uq, err := q.Sync(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Enterprise", uq.Tier)
}
