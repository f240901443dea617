package economics

import (
	"context"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
)

// Mock is an in-process stand-in for the economics collaborator that gives
// deterministic subscription data without a live HTTP dependency. The
// Quota Mirror's own tests cannot import it (import cycle) and use a local
// fake instead.
type Mock struct {
	Subscriptions map[string]*coordinator.EconomicsSubscription
	Tracked       map[string]int
}

// NewMock builds a mock with no subscriptions seeded.
func NewMock() *Mock {
	return &Mock{
		Subscriptions: make(map[string]*coordinator.EconomicsSubscription),
		Tracked:       make(map[string]int),
	}
}

func (m *Mock) GetUserSubscription(_ context.Context, principal string) (*coordinator.EconomicsSubscription, bool, error) {
	sub, ok := m.Subscriptions[principal]
	return sub, ok, nil
}

func (m *Mock) GetOrCreateFreeSubscription(_ context.Context, principal string) (*coordinator.EconomicsSubscription, error) {
	sub := &coordinator.EconomicsSubscription{
		Tier: "Free",
		Limits: coordinator.QuotaLimits{
			MaxAgents:        3,
			MonthlyCreations: 5,
			TokenLimit:       1024,
			InferenceRate:    coordinator.RateStandard,
		},
	}
	m.Subscriptions[principal] = sub
	return sub, nil
}

func (m *Mock) TrackAgentCreation(_ context.Context, principal string, count int) error {
	m.Tracked[principal] += count
	return nil
}
