package coordinator

import "sync"

// StatsStore holds one RoutingStat per agent, updated after every dispatch
// that agent participated in.
type StatsStore struct {
	mu    sync.Mutex
	stats map[string]*RoutingStat
}

// NewStatsStore builds an empty store.
func NewStatsStore() *StatsStore {
	return &StatsStore{stats: make(map[string]*RoutingStat)}
}

// Seed installs the initial RoutingStat row a newly registered agent gets:
// success rate 1.0, per-capability quality 1.0 for each advertised
// capability.
func (s *StatsStore) Seed(agentID string, capabilities []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stats[agentID]; ok {
		return
	}
	quality := make(map[string]float64, len(capabilities))
	for _, c := range capabilities {
		quality[c] = 1.0
	}
	s.stats[agentID] = &RoutingStat{
		AgentID:           agentID,
		SuccessRate:       1.0,
		CapabilityQuality: quality,
	}
}

// RecordDispatch updates the running success rate and average response
// time for agentID after one completed dispatch.
func (s *StatsStore) RecordDispatch(agentID string, success bool, responseMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stats[agentID]
	if !ok {
		st = &RoutingStat{AgentID: agentID, SuccessRate: 1.0, CapabilityQuality: map[string]float64{}}
		s.stats[agentID] = st
	}

	prevTotal := st.TotalRequests
	st.TotalRequests++

	var outcome float64
	if success {
		outcome = 1
	}
	st.SuccessRate = (st.SuccessRate*float64(prevTotal) + outcome) / float64(st.TotalRequests)
	st.AverageResponseMs = (st.AverageResponseMs*float64(prevTotal) + responseMs) / float64(st.TotalRequests)
}

// Get returns a copy of agentID's stats, if present.
func (s *StatsStore) Get(agentID string) (RoutingStat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[agentID]
	if !ok {
		return RoutingStat{}, false
	}
	return *st, true
}

// List returns a copy of every agent's stats.
func (s *StatsStore) List() []RoutingStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RoutingStat, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, *st)
	}
	return out
}
