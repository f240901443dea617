package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	sessionTimeoutAfter = time.Hour
	maxInboundQueue     = 100
)

// SessionManager owns every CoordinationSession and each participant's
// bounded inbound message queue.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*CoordinationSession
	inbound  map[string][]SessionMessage // agent_id -> queue
}

// NewSessionManager builds an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*CoordinationSession),
		inbound:  make(map[string][]SessionMessage),
	}
}

// Create opens a new coordination session with the given objective,
// participant set, owning coordinator agent, and resource caps.
func (m *SessionManager) Create(objective string, participants []string, coordinatorID string, caps ResourceCaps) *CoordinationSession {
	now := time.Now().UTC()
	s := &CoordinationSession{
		SessionID:     "sess_" + uuid.NewString(),
		Participants:  append([]string(nil), participants...),
		CoordinatorID: coordinatorID,
		Objective:     objective,
		Status:        SessionActive,
		CreatedAt:     now,
		LastActivity:  now,
		Caps:          caps,
	}

	m.mu.Lock()
	m.sessions[s.SessionID] = s
	m.mu.Unlock()

	return s
}

// Send appends a message to the session's log with a monotonically
// increasing sequence number, updates last_activity, and enqueues it on the
// recipient's bounded inbound queue (broadcast to every participant if `to`
// is empty). A session older than the 1-hour timeout transitions to
// Timeout; the message is still appended and delivered.
func (m *SessionManager) Send(sessionID, from, to, body string) (SessionMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return SessionMessage{}, ErrSessionNotFound
	}

	now := time.Now().UTC()
	if now.Sub(s.CreatedAt) > sessionTimeoutAfter {
		s.Status = SessionTimeout
	}

	msg := SessionMessage{
		Sequence: len(s.Messages),
		From:     from,
		To:       to,
		Body:     body,
		SentAt:   now,
	}
	s.Messages = append(s.Messages, msg)
	s.LastActivity = now
	if s.Status == SessionActive {
		s.Status = SessionCoordinating
	}

	recipients := []string{to}
	if to == "" {
		recipients = s.Participants
	}
	for _, r := range recipients {
		m.enqueueInboundLocked(r, msg)
	}

	return msg, nil
}

// enqueueInboundLocked appends msg to agentID's inbound queue, evicting the
// oldest entry on overflow (FIFO eviction at a 100-entry cap). Caller must
// hold m.mu.
func (m *SessionManager) enqueueInboundLocked(agentID string, msg SessionMessage) {
	q := m.inbound[agentID]
	q = append(q, msg)
	if len(q) > maxInboundQueue {
		q = q[len(q)-maxInboundQueue:]
	}
	m.inbound[agentID] = q
}

// Inbound returns a copy of agentID's pending inbound messages.
func (m *SessionManager) Inbound(agentID string) []SessionMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.inbound[agentID]
	out := make([]SessionMessage, len(q))
	copy(out, q)
	return out
}

// Get returns a copy of the session, applying the timeout transition if due.
func (m *SessionManager) Get(sessionID string) (CoordinationSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return CoordinationSession{}, ErrSessionNotFound
	}
	if time.Since(s.CreatedAt) > sessionTimeoutAfter && s.Status != SessionCompleted && s.Status != SessionFailed {
		s.Status = SessionTimeout
	}
	return *s, nil
}

// Complete marks a session Completed or Failed.
func (m *SessionManager) Complete(sessionID string, failed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	if failed {
		s.Status = SessionFailed
	} else {
		s.Status = SessionCompleted
	}
	s.LastActivity = time.Now().UTC()
	return nil
}

// CleanupExpired removes every session whose last_activity is older than
// the 1-hour timeout and returns the number reclaimed.
func (m *SessionManager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > sessionTimeoutAfter {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Count returns the number of live (non-expired at last check) sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
