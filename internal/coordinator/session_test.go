package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionManager_CreateAndSend(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("do the thing", []string{"agent-a", "agent-b"}, "agent-a", ResourceCaps{MaxConcurrentTasks: 10})
	assert.Equal(t, SessionActive, s.Status)

	msg, err := m.Send(s.SessionID, "agent-a", "", "hello team")
	require.NoError(t, err)
	assert.Equal(t, 0, msg.Sequence)

	got, err := m.Get(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, SessionCoordinating, got.Status)
	assert.Len(t, got.Messages, 1)

	assert.Len(t, m.Inbound("agent-a"), 1)
	assert.Len(t, m.Inbound("agent-b"), 1)
}

func TestSessionManager_SendMonotonicSequence(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("obj", []string{"a"}, "a", ResourceCaps{})

	for i := 0; i < 5; i++ {
		msg, err := m.Send(s.SessionID, "a", "", "ping")
		require.NoError(t, err)
		assert.Equal(t, i, msg.Sequence)
	}
}

func TestSessionManager_DirectedMessageOnlyReachesRecipient(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("obj", []string{"a", "b", "c"}, "a", ResourceCaps{})

	_, err := m.Send(s.SessionID, "a", "b", "just for you")
	require.NoError(t, err)

	assert.Len(t, m.Inbound("b"), 1)
	assert.Empty(t, m.Inbound("c"))
}

func TestSessionManager_InboundQueueCapsAtOneHundred(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("obj", []string{"a"}, "a", ResourceCaps{})

	for i := 0; i < 150; i++ {
		_, err := m.Send(s.SessionID, "a", "a", "msg")
		require.NoError(t, err)
	}

	assert.Len(t, m.Inbound("a"), 100)
}

func TestSessionManager_SendUnknownSession(t *testing.T) {
	m := NewSessionManager()
	_, err := m.Send("does-not-exist", "a", "", "hi")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_CompleteAndCount(t *testing.T) {
	m := NewSessionManager()
	s := m.Create("obj", []string{"a"}, "a", ResourceCaps{})
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Complete(s.SessionID, false))
	got, err := m.Get(s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, SessionCompleted, got.Status)
}
