package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissing(t *testing.T) {
	store := NewMemoryStore()

	s, ok := store.Get(100)
	assert.False(t, ok)
	assert.Equal(t, StateIdle, s.State)
	assert.False(t, store.InProgress(100))
}

func TestSetGetClear(t *testing.T) {
	store := NewMemoryStore()

	store.Set(1, Session{
		State: StateAwaitingTask,
		Data:  map[string]string{KeyCategory: "ai"},
	})

	s, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingTask, s.State)
	assert.Equal(t, "ai", s.Data[KeyCategory])
	assert.True(t, store.InProgress(1))

	store.Clear(1)
	_, ok = store.Get(1)
	assert.False(t, ok)
	assert.False(t, store.InProgress(1))
}

func TestCopySemantics(t *testing.T) {
	store := NewMemoryStore()

	in := map[string]string{KeyCategory: "sales"}
	store.Set(1, Session{State: StateAwaitingTask, Data: in})
	in[KeyCategory] = "mutated-after-set"

	s, _ := store.Get(1)
	assert.Equal(t, "sales", s.Data[KeyCategory], "store must not alias caller map")

	s.Data[KeyCategory] = "mutated-after-get"
	again, _ := store.Get(1)
	assert.Equal(t, "sales", again.Data[KeyCategory], "caller must not alias store map")
}

func TestLastWriterWins(t *testing.T) {
	store := NewMemoryStore()

	store.Set(1, Session{State: StateAwaitingTask, Data: map[string]string{KeyCategory: "ai"}})
	store.Set(1, Session{State: StateAwaitingReply, Data: map[string]string{KeyTargetID: "55"}})

	s, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, StateAwaitingReply, s.State)
	assert.Equal(t, "55", s.Data[KeyTargetID])
	assert.NotContains(t, s.Data, KeyCategory)
}

func TestIdleSessionNotInProgress(t *testing.T) {
	store := NewMemoryStore()

	store.Set(1, Session{State: StateIdle})
	assert.False(t, store.InProgress(1))
}
