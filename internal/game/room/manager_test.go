package room

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/zombiearena/internal/game/spawn"
)

func newTestManager(t *testing.T) (*Manager, *mockNotifier) {
	t.Helper()

	n := newMockNotifier()
	m := NewManager(Config{
		Scheduler: &manualScheduler{},
		Spawn:     spawn.Config{Interval: time.Hour},
	}, n, &mockSettler{})

	seq := 0
	m.newID = func() string {
		seq++
		return fmt.Sprintf("room-%d", seq)
	}
	t.Cleanup(m.Shutdown)
	return m, n
}

func TestManager_FindMatchCreatesRoom(t *testing.T) {
	m, _ := newTestManager(t)

	r, err := m.FindMatch("", "p1", "acct-p1")
	require.NoError(t, err)

	assert.Equal(t, "room-1", r.ID())
	assert.Equal(t, DefaultMode, r.Mode())
	assert.Equal(t, 1, m.Count())
	assert.Same(t, r, m.RoomOf("p1"))
	assert.Same(t, r, m.Room("room-1"))
}

func TestManager_FindMatchFillsOpenRoom(t *testing.T) {
	m, _ := newTestManager(t)

	var rooms []*Room
	for i := range 5 {
		r, err := m.FindMatch("classic", fmt.Sprintf("p%d", i), "")
		require.NoError(t, err)
		rooms = append(rooms, r)
	}

	for _, r := range rooms[:4] {
		assert.Same(t, rooms[0], r)
	}
	assert.NotSame(t, rooms[0], rooms[4], "fifth participant overflows into a new room")
	assert.Equal(t, 4, rooms[0].Len())
	assert.Equal(t, 2, m.Count())
}

func TestManager_ModesAreSeparate(t *testing.T) {
	m, _ := newTestManager(t)

	a, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)
	b, err := m.FindMatch(" Hardcore ", "p2", "")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "hardcore", b.Mode())
}

func TestManager_FindMatchTwice(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)

	_, err = m.FindMatch("classic", "p1", "")
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.Equal(t, 1, m.Count())
}

func TestManager_LeaveRemovesEmptyRoom(t *testing.T) {
	m, n := newTestManager(t)

	r, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)
	_, err = m.FindMatch("classic", "p2", "")
	require.NoError(t, err)

	require.True(t, m.Leave("p2"))
	assert.Equal(t, 1, m.Count(), "room with a participant stays")
	assert.Contains(t, n.events("p1"), EventPlayerLeft)

	require.True(t, m.Leave("p1"))
	assert.True(t, r.IsEmpty())
	assert.Equal(t, 0, m.Count())
	assert.Nil(t, m.RoomOf("p1"))
	assert.ErrorIs(t, r.Join("p3", ""), ErrRoomClosed)

	assert.False(t, m.Leave("p1"))
}

func TestManager_RejoinAfterLeave(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)
	require.True(t, m.Leave("p1"))

	second, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID(), second.ID())
}

func TestManager_Sweep(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)

	m.mu.Lock()
	empty := m.createLocked("classic")
	m.mu.Unlock()
	require.Equal(t, 2, m.Count())

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Count())
	assert.Nil(t, m.Room(empty.ID()))
}

func TestManager_List(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.FindMatch("classic", "p1", "")
	require.NoError(t, err)
	_, err = m.FindMatch("classic", "p2", "")
	require.NoError(t, err)
	_, err = m.FindMatch("hardcore", "p3", "")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Players)
	assert.True(t, list[0].Active)
	assert.Equal(t, 1, list[1].Players)
	assert.False(t, list[1].Active)
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	m, _ := newTestManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx, 10*time.Millisecond) }()

	m.mu.Lock()
	m.createLocked("classic")
	m.mu.Unlock()

	assert.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
