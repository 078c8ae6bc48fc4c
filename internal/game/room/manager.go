package room

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSweepInterval is how often Run removes empty rooms.
const DefaultSweepInterval = 30 * time.Second

// Manager owns all live rooms: matchmaking, the participant → room index and
// garbage collection of empty rooms.
// Thread-safe for concurrent access. Lock order is Manager.mu → Room.mu.
type Manager struct {
	template Config
	notifier Notifier
	settler  Settler
	newID    func() string

	mu            sync.Mutex
	rooms         map[string]*Room  // roomID → Room
	byParticipant map[string]string // participantID → roomID
}

// NewManager creates a manager. template is the Config every new room starts
// from; its ID and Mode are filled per room.
func NewManager(template Config, notifier Notifier, settler Settler) *Manager {
	return &Manager{
		template:      template,
		notifier:      notifier,
		settler:       settler,
		newID:         func() string { return uuid.New().String() },
		rooms:         make(map[string]*Room, 16),
		byParticipant: make(map[string]string, 64),
	}
}

// FindMatch places the participant in an open room of the given mode, creating
// one if none has capacity.
func (m *Manager) FindMatch(mode, participantID, account string) (*Room, error) {
	mode = normalizeMode(mode)

	m.mu.Lock()
	defer m.mu.Unlock()

	if roomID, ok := m.byParticipant[participantID]; ok {
		return nil, fmt.Errorf("participant %s in room %s: %w", participantID, roomID, ErrAlreadyJoined)
	}

	r := m.openRoomLocked(mode)
	if r == nil {
		r = m.createLocked(mode)
	}

	if err := r.Join(participantID, account); err != nil {
		return nil, err
	}
	m.byParticipant[participantID] = r.ID()
	return r, nil
}

// openRoomLocked returns the oldest room of mode with free capacity.
func (m *Manager) openRoomLocked(mode string) *Room {
	var best *Room
	for _, r := range m.rooms {
		if r.Mode() != mode || !r.HasCapacity() {
			continue
		}
		if best == nil || r.CreatedAt().Before(best.CreatedAt()) {
			best = r
		}
	}
	return best
}

func (m *Manager) createLocked(mode string) *Room {
	cfg := m.template
	cfg.ID = m.newID()
	cfg.Mode = mode

	r := New(cfg, m.notifier, m.settler)
	m.rooms[r.ID()] = r

	slog.Info("room created", "room", r.ID(), "mode", mode, "rooms", len(m.rooms))
	return r
}

// Leave removes the participant from its room. An emptied room is closed and
// dropped. Returns false if the participant was in no room.
func (m *Manager) Leave(participantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.byParticipant[participantID]
	if !ok {
		return false
	}
	delete(m.byParticipant, participantID)

	r := m.rooms[roomID]
	if r == nil {
		return false
	}
	r.Leave(participantID)

	if r.IsEmpty() {
		m.removeLocked(r)
	}
	return true
}

func (m *Manager) removeLocked(r *Room) {
	delete(m.rooms, r.ID())
	r.Close()
	slog.Info("room removed", "room", r.ID(), "rooms", len(m.rooms))
}

// RoomOf returns the room the participant is in, or nil.
func (m *Manager) RoomOf(participantID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, ok := m.byParticipant[participantID]
	if !ok {
		return nil
	}
	return m.rooms[roomID]
}

// Room returns a room by ID, or nil.
func (m *Manager) Room(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms[roomID]
}

// Count returns the number of live rooms.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// List returns listing entries for all rooms, oldest first.
func (m *Manager) List() []Info {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	slices.SortFunc(rooms, func(a, b *Room) int {
		if c := a.CreatedAt().Compare(b.CreatedAt()); c != 0 {
			return c
		}
		return strings.Compare(a.ID(), b.ID())
	})

	out := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// Sweep removes every empty room. Returns the number removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, r := range m.rooms {
		if r.IsEmpty() {
			m.removeLocked(r)
			removed++
		}
	}
	return removed
}

// Run sweeps empty rooms every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("room sweeper started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("room sweeper stopping")
			return ctx.Err()
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("empty rooms swept", "removed", n)
			}
		}
	}
}

// Shutdown closes every room.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.rooms {
		m.removeLocked(r)
	}
	clear(m.byParticipant)
}

func normalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return DefaultMode
	}
	return mode
}
