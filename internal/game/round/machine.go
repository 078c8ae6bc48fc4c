// Package round implements the round lifecycle: Idle → RoundActive →
// RoundEnding → RoundActive (after a fixed delay) → ...
package round

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/zombiearena/internal/game/formula"
)

// DefaultRestartDelay is the pause between a cleared round and the next one.
const DefaultRestartDelay = 10 * time.Second

// State is the lifecycle phase of a Machine.
type State int32

const (
	StateIdle State = iota
	StateRoundActive
	StateRoundEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRoundActive:
		return "ROUND_ACTIVE"
	case StateRoundEnding:
		return "ROUND_ENDING"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the observable round state.
type Snapshot struct {
	Round            int  `json:"round"`
	Active           bool `json:"active"`
	ZombiesRemaining int  `json:"zombiesRemaining"`
}

// Started describes a round that just began.
type Started struct {
	Round       int `json:"round"`
	ZombieCount int `json:"zombieCount"`
}

// Ended describes a round that was just cleared.
type Ended struct {
	Round       int           `json:"round"`
	Bonus       int           `json:"bonus"`
	NextRoundIn time.Duration `json:"-"`
}

// KillOutcome is the result of OnZombieKilled.
// Ended is non-nil only for the kill that cleared the round.
type KillOutcome struct {
	Round     int
	Remaining int
	Ended     *Ended
}

// Observer is notified of round transitions, including the deferred restart.
type Observer interface {
	RoundStarted(Started)
	RoundEnded(Ended)
}

// Timer is a handle to a scheduled callback. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d. Implementations decide which goroutine and
// which lock f runs under.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// TimeScheduler schedules with time.AfterFunc. When Locker is set, f runs
// with it held.
type TimeScheduler struct {
	Locker sync.Locker
}

// AfterFunc implements Scheduler.
func (s TimeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	if s.Locker == nil {
		return time.AfterFunc(d, f)
	}
	return time.AfterFunc(d, func() {
		s.Locker.Lock()
		defer s.Locker.Unlock()
		f()
	})
}

// Config configures a Machine.
type Config struct {
	RestartDelay time.Duration
	// Scheduler runs the deferred restart. Nil means TimeScheduler under Locker.
	Scheduler Scheduler
	// Locker is the lock the owner holds around every Machine call.
	// Required when Scheduler is nil.
	Locker sync.Locker
	// SpawnLimit caps the zombies a round waits for at the number the
	// spawner can release. Zero means no cap.
	SpawnLimit int
	// Alive is checked when the restart fires; false makes the restart a no-op.
	Alive    func() bool
	Observer Observer
}

// Machine tracks the current round and remaining zombies.
// Not safe for concurrent use: the owner serializes calls, including the
// scheduled restart (see Scheduler).
type Machine struct {
	delay      time.Duration
	spawnLimit int
	scheduler  Scheduler
	alive      func() bool
	observer   Observer

	state     State
	round     int
	remaining int
	restart   Timer
	gen       uint64
	closed    bool
}

// NewMachine creates a machine in StateIdle at round 0.
// It panics when neither Scheduler nor Locker is set: the restart would run
// unsynchronized with the owner.
func NewMachine(cfg Config) *Machine {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.Scheduler == nil {
		if cfg.Locker == nil {
			panic("round: NewMachine needs a Scheduler or a Locker")
		}
		cfg.Scheduler = TimeScheduler{Locker: cfg.Locker}
	}
	if cfg.Alive == nil {
		cfg.Alive = func() bool { return true }
	}
	return &Machine{
		delay:      cfg.RestartDelay,
		spawnLimit: cfg.SpawnLimit,
		scheduler:  cfg.Scheduler,
		alive:      cfg.Alive,
		observer:   cfg.Observer,
	}
}

// SetObserver replaces the observer.
func (m *Machine) SetObserver(o Observer) {
	m.observer = o
}

// Start advances to the next round. Valid only from Idle or RoundEnding.
// A pending restart is cancelled since the round it would start is now running.
func (m *Machine) Start() (Started, error) {
	if m.closed {
		return Started{}, fmt.Errorf("starting round after close: %w", ErrInvalidTransition)
	}
	if m.state == StateRoundActive {
		return Started{}, fmt.Errorf("starting round %d while round %d is active: %w",
			m.round+1, m.round, ErrInvalidTransition)
	}
	m.cancelRestart()

	m.round++
	m.state = StateRoundActive
	m.remaining = formula.ZombieCount(m.round)
	if m.spawnLimit > 0 && m.remaining > m.spawnLimit {
		m.remaining = m.spawnLimit
	}

	ev := Started{Round: m.round, ZombieCount: m.remaining}
	slog.Info("round started", "round", ev.Round, "zombies", ev.ZombieCount)

	if m.observer != nil {
		m.observer.RoundStarted(ev)
	}
	return ev, nil
}

// OnZombieKilled records a confirmed kill. The remaining count is clamped at
// zero, and the end-of-round transition fires exactly once per round.
func (m *Machine) OnZombieKilled() KillOutcome {
	if m.remaining > 0 {
		m.remaining--
	}
	out := KillOutcome{Round: m.round, Remaining: m.remaining}

	if m.remaining == 0 && m.state == StateRoundActive {
		ended := m.end()
		out.Ended = &ended
	}
	return out
}

func (m *Machine) end() Ended {
	m.state = StateRoundEnding

	ev := Ended{
		Round:       m.round,
		Bonus:       formula.RoundBonus(m.round),
		NextRoundIn: m.delay,
	}
	slog.Info("round cleared", "round", ev.Round, "bonus", ev.Bonus, "nextRoundIn", m.delay)

	if m.observer != nil {
		m.observer.RoundEnded(ev)
	}
	if !m.closed {
		m.gen++
		gen := m.gen
		m.restart = m.scheduler.AfterFunc(m.delay, func() { m.fireRestart(gen) })
	}
	return ev
}

// fireRestart runs when the post-round delay expires. Liveness is checked at
// fire time: an emptied or closed session makes this a no-op, and so does a
// timer that was superseded after its Stop lost the race.
func (m *Machine) fireRestart(gen uint64) {
	if gen != m.gen {
		return
	}
	m.restart = nil

	if m.closed {
		slog.Debug("round restart skipped, machine closed", "round", m.round)
		return
	}
	if !m.alive() {
		slog.Debug("round restart skipped, no participants", "round", m.round)
		return
	}
	if m.state != StateRoundEnding {
		return
	}
	if _, err := m.Start(); err != nil {
		slog.Warn("round restart failed", "round", m.round, "error", err)
	}
}

func (m *Machine) cancelRestart() {
	m.gen++
	if m.restart != nil {
		m.restart.Stop()
		m.restart = nil
	}
}

// Close cancels a pending restart (best effort) and makes any restart that
// still fires a no-op.
func (m *Machine) Close() {
	m.closed = true
	m.cancelRestart()
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// Round returns the current round number (0 before the first start).
func (m *Machine) Round() int {
	return m.round
}

// Active reports whether a round is in progress.
func (m *Machine) Active() bool {
	return m.state == StateRoundActive
}

// RestartPending reports whether a restart is scheduled.
func (m *Machine) RestartPending() bool {
	return m.restart != nil
}

// Snapshot returns the observable state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Round:            m.round,
		Active:           m.state == StateRoundActive,
		ZombiesRemaining: m.remaining,
	}
}
