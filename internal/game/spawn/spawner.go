// Package spawn releases pooled zombies at a fixed cadence for each wave.
package spawn

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/udisondev/zombiearena/internal/game/formula"
	"github.com/udisondev/zombiearena/internal/model"
)

// Defaults for a Spawner.
const (
	DefaultPoolSize = 24
	DefaultInterval = 2 * time.Second
)

// DefaultSpawnPoints are the arena corners and the two long-axis gates.
func DefaultSpawnPoints() []model.Vec3 {
	return []model.Vec3{
		{X: -20, Y: 0, Z: -20},
		{X: 20, Y: 0, Z: -20},
		{X: -20, Y: 0, Z: 20},
		{X: 20, Y: 0, Z: 20},
		{X: 0, Y: 0, Z: -30},
		{X: 0, Y: 0, Z: 30},
	}
}

// Observer receives slots as they are released into the arena.
// Called from the wave goroutine, outside the spawner lock.
type Observer interface {
	ZombieSpawned(round int, slot Slot)
}

// Rand picks spawn points. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Config configures a Spawner.
type Config struct {
	PoolSize    int
	Interval    time.Duration
	SpawnPoints []model.Vec3
	Rand        Rand
	Observer    Observer
}

// wave is one round's release schedule.
type wave struct {
	round   int
	limit   int
	spawned int

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (w *wave) stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// Spawner paces zombie releases from a fixed pool.
// Thread-safe: wave goroutines and room events both go through mu.
type Spawner struct {
	interval time.Duration
	points   []model.Vec3
	rng      Rand
	observer Observer

	mu   sync.Mutex
	pool *Pool
	wave *wave
}

// NewSpawner creates a spawner with a pre-allocated pool.
func NewSpawner(cfg Config) *Spawner {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if len(cfg.SpawnPoints) == 0 {
		cfg.SpawnPoints = DefaultSpawnPoints()
	}
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	return &Spawner{
		interval: cfg.Interval,
		points:   cfg.SpawnPoints,
		rng:      cfg.Rand,
		observer: cfg.Observer,
		pool:     NewPool(cfg.PoolSize),
	}
}

// SetObserver replaces the observer. Must be called before the first wave.
func (s *Spawner) SetObserver(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// StartWave stops any running wave and starts releasing zombies for round
// until min(target, capacity) have been spawned. Returns that limit.
func (s *Spawner) StartWave(round, target int) int {
	w := s.beginWave(round, target)
	if w.limit == 0 {
		close(w.done)
		return 0
	}
	go s.run(w)
	return w.limit
}

func (s *Spawner) beginWave(round, target int) *wave {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wave != nil {
		s.wave.stop()
	}
	w := &wave{
		round:  round,
		limit:  max(min(target, s.pool.Capacity()), 0),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if w.limit == 0 {
		s.wave = nil
		return w
	}
	s.wave = w

	slog.Debug("wave started",
		"round", round,
		"target", target,
		"limit", w.limit,
		"interval", s.interval)
	return w
}

// run ticks until the wave limit is met or the wave is stopped.
// The ticker is always stopped on exit so no periodic task outlives its wave.
func (s *Spawner) run(w *wave) {
	defer close(w.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			slot, spawned, finished := s.tick(w)
			if spawned {
				s.notify(w.round, slot)
			}
			if finished {
				return
			}
		}
	}
}

// tick releases at most one zombie for w.
// A full pool skips the tick without counting it.
func (s *Spawner) tick(w *wave) (slot Slot, spawned bool, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wave != w {
		return Slot{}, false, true
	}
	if w.spawned >= w.limit {
		return Slot{}, false, true
	}

	free := s.pool.acquire()
	if free == nil {
		return Slot{}, false, false
	}

	free.Health = formula.ZombieHealth(w.round)
	free.MaxHealth = free.Health
	free.Speed = formula.ZombieSpeed(w.round)
	free.Position = s.points[s.rng.IntN(len(s.points))]
	w.spawned++

	done := w.spawned >= w.limit
	if done {
		s.wave = nil
		slog.Debug("wave fully spawned", "round", w.round, "spawned", w.spawned)
	}
	return *free, true, done
}

func (s *Spawner) notify(round int, slot Slot) {
	s.mu.Lock()
	o := s.observer
	s.mu.Unlock()

	if o != nil {
		o.ZombieSpawned(round, slot)
	}
}

// Stop halts the running wave, if any. Active zombies stay active.
func (s *Spawner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wave != nil {
		s.wave.stop()
		s.wave = nil
	}
}

// Release returns slot id to the free pool after the zombie died.
// Does not trigger a replacement spawn.
func (s *Spawner) Release(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Release(id)
}

// Reset stops the wave and deactivates every slot.
func (s *Spawner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wave != nil {
		s.wave.stop()
		s.wave = nil
	}
	s.pool.Reset()
}

// ActiveCount returns the number of zombies currently in the arena.
func (s *Spawner) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.ActiveCount()
}

// Capacity returns the pool size.
func (s *Spawner) Capacity() int {
	return s.pool.Capacity()
}

// Running reports whether a wave is still releasing zombies.
func (s *Spawner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wave != nil
}

// Active returns copies of all active slots.
func (s *Spawner) Active() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Slot, 0, s.pool.ActiveCount())
	for id := range s.pool.Capacity() {
		if s.pool.IsActive(id) {
			slot, _ := s.pool.Get(id)
			out = append(out, slot)
		}
	}
	return out
}
