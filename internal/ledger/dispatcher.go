package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/zombiearena/internal/game/room"
)

// Dispatcher defaults.
const (
	DefaultWorkers       = 4
	DefaultQueueSize     = 1024
	DefaultSettleTimeout = 5 * time.Second
)

// Settled is a settlement that reached the store.
type Settled struct {
	room.Settlement
	Balance int64
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	SettleTimeout time.Duration
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Accepted uint64 `json:"accepted"`
	Settled  uint64 `json:"settled"`
	Failed   uint64 `json:"failed"`
	Rejected uint64 `json:"rejected"`
}

// Dispatcher credits room settlements to a Store on a pool of workers.
// Settle never blocks; failures are logged and not retried, and never
// affect game state that was already applied.
type Dispatcher struct {
	store   Store
	workers int
	timeout time.Duration
	queue   chan room.Settlement

	mu        sync.RWMutex
	onSettled func(Settled)
	stopped   bool

	accepted atomic.Uint64
	settled  atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
}

// Compile-time check.
var _ room.Settler = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher. Call Run to start the workers.
func NewDispatcher(store Store, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	return &Dispatcher{
		store:   store,
		workers: cfg.Workers,
		timeout: cfg.SettleTimeout,
		queue:   make(chan room.Settlement, cfg.QueueSize),
	}
}

// OnSettled registers a callback invoked on a worker goroutine after each
// successful credit.
func (d *Dispatcher) OnSettled(fn func(Settled)) {
	d.mu.Lock()
	d.onSettled = fn
	d.mu.Unlock()
}

// Settle enqueues s. Returns ErrQueueFull when the queue is saturated and
// ErrStopped after Run has returned.
func (d *Dispatcher) Settle(s room.Settlement) error {
	if s.Amount <= 0 {
		d.rejected.Add(1)
		return fmt.Errorf("settling %d for %s: %w", s.Amount, s.Account, ErrInvalidAmount)
	}
	if s.Account == "" {
		d.rejected.Add(1)
		return ErrInvalidAccount
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.rejected.Add(1)
		return ErrStopped
	}

	select {
	case d.queue <- s:
		d.accepted.Add(1)
		return nil
	default:
		d.rejected.Add(1)
		return ErrQueueFull
	}
}

// Run processes settlements until ctx is cancelled, then drains whatever is
// still queued (each credit bounded by the settle timeout) and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	slog.Info("settlement dispatcher started", "workers", d.workers, "queue", cap(d.queue))

	g, gctx := errgroup.WithContext(ctx)
	for range d.workers {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	err := g.Wait()

	// Новые settlement больше не принимаются; дочищаем очередь.
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	drained := d.drain(context.WithoutCancel(ctx))
	slog.Info("settlement dispatcher stopped", "drained", drained)

	if err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-d.queue:
			d.process(context.WithoutCancel(ctx), s)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case s := <-d.queue:
			d.process(ctx, s)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, s room.Settlement) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	balance, err := d.store.Credit(ctx, Entry{
		Account: s.Account,
		Amount:  int64(s.Amount),
		Reason:  string(s.Reason),
		RoomID:  s.RoomID,
		Round:   s.Round,
	})
	if err != nil {
		d.failed.Add(1)
		slog.Error("settlement failed",
			"participant", s.ParticipantID,
			"account", s.Account,
			"amount", s.Amount,
			"reason", s.Reason,
			"room", s.RoomID,
			"error", err)
		return
	}
	d.settled.Add(1)

	slog.Debug("settlement credited",
		"account", s.Account,
		"amount", s.Amount,
		"reason", s.Reason,
		"balance", balance)

	d.mu.RLock()
	fn := d.onSettled
	d.mu.RUnlock()
	if fn != nil {
		fn(Settled{Settlement: s, Balance: balance})
	}
}

// Pending returns the number of queued settlements.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Stats returns cumulative counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Accepted: d.accepted.Load(),
		Settled:  d.settled.Load(),
		Failed:   d.failed.Load(),
		Rejected: d.rejected.Load(),
	}
}
