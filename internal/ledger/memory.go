package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and database-less runs.
// Thread-safe.
type MemoryStore struct {
	mu       sync.Mutex
	entries  []Entry
	balances map[string]int64
	nextID   int64
}

// Compile-time check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{balances: make(map[string]int64)}
}

// Credit implements Store.
func (s *MemoryStore) Credit(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(e)
	return s.balances[e.Account], nil
}

// Spend implements Store.
func (s *MemoryStore) Spend(ctx context.Context, e Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balances[e.Account] < e.Amount {
		return s.balances[e.Account], ErrInsufficientFunds
	}
	e.Amount = -e.Amount
	s.appendLocked(e)
	return s.balances[e.Account], nil
}

// Balance implements Store.
func (s *MemoryStore) Balance(ctx context.Context, account string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[account], nil
}

// Entries returns a copy of all entries for account, oldest first.
func (s *MemoryStore) Entries(account string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.entries {
		if e.Account == account {
			out = append(out, e)
		}
	}
	return out
}

// History returns the latest entries of account, newest first.
func (s *MemoryStore) History(ctx context.Context, account string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.entries[i].Account == account {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) appendLocked(e Entry) {
	s.nextID++
	e.ID = s.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, e)
	s.balances[e.Account] += e.Amount
}
