// Package ledger credits and debits player token balances. Rewards are
// settled asynchronously through a Dispatcher; purchases are debited
// synchronously through a Store.
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Spend reasons. Credits use the reward reasons (kill, headshot,
// round_complete).
const (
	ReasonMysteryBox = "mystery_box"
	ReasonPerkPrefix = "perk:"
	ReasonRefund     = "refund"
)

// Entry is one ledger row. Amount is negative for spends.
type Entry struct {
	ID        int64     `json:"id"`
	Account   string    `json:"account"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	RoomID    string    `json:"roomId,omitempty"`
	Round     int       `json:"round,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a token ledger backend. Balances are the sum of all entries for
// an account and never go negative.
type Store interface {
	// Credit appends a positive entry and returns the new balance.
	Credit(ctx context.Context, e Entry) (int64, error)
	// Spend appends a negative entry of e.Amount and returns the new balance,
	// or ErrInsufficientFunds without writing anything.
	Spend(ctx context.Context, e Entry) (int64, error)
	// Balance returns the current balance (zero for an unknown account).
	Balance(ctx context.Context, account string) (int64, error)
}

// Validate checks an entry before it reaches the store.
func (e Entry) Validate() error {
	if e.Account == "" {
		return ErrInvalidAccount
	}
	if e.Amount <= 0 {
		return fmt.Errorf("amount %d: %w", e.Amount, ErrInvalidAmount)
	}
	return nil
}

// PerkReason returns the spend reason for a perk purchase.
func PerkReason(perk string) string {
	return ReasonPerkPrefix + perk
}
