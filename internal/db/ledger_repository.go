package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/zombiearena/internal/ledger"
)

// LedgerRepository implements ledger.Store backed by the token_ledger table.
// Per-account writes are serialized with a transaction-scoped advisory lock so
// a spend never observes a stale balance.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

// Compile-time check.
var _ ledger.Store = (*LedgerRepository)(nil)

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// Credit implements ledger.Store.
func (r *LedgerRepository) Credit(ctx context.Context, e ledger.Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	var balance int64
	err := r.withAccountLock(ctx, e.Account, func(tx pgx.Tx) error {
		if err := insertEntry(ctx, tx, e, e.Amount); err != nil {
			return err
		}
		var err error
		balance, err = balanceTx(ctx, tx, e.Account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("crediting %d to %s: %w", e.Amount, e.Account, err)
	}
	return balance, nil
}

// Spend implements ledger.Store.
func (r *LedgerRepository) Spend(ctx context.Context, e ledger.Entry) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	var balance int64
	err := r.withAccountLock(ctx, e.Account, func(tx pgx.Tx) error {
		var err error
		balance, err = balanceTx(ctx, tx, e.Account)
		if err != nil {
			return err
		}
		if balance < e.Amount {
			return ledger.ErrInsufficientFunds
		}
		if err := insertEntry(ctx, tx, e, -e.Amount); err != nil {
			return err
		}
		balance -= e.Amount
		return nil
	})
	if err != nil {
		return balance, fmt.Errorf("spending %d from %s: %w", e.Amount, e.Account, err)
	}
	return balance, nil
}

// Balance implements ledger.Store.
func (r *LedgerRepository) Balance(ctx context.Context, account string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM token_ledger WHERE account = $1`,
		account,
	).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("querying balance of %s: %w", account, err)
	}
	return balance, nil
}

// History returns the latest entries of an account, newest first.
func (r *LedgerRepository) History(ctx context.Context, account string, limit int) ([]ledger.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account, amount, reason, room_id, round, created_at
		 FROM token_ledger WHERE account = $1
		 ORDER BY id DESC LIMIT $2`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger history of %s: %w", account, err)
	}
	defer rows.Close()

	var result []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.ID, &e.Account, &e.Amount, &e.Reason, &e.RoomID, &e.Round, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return result, nil
}

func (r *LedgerRepository) withAccountLock(ctx context.Context, account string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.Error("rollback failed", "account", account, "error", err)
		}
	}()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, account); err != nil {
		return fmt.Errorf("locking account: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e ledger.Entry, amount int64) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO token_ledger (account, amount, reason, room_id, round)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.Account, amount, e.Reason, e.RoomID, e.Round); err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func balanceTx(ctx context.Context, tx pgx.Tx, account string) (int64, error) {
	var balance int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0)::BIGINT FROM token_ledger WHERE account = $1`,
		account,
	).Scan(&balance); err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return balance, nil
}
