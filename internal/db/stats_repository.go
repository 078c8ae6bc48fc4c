package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/zombiearena/internal/model"
)

// DefaultLeaderboardLimit caps leaderboard queries without an explicit limit.
const DefaultLeaderboardLimit = 100

// StatsRepository persists round summaries and serves aggregates.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new stats repository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// SaveRoundStats inserts one round summary.
func (r *StatsRepository) SaveRoundStats(ctx context.Context, s model.RoundStats) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO round_stats (account, room_id, round, kills, score, survival_time, bonus)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.Account, s.RoomID, s.Round, s.Kills, s.Score, s.SurvivalTime, s.Bonus); err != nil {
		return fmt.Errorf("insert round stats for %s round %d: %w", s.Account, s.Round, err)
	}
	return nil
}

// Leaderboard returns the top accounts by best round, then best score.
func (r *StatsRepository) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 || limit > DefaultLeaderboardLimit {
		limit = DefaultLeaderboardLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT account, MAX(round), MAX(score), SUM(kills), COUNT(*)
		 FROM round_stats
		 GROUP BY account
		 ORDER BY MAX(round) DESC, MAX(score) DESC, account
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	result := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(&e.Account, &e.BestRound, &e.BestScore, &e.TotalKills, &e.RoundsPlayed); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(result) + 1
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return result, nil
}

// PlayerStats aggregates every round saved for account.
// Returns nil, nil if the account has no saved rounds.
func (r *StatsRepository) PlayerStats(ctx context.Context, account string) (*model.PlayerStats, error) {
	s := model.PlayerStats{Account: account}
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), MAX(round), MAX(score), SUM(kills), SUM(score),
		        SUM(survival_time), SUM(bonus), MAX(created_at)
		 FROM round_stats WHERE account = $1
		 GROUP BY account`, account,
	).Scan(&s.RoundsPlayed, &s.BestRound, &s.BestScore, &s.TotalKills, &s.TotalScore,
		&s.TotalSurvivalTime, &s.TotalBonus, &s.LastPlayed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query player stats for %s: %w", account, err)
	}
	return &s, nil
}
