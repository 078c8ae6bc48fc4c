package model

import "time"

// RoundStats is one participant's summary of a cleared round.
type RoundStats struct {
	Account      string    `json:"account"`
	RoomID       string    `json:"roomId"`
	Round        int       `json:"round"`
	Kills        int       `json:"kills"`
	Score        int       `json:"score"`
	SurvivalTime float64   `json:"survivalTime"`
	Bonus        int       `json:"bonus"`
	CreatedAt    time.Time `json:"createdAt"`
}

// LeaderboardEntry ranks an account by its best round, then best score.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	Account      string `json:"account"`
	BestRound    int    `json:"bestRound"`
	BestScore    int    `json:"bestScore"`
	TotalKills   int    `json:"totalKills"`
	RoundsPlayed int    `json:"roundsPlayed"`
}

// PlayerStats aggregates every saved round of an account.
type PlayerStats struct {
	Account           string    `json:"account"`
	RoundsPlayed      int       `json:"roundsPlayed"`
	BestRound         int       `json:"bestRound"`
	BestScore         int       `json:"bestScore"`
	TotalKills        int       `json:"totalKills"`
	TotalScore        int       `json:"totalScore"`
	TotalSurvivalTime float64   `json:"totalSurvivalTime"`
	TotalBonus        int       `json:"totalBonus"`
	LastPlayed        time.Time `json:"lastPlayed"`
}
