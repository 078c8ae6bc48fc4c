// Package reward maps completed game events to token rewards and rolls the
// mystery box. It has no side effects: crediting an external ledger is the
// caller's job once a Result is in hand.
package reward

import "github.com/udisondev/zombiearena/internal/game/formula"

// Reason classifies why tokens were earned.
type Reason string

const (
	ReasonKill          Reason = "kill"
	ReasonHeadshot      Reason = "headshot"
	ReasonRoundComplete Reason = "round_complete"
)

// Result is the transient outcome of a reward-bearing event.
type Result struct {
	TokensEarned int    `json:"tokensEarned"`
	Reason       Reason `json:"reason"`
}

// Kill returns the reward for a zombie kill in the given round.
func Kill(round int, isHeadshot bool) Result {
	reason := ReasonKill
	if isHeadshot {
		reason = ReasonHeadshot
	}
	return Result{
		TokensEarned: formula.KillReward(round, isHeadshot),
		Reason:       reason,
	}
}

// RoundComplete returns the bonus for clearing the given round.
func RoundComplete(round int) Result {
	return Result{
		TokensEarned: formula.RoundBonus(round),
		Reason:       ReasonRoundComplete,
	}
}
