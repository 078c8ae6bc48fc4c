// Package formula holds the round-scaling and reward formulas.
//
// These functions are the balance contract shared by every other game
// component: the server copy is authoritative for rewards and scoring, and any
// client-side prediction must produce identical values. All arithmetic is
// integer with floor division except ZombieSpeed.
package formula

const (
	// EarlyRoundLimit is the last round of the slow zombie-count ramp.
	EarlyRoundLimit = 5

	baseZombieCount   = 6
	earlyCountStep    = 2
	lateBaseCount     = 24
	lateCountStep     = 3
	baseZombieHealth  = 150
	earlyHealthStep   = 100
	earlyHealthRounds = 9
	lateBaseHealth    = 950
	lateHealthStep    = 110

	baseZombieSpeed = 1.5
	speedStep       = 0.2
	// MaxZombieSpeed is the speed cap reached at round 50.
	MaxZombieSpeed = 3.5

	// RewardTier is the number of rounds per kill-reward multiplier step.
	RewardTier = 5

	killTokens     = 5
	headshotTokens = 10
	killPoints     = 50
	headshotPoints = 100
	roundBonusUnit = 100
)

// ZombieCount returns how many zombies a round spawns.
// Rounds 1..5 grow by 2 from 6; later rounds grow by 3 from 24.
func ZombieCount(round int) int {
	if round <= EarlyRoundLimit {
		return baseZombieCount + (round-1)*earlyCountStep
	}
	return lateBaseCount + (round-EarlyRoundLimit)*lateCountStep
}

// ZombieHealth returns the spawn health of a zombie in the given round.
func ZombieHealth(round int) int {
	if round <= earlyHealthRounds {
		return baseZombieHealth + (round-1)*earlyHealthStep
	}
	return lateBaseHealth + (round-10)*lateHealthStep
}

// ZombieSpeed returns the movement speed for the round, capped at MaxZombieSpeed.
func ZombieSpeed(round int) float64 {
	return min(baseZombieSpeed+float64(floorDiv(round, RewardTier))*speedStep, MaxZombieSpeed)
}

// RoundMultiplier is floor(round/5)+1.
func RoundMultiplier(round int) int {
	return floorDiv(round, RewardTier) + 1
}

// KillReward returns the token reward for a kill in the given round.
func KillReward(round int, isHeadshot bool) int {
	base := killTokens
	if isHeadshot {
		base = headshotTokens
	}
	return base * RoundMultiplier(round)
}

// KillPoints returns the score points for a kill.
func KillPoints(isHeadshot bool) int {
	if isHeadshot {
		return headshotPoints
	}
	return killPoints
}

// RoundBonus returns the token bonus for completing a round.
func RoundBonus(round int) int {
	return roundBonusUnit * round
}

// floorDiv divides rounding toward negative infinity, matching Math.floor.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
