package reward

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRand returns the same value on every call.
type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

func TestKill(t *testing.T) {
	tests := []struct {
		name       string
		round      int
		headshot   bool
		wantTokens int
		wantReason Reason
	}{
		{"body shot round 1", 1, false, 5, ReasonKill},
		{"headshot round 1", 1, true, 10, ReasonHeadshot},
		{"headshot round 5", 5, true, 20, ReasonHeadshot},
		{"body shot round 12", 12, false, 15, ReasonKill},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Kill(tt.round, tt.headshot)
			assert.Equal(t, tt.wantTokens, got.TokensEarned)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestRoundComplete(t *testing.T) {
	got := RoundComplete(3)
	assert.Equal(t, Result{TokensEarned: 300, Reason: ReasonRoundComplete}, got)
}

func TestWeaponTable_Roll_Boundaries(t *testing.T) {
	table := DefaultWeaponTable()
	require.Equal(t, 100, table.TotalWeight())

	assert.Equal(t, WeaponAK47, table.Roll(fixedRand(0)).Type)
	assert.Equal(t, WeaponAK47, table.Roll(fixedRand(0.25)).Type)
	assert.Equal(t, WeaponM16, table.Roll(fixedRand(0.31)).Type)
	assert.Equal(t, WeaponMP40, table.Roll(fixedRand(0.75)).Type)
	assert.Equal(t, WeaponRaygun, table.Roll(fixedRand(0.97)).Type)
	assert.Equal(t, WeaponWunderWaffe, table.Roll(fixedRand(0.9999)).Type)
}

func TestWeaponTable_Roll_RemainderZeroSelectsEntry(t *testing.T) {
	table := WeaponTable{
		{Type: WeaponMP5, Rarity: RarityUncommon, Weight: 1},
		{Type: WeaponSPAS12, Rarity: RarityRare, Weight: 1},
	}
	// r = 0.5 * 2 = 1 exhausts the first weight exactly.
	assert.Equal(t, WeaponMP5, table.Roll(fixedRand(0.5)).Type)
}

func TestWeaponTable_Roll_Distribution(t *testing.T) {
	const trials = 100_000
	table := DefaultWeaponTable()
	rng := rand.New(rand.NewPCG(42, 1337))

	counts := make(map[WeaponType]int, len(table))
	for range trials {
		counts[table.Roll(rng).Type]++
	}

	total := float64(table.TotalWeight())
	for _, e := range table {
		want := float64(e.Weight) / total
		got := float64(counts[e.Type]) / trials
		assert.InDelta(t, want, got, 0.01, "frequency of %s", e.Type)
	}
}

func TestWeaponTable_InvalidWeights(t *testing.T) {
	tests := []struct {
		name  string
		table WeaponTable
		want  WeaponDraw
	}{
		{
			name:  "empty table",
			table: WeaponTable{},
			want:  DefaultDraw,
		},
		{
			name: "zero total weight",
			table: WeaponTable{
				{Type: WeaponRaygun, Rarity: RarityLegendary, Weight: 0},
				{Type: WeaponMP5, Rarity: RarityUncommon, Weight: 0},
			},
			want: WeaponDraw{Type: WeaponRaygun, Rarity: RarityLegendary},
		},
		{
			name: "negative total weight",
			table: WeaponTable{
				{Type: WeaponOlympia, Rarity: RarityCommon, Weight: -5},
			},
			want: WeaponDraw{Type: WeaponOlympia, Rarity: RarityCommon},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.table.Validate(), ErrInvalidWeights)
			assert.Equal(t, tt.want, tt.table.Roll(fixedRand(0.5)))
		})
	}
}

func TestWeaponTable_Validate(t *testing.T) {
	assert.NoError(t, DefaultWeaponTable().Validate())

	mixed := WeaponTable{
		{Type: WeaponAK47, Rarity: RarityCommon, Weight: 10},
		{Type: WeaponM16, Rarity: RarityCommon, Weight: 0},
	}
	assert.ErrorIs(t, mixed.Validate(), ErrInvalidWeights)
}

func TestArbiter(t *testing.T) {
	a := NewArbiter(DefaultWeaponTable(), fixedRand(0.985))

	assert.Equal(t, Kill(7, true), a.Kill(7, true))
	assert.Equal(t, RoundComplete(7), a.RoundComplete(7))
	assert.Equal(t, WeaponDraw{Type: WeaponThundergun, Rarity: RarityMythic}, a.RollMysteryBox())
}

func TestArbiter_MisconfiguredTableDoesNotPanic(t *testing.T) {
	a := NewArbiter(nil, nil)
	assert.NotPanics(t, func() {
		assert.Equal(t, DefaultDraw, a.RollMysteryBox())
	})
}
