package reward

import (
	"math/rand/v2"
)

// WeaponType names a weapon that can come out of the mystery box.
type WeaponType string

const (
	WeaponAK47        WeaponType = "AK47"
	WeaponM16         WeaponType = "M16"
	WeaponGalil       WeaponType = "Galil"
	WeaponFAMAS       WeaponType = "FAMAS"
	WeaponMP40        WeaponType = "MP40"
	WeaponAK74u       WeaponType = "AK74u"
	WeaponMP5         WeaponType = "MP5"
	WeaponOlympia     WeaponType = "Olympia"
	WeaponSPAS12      WeaponType = "SPAS12"
	WeaponL96A1       WeaponType = "L96A1"
	WeaponDragunov    WeaponType = "Dragunov"
	WeaponRaygun      WeaponType = "Raygun"
	WeaponThundergun  WeaponType = "Thundergun"
	WeaponWunderWaffe WeaponType = "WunderWaffe"
)

// Rarity grades a weapon draw.
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityUncommon  Rarity = "Uncommon"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
	RarityMythic    Rarity = "Mythic"
)

// WeaponEntry is one row of the mystery-box table.
type WeaponEntry struct {
	Type   WeaponType
	Rarity Rarity
	Weight int
}

// WeaponDraw is the outcome of a mystery-box roll.
type WeaponDraw struct {
	Type   WeaponType `json:"type"`
	Rarity Rarity     `json:"rarity"`
}

// DefaultDraw is returned when a table has no usable entries.
var DefaultDraw = WeaponDraw{Type: WeaponAK47, Rarity: RarityCommon}

// Rand is the randomness source for rolls. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// WeaponTable is an ordered weighted table. Order matters: the cumulative walk
// visits entries in table order.
type WeaponTable []WeaponEntry

// DefaultWeaponTable returns the stock mystery-box table (total weight 100).
func DefaultWeaponTable() WeaponTable {
	return WeaponTable{
		{Type: WeaponAK47, Rarity: RarityCommon, Weight: 30},
		{Type: WeaponM16, Rarity: RarityCommon, Weight: 30},
		{Type: WeaponMP40, Rarity: RarityUncommon, Weight: 20},
		{Type: WeaponGalil, Rarity: RarityRare, Weight: 10},
		{Type: WeaponFAMAS, Rarity: RarityRare, Weight: 5},
		{Type: WeaponRaygun, Rarity: RarityLegendary, Weight: 3},
		{Type: WeaponThundergun, Rarity: RarityMythic, Weight: 1},
		{Type: WeaponWunderWaffe, Rarity: RarityMythic, Weight: 1},
	}
}

// TotalWeight sums the weights of all entries.
func (t WeaponTable) TotalWeight() int {
	total := 0
	for _, e := range t {
		total += e.Weight
	}
	return total
}

// Validate reports ErrInvalidWeights when the table cannot produce a
// weighted draw. Roll still works on such a table; it returns the fallback.
func (t WeaponTable) Validate() error {
	if len(t) == 0 || t.TotalWeight() <= 0 {
		return ErrInvalidWeights
	}
	for _, e := range t {
		if e.Weight <= 0 {
			return ErrInvalidWeights
		}
	}
	return nil
}

// fallback is the first table entry, or DefaultDraw for an empty table.
func (t WeaponTable) fallback() WeaponDraw {
	if len(t) == 0 {
		return DefaultDraw
	}
	return WeaponDraw{Type: t[0].Type, Rarity: t[0].Rarity}
}

// Roll draws r uniformly in [0, total) and walks the table subtracting each
// weight until the remainder drops to zero or below.
func (t WeaponTable) Roll(rng Rand) WeaponDraw {
	total := t.TotalWeight()
	if total <= 0 {
		return t.fallback()
	}
	if rng == nil {
		rng = globalRand{}
	}

	r := rng.Float64() * float64(total)
	for _, e := range t {
		r -= float64(e.Weight)
		if r <= 0 {
			return WeaponDraw{Type: e.Type, Rarity: e.Rarity}
		}
	}

	// Unreachable with correct accumulation.
	return t.fallback()
}
