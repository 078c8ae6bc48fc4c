package room

import (
	"fmt"

	"github.com/udisondev/zombiearena/internal/model"
)

// Default prices in tokens.
const (
	DefaultMysteryBoxCost = 950

	DefaultJuggernogPrice = 2500
	DefaultSpeedColaPrice = 3000
	DefaultStaminUpPrice  = 2000
)

// Catalog maps each purchasable perk to its price.
type Catalog map[model.Perk]int

// DefaultCatalog returns the stock perk machine prices.
func DefaultCatalog() Catalog {
	return Catalog{
		model.PerkJuggernog: DefaultJuggernogPrice,
		model.PerkSpeedCola: DefaultSpeedColaPrice,
		model.PerkStaminUp:  DefaultStaminUpPrice,
	}
}

// Price returns the price of perk k.
func (c Catalog) Price(k model.Perk) (int, error) {
	price, ok := c[k]
	if !ok || !k.IsKnown() {
		return 0, fmt.Errorf("pricing %q: %w", k, ErrUnknownPerk)
	}
	return price, nil
}

// CatalogFromPrices builds a catalog from configured prices keyed by perk
// name. Unknown perks are skipped; known perks missing from prices keep
// their default price.
func CatalogFromPrices(prices map[string]int) Catalog {
	c := DefaultCatalog()
	for name, price := range prices {
		k := model.Perk(name)
		if !k.IsKnown() || price < 0 {
			continue
		}
		c[k] = price
	}
	return c
}
