package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type Tier struct {
	ID      string
	Name    string
	Aliases []string
	Price   decimal.Decimal
}

// Catalog is the versioned price list. Prices are in major units of Currency.
type Catalog struct {
	Version  string
	Currency string
	Tiers    []Tier
}

func (c Catalog) Lookup(identifier string) (Tier, bool) {
	key := normalizeTierKey(identifier)
	if key == "" {
		return Tier{}, false
	}

	for _, tier := range c.Tiers {
		if normalizeTierKey(tier.ID) == key || normalizeTierKey(tier.Name) == key {
			return tier, true
		}
		for _, alias := range tier.Aliases {
			if normalizeTierKey(alias) == key {
				return tier, true
			}
		}
	}

	return Tier{}, false
}

func normalizeTierKey(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
