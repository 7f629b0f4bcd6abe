package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorUnitsPerMajor scales two-decimal currencies (kobo, cents) to and from
// the major units the catalog is priced in.
var minorUnitsPerMajor = decimal.NewFromInt(100)

func toMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(minorUnitsPerMajor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than two decimal places", amount.String())
	}
	if minor.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("amount must be greater than zero")
	}
	return minor.IntPart(), nil
}

func fromMinorUnits(minor decimal.Decimal) decimal.Decimal {
	return minor.Div(minorUnitsPerMajor)
}
