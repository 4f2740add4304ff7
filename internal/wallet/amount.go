package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a whole-token amount such as "1000" or "2.5" into
// base units for a mint with the given decimals. The parsed display amount is
// returned alongside.
func ToBaseUnits(amount string, decimals int32) (uint64, decimal.Decimal, error) {
	display, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, decimal.Zero, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if !display.IsPositive() {
		return 0, decimal.Zero, fmt.Errorf("amount %q must be positive", amount)
	}
	base := display.Shift(decimals)
	if !base.Equal(base.Truncate(0)) {
		return 0, decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	units := base.BigInt()
	if !units.IsUint64() {
		return 0, decimal.Zero, fmt.Errorf("amount %q overflows base units", amount)
	}
	return units.Uint64(), display, nil
}
