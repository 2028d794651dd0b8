package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency is one of the two fungible asset types the treasury holds.
type Currency string

const (
	SUI  Currency = "SUI"
	USDC Currency = "USDC"
)

func Currencies() []Currency {
	return []Currency{SUI, USDC}
}

func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case SUI:
		return SUI, nil
	case USDC:
		return USDC, nil
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

// Scale is the number of decimal places in the smallest on-chain unit
// (MIST for SUI, micro-units for USDC).
func (c Currency) Scale() int32 {
	switch c {
	case USDC:
		return 6
	default:
		return 9
	}
}

// BaseUnits converts a decimal amount to the smallest on-chain unit,
// truncating any fraction below one unit. Never rounds up. Amounts whose
// base-unit value does not fit in 64 bits are rejected rather than wrapped.
func (c Currency) BaseUnits(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %s", amount)
	}
	units := amount.Shift(c.Scale()).Floor().BigInt()
	if !units.IsUint64() {
		return 0, fmt.Errorf("amount %s %s exceeds the 64-bit base-unit range", amount, c)
	}
	return units.Uint64(), nil
}
