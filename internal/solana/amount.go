package solana

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrAmountPrecision   = errors.New("amount has more decimal places than the asset supports")
	ErrAmountOverflow    = errors.New("amount does not fit in 64 bits")
)

var maxUint64 = decimal.NewFromUint64(math.MaxUint64)

// ToBaseUnits scales a UI amount by 10^decimals. The result must be a positive
// integer that fits in a u64.
func ToBaseUnits(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if !amount.IsPositive() {
		return 0, ErrNonPositiveAmount
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %s with %d decimals", ErrAmountPrecision, amount, decimals)
	}
	if scaled.GreaterThan(maxUint64) {
		return 0, ErrAmountOverflow
	}
	return scaled.BigInt().Uint64(), nil
}

// FromBaseUnits converts a raw u64 amount back to UI units.
func FromBaseUnits(units uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(units).Shift(-int32(decimals))
}
