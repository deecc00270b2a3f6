package common

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var ErrNegativeAmount = errors.New("amount must not be negative")

// ToBaseUnits converts a display amount such as "1.5" into raw units of a
// token with the given decimals. Digits beyond the token precision are
// truncated.
func ToBaseUnits(amount string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return DecimalToBaseUnits(d, decimals)
}

func DecimalToBaseUnits(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	raw := d.Shift(int32(decimals)).Truncate(0).BigInt()
	out, overflow := uint256.FromBig(raw)
	if overflow {
		return nil, fmt.Errorf("amount %s overflows 256 bits", d.String())
	}
	return out, nil
}

// FromBaseUnits renders raw units as a display amount without trailing zeros.
func FromBaseUnits(raw *uint256.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw.ToBig(), -int32(decimals)).String()
}
