package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

// Money is an amount in minor units (cents). On the wire it is a plain decimal
// number with two fraction digits, which is what the backend sends and expects.
type Money int64

// NewMoney converts a decimal amount to Money, rounding to the nearest cent.
func NewMoney(amount float64) Money {
	return Money(math.Round(amount * 100))
}

// Mul returns m multiplied by qty.
func (m Money) Mul(qty int) Money {
	return m * Money(qty)
}

func (m Money) Float64() float64 {
	return float64(m) / 100
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON reads a decimal number exactly. Values with a non-zero digit
// below the cent are rejected rather than rounded.
func (m *Money) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = 0
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("money: %w", err)
	}
	v, err := ParseMoney(n.String())
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMoney converts a decimal string such as "19.99" or "1e2" to Money.
func ParseMoney(s string) (Money, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("money: invalid amount %q", s)
	}
	cents := r.Mul(r, big.NewRat(100, 1))
	if !cents.IsInt() {
		return 0, fmt.Errorf("money: %q has more than two decimals", s)
	}
	if !cents.Num().IsInt64() {
		return 0, fmt.Errorf("money: %q out of range", s)
	}
	return Money(cents.Num().Int64()), nil
}
