package internal

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// Amount is the non-negative integral quantity of a component.
type Amount struct {
	value int64
}

// ParseAmount reads an unsigned decimal integer such as "2" or "064", the
// form scontrol reports counts in. Signs, fractions, exponents and unit
// suffixes are rejected, and the value must fit in an int64.
func ParseAmount(raw string) (Amount, error) {
	if raw == "" || strings.TrimLeft(raw, "0123456789") != "" {
		return Amount{}, fmt.Errorf("amount must be an unsigned integer")
	}
	var d apd.Decimal
	if _, _, err := d.SetString(raw); err != nil {
		return Amount{}, fmt.Errorf("invalid decimal: %w", err)
	}
	n, err := d.Int64()
	if err != nil {
		return Amount{}, fmt.Errorf("amount out of range: %w", err)
	}
	return Amount{value: n}, nil
}

func NewAmount(value int64) (Amount, error) {
	if value < 0 {
		return Amount{}, fmt.Errorf("amount must not be negative")
	}
	return Amount{value: value}, nil
}

func (a Amount) ToInt64() int64 {
	return a.value
}
