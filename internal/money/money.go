// Package money stores expense amounts as whole cents so that totals add up exactly.
package money

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidAmount is returned for amounts that are not a positive decimal
	// number no larger than MaxUnits.
	ErrInvalidAmount = errors.New("amount must be a positive number")
	// ErrOverflow is returned when a total no longer fits in an Amount.
	ErrOverflow = errors.New("amount total overflows")
)

// MaxUnits is the largest whole-unit value Parse accepts. Over 92,000 maximal
// amounts still add up inside int64.
const MaxUnits = 1_000_000_000_000

const maxAmount = Amount(1<<63 - 1)

// Amount is a monetary value in cents.
type Amount int64

// FromCents wraps a raw cent count.
func FromCents(cents int64) Amount {
	return Amount(cents)
}

// Cents returns the raw cent count.
func (a Amount) Cents() int64 {
	return int64(a)
}

// Float returns the value in currency units, for display only.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// String formats the amount with two decimals, e.g. "12.50".
func (a Amount) String() string {
	cents := int64(a)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// Parse converts a decimal string such as "12.5" or "12,50" to an Amount.
// A third fractional digit is rounded half-up; further digits are ignored.
func Parse(s string) (Amount, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, ErrInvalidAmount
	}

	intPart, fracPart, _ := strings.Cut(s, ".")
	if strings.Contains(fracPart, ".") {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return 0, ErrInvalidAmount
	}

	units, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil || units > MaxUnits {
		return 0, ErrInvalidAmount
	}

	var frac int64
	for i := 0; i < 2; i++ {
		frac *= 10
		if i < len(fracPart) {
			frac += int64(fracPart[i] - '0')
		}
	}
	if len(fracPart) > 2 && fracPart[2] >= '5' {
		frac++
	}

	cents := units*100 + frac
	if cents <= 0 || cents > MaxUnits*100 {
		return 0, ErrInvalidAmount
	}
	return Amount(cents), nil
}

// Add returns a+b, or ErrOverflow when the result does not fit.
func (a Amount) Add(b Amount) (Amount, error) {
	if (b > 0 && a > maxAmount-b) || (b < 0 && a < -maxAmount-1-b) {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sum adds amounts together, failing with ErrOverflow instead of wrapping.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// MarshalJSON writes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both a JSON number and a quoted decimal string,
// since HTML forms submit amounts as text.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return ErrInvalidAmount
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return ErrInvalidAmount
		}
		raw = unquoted
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
