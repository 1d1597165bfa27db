// Package money provides a fixed-point currency amount used by billing,
// payments and inventory. Amounts carry two decimal places and round
// half-to-even, so repeated allocation arithmetic never drifts.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a currency value with cent precision. The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Amount{}

// FromString parses a decimal string such as "1500.00". The result is
// rounded to two places half-to-even.
func FromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	return Amount{d: d.RoundBank(2)}, nil
}

// MustFromString is FromString for trusted literals; it panics on a bad input.
func MustFromString(s string) Amount {
	a, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat converts a float64, rounding to two places half-to-even.
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).RoundBank(2)}
}

// FromCents builds an amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }

// MulRate multiplies by a fractional rate (e.g. 0.02 for 2%) and rounds
// the product back to cents half-to-even.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount{d: a.d.Mul(rate).RoundBank(2)}
}

// MulInt scales by a whole count, e.g. unit price times quantity.
func (a Amount) MulInt(n int) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(int64(n))).RoundBank(2)}
}

func (a Amount) Cmp(b Amount) int          { return a.d.Cmp(b.d) }
func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) IsZero() bool              { return a.d.IsZero() }
func (a Amount) IsNegative() bool          { return a.d.IsNegative() }
func (a Amount) IsPositive() bool          { return a.d.IsPositive() }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.d.LessThan(b.d) {
		return a
	}
	return b
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string { return a.d.StringFixed(2) }

// Decimal exposes the underlying decimal for rate arithmetic.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// Sum adds a slice of amounts.
func Sum(amounts ...Amount) Amount {
	total := Amount{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// MarshalJSON encodes the amount as a JSON string ("1500.00") so clients
// never see float artifacts.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := FromString(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value implements driver.Valuer so amounts scan into NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case string:
		parsed, err := FromString(v)
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case []byte:
		parsed, err := FromString(string(v))
		if err != nil {
			return err
		}
		*a = parsed
		return nil
	case float64:
		*a = FromFloat(v)
		return nil
	case int64:
		*a = Amount{d: decimal.NewFromInt(v)}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
