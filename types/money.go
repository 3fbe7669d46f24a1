// Package types provides value types shared across the rental packages.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in the smallest unit of its currency.
// Arithmetic stays in integers; decimal is only used for percentages and
// for converting to and from major units.
//
//   - ETH(1_000_000_000) = 1 ETH (amount held in gwei)
//   - USD(4900) = $49.00
type Money struct {
	Amount   int64  `json:"amount"`   // smallest unit
	Currency string `json:"currency"` // lowercase code: "eth", "usd"
}

// ErrOverflow is returned when a result does not fit in int64 minor units.
var ErrOverflow = errors.New("money: amount overflows int64")

var (
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	minAmount = decimal.NewFromInt(math.MinInt64)
)

// ETH creates a Money value in gwei.
func ETH(gwei int64) Money { return Money{Amount: gwei, Currency: "eth"} }

// USD creates a Money value in cents.
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// Zero returns a zero Money value in currency.
func Zero(currency string) Money { return Money{Currency: strings.ToLower(currency)} }

// New returns amount minor units of currency.
func New(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: strings.ToLower(currency)}
}

// ParseMajor parses a major-unit string such as "1.5" into Money.
// Digits below the currency's precision are rejected.
func ParseMajor(s, currency string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("money: parse %q: %w", s, err)
	}
	scaled := d.Shift(int32(currencyDecimals(currency)))
	if !scaled.Equal(scaled.Truncate(0)) {
		return Money{}, fmt.Errorf("money: %q exceeds %s precision", s, strings.ToLower(currency))
	}
	return New(scaled.IntPart(), currency), nil
}

// Normalize returns m with a lowercase currency code.
func (m Money) Normalize() Money { return New(m.Amount, m.Currency) }

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return New(m.Amount+other.Amount, m.Currency)
}

// Subtract subtracts other. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return New(m.Amount-other.Amount, m.Currency)
}

// Multiply multiplies the amount by qty. The result wraps on overflow;
// use MultiplyExact for amounts taken from callers.
func (m Money) Multiply(qty int64) Money {
	return New(m.Amount*qty, m.Currency)
}

// MultiplyExact multiplies the amount by qty, failing with ErrOverflow when
// the product leaves the int64 range.
func (m Money) MultiplyExact(qty int64) (Money, error) {
	d := decimal.NewFromInt(m.Amount).Mul(decimal.NewFromInt(qty))
	if d.GreaterThan(maxAmount) || d.LessThan(minAmount) {
		return Money{}, fmt.Errorf("%w: %d * %d", ErrOverflow, m.Amount, qty)
	}
	return New(d.IntPart(), m.Currency), nil
}

// Percent returns floor(amount * pct / 100).
func (m Money) Percent(pct int64) Money {
	d := decimal.NewFromInt(m.Amount).
		Mul(decimal.NewFromInt(pct)).
		Div(decimal.NewFromInt(100)).
		Floor()
	return Money{Amount: d.IntPart(), Currency: m.Currency}
}

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// SameCurrency reports whether m and other share a currency. Codes compare
// case-insensitively; every arithmetic method uses this rule.
func (m Money) SameCurrency(other Money) bool {
	return strings.EqualFold(m.Currency, other.Currency)
}

// Equal returns true if amount and currency match.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.SameCurrency(other)
}

// LessThan returns true if m < other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if m > other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -int32(currencyDecimals(m.Currency)))
}

// FormatMajor returns the major-unit amount with the currency's precision,
// trailing zeros trimmed down to two places: ETH(1_500_000_000) is "1.50".
func (m Money) FormatMajor() string {
	places := currencyDecimals(m.Currency)
	s := m.Decimal().StringFixed(int32(places))
	if places <= 2 || !strings.Contains(s, ".") {
		return s
	}
	whole, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}
	return whole + "." + frac
}

// String returns a human-readable amount, e.g. "$49.00" or "1.50 ETH".
func (m Money) String() string {
	if sym, ok := currencySymbols[strings.ToLower(m.Currency)]; ok {
		return sym + m.FormatMajor()
	}
	return m.FormatMajor() + " " + strings.ToUpper(m.Currency)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = New(raw.Amount, raw.Currency)
	return nil
}

// Sum adds values in currency. All values must share it.
func Sum(currency string, values ...Money) Money {
	total := Zero(currency)
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func (m Money) assertSameCurrency(other Money) {
	if !m.SameCurrency(other) {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

var currencySymbols = map[string]string{
	"usd": "$",
	"eur": "€",
	"gbp": "£",
}

// currencyDecimals returns the minor-unit precision of a currency.
// Native chain currencies are held in gwei-sized units so amounts fit in int64.
func currencyDecimals(currency string) int {
	switch strings.ToLower(currency) {
	case "eth", "matic", "pol", "bnb":
		return 9
	case "jpy", "krw":
		return 0
	default:
		return 2
	}
}
