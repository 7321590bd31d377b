// Package money provides precise arithmetic for statement amounts using
// integer cents. Bradesco statements print everything in Brazilian format
// ("102.084,44"), so parsing is locale-fixed to pt-BR and all values carry
// the BRL currency.
package money

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const BRL = "BRL"

// Money is an immutable BRL amount held in integer cents. It wraps go-money
// for safe arithmetic and display, and shopspring/decimal for conversions.
type Money struct {
	m *gomoney.Money
}

// FromCents builds a Money from minor units.
func FromCents(cents int64) *Money {
	return &Money{m: gomoney.New(cents, BRL)}
}

// FromFloat builds a Money from a float value in reais, rounding to the
// nearest cent through decimal to avoid binary float drift.
func FromFloat(amount float64) *Money {
	return FromDecimal(decimal.NewFromFloat(amount))
}

// FromDecimal builds a Money from a decimal amount in reais.
func FromDecimal(amount decimal.Decimal) *Money {
	cents := amount.Mul(decimal.New(1, 2)).Round(0).IntPart()
	return FromCents(cents)
}

func Zero() *Money { return FromCents(0) }

// ParseBRL parses a Brazilian-format amount such as "102.084,44" or
// "R$ 1.500,00" into Money. Dots group thousands, the comma separates cents.
func ParseBRL(s string) (*Money, error) {
	d, err := ParseNumberBR(s)
	if err != nil {
		return nil, err
	}
	return FromDecimal(d), nil
}

// ParseNumberBR parses a Brazilian-format number into a decimal. It serves
// the non-monetary columns too: rates, quantities and percentages keep their
// printed precision.
func ParseNumberBR(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "R$")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "%", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid pt-BR number %q: %w", s, err)
	}
	return d, nil
}

// FormatNumberBR renders a value the way the statement prints numbers:
// two decimals, comma separator, dot thousands groups. 102084.44 becomes
// "102.084,44".
func FormatNumberBR(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, fracPart, _ := strings.Cut(s, ".")

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".") + "," + fracPart
	if negative {
		out = "-" + out
	}
	return out
}

// Cents returns the amount in minor units.
func (m *Money) Cents() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Add returns m + other. Both sides are always BRL, so the currency check
// inside go-money cannot fail.
func (m *Money) Add(other *Money) *Money {
	if m == nil || m.m == nil {
		return other
	}
	if other == nil || other.m == nil {
		return m
	}
	sum, _ := m.m.Add(other.m)
	return &Money{m: sum}
}

// Sub returns m - other.
func (m *Money) Sub(other *Money) *Money {
	if other == nil || other.m == nil {
		return m
	}
	if m == nil || m.m == nil {
		return &Money{m: other.m.Negative()}
	}
	diff, _ := m.m.Subtract(other.m)
	return &Money{m: diff}
}

func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero()
	}
	return &Money{m: m.m.Absolute()}
}

// Equals compares amounts, treating nil as zero.
func (m *Money) Equals(other *Money) bool {
	return m.Cents() == other.Cents()
}

// WithinCents reports whether m and other differ by at most tolerance minor
// units. Statement totals are printed after per-row rounding, so sums
// reconcile to the printed figure only within a cent.
func (m *Money) WithinCents(other *Money, tolerance int64) bool {
	diff := m.Cents() - other.Cents()
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// Decimal converts to a decimal amount in reais.
func (m *Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents(), -2)
}

// Float64 converts to reais for JSON payloads. Display strings should use
// Display instead.
func (m *Money) Float64() float64 {
	return m.Decimal().InexactFloat64()
}

// Display renders the amount the way the statement prints it, e.g.
// "R$102.084,44".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return gomoney.New(0, BRL).Display()
	}
	return m.m.Display()
}

// String returns the plain decimal form, e.g. "102084.44".
func (m *Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON emits the amount as a plain number in reais, matching the
// shape of the exported portfolio documents.
func (m *Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Float64())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	m.m = FromFloat(f).m
	return nil
}

// Sum adds a series of amounts, skipping nils.
func Sum(values ...*Money) *Money {
	total := Zero()
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
