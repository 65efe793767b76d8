// Package money provides exact amount parsing and currency-aware conversion to minor units.
// Amounts stay as shopspring/decimal values until they are stored; go-money supplies the
// ISO-4217 fraction digits and display formatting.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	BRL = "BRL"
	JPY = "JPY" // no decimal places
)

// ErrInvalidAmount is returned when a string is not a finite decimal amount.
var ErrInvalidAmount = errors.New("invalid amount")

// MaxIntegerDigits bounds parsed amounts to what NUMERIC(19,4) columns and
// int64 minor units can hold.
const MaxIntegerDigits = 15

var (
	currencyCodes = []string{"USD", "EUR", "GBP", "BRL", "CHF", "CAD", "AUD", "JPY"}
	plainNumber   = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

	// thousands groups must be exactly three digits after a 1-3 digit lead
	groupedPoint = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d*)?$`)
	groupedComma = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d*)?$`)

	maxAmount = decimal.New(1, MaxIntegerDigits)
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units and a currency code.
func New(minor int64, currencyCode string) *Money {
	return &Money{m: money.New(minor, currencyCode)}
}

// NewFromDecimal rounds amount to the currency's minor unit.
// Unknown currency codes fall back to two fraction digits.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	return New(ToMinorUnits(amount, currencyCode), currencyCode)
}

// ToMinorUnits converts a decimal amount into integer minor units (cents for USD).
// amount must be within the range ParseDecimal accepts.
func ToMinorUnits(amount decimal.Decimal, currencyCode string) int64 {
	return amount.Shift(int32(fraction(currencyCode))).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currencyCode string) decimal.Decimal {
	return decimal.New(minor, -int32(fraction(currencyCode)))
}

func fraction(currencyCode string) int {
	if c := money.GetCurrency(strings.ToUpper(currencyCode)); c != nil {
		return c.Fraction
	}
	return 2
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// ToDecimal converts back to decimal.Decimal
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return FromMinorUnits(m.m.Amount(), m.Currency())
}

// ParseDecimal parses a statement amount exactly.
//
// Accepted: a leading "+" or "-", a trailing "-", accounting negatives "(12.30)",
// currency symbols and ISO codes, spaces, apostrophes and thousands separators.
// decimalSeparator is '.' or ','; the other character is treated as a thousands
// separator and is only accepted in groups of three digits. Amounts with more
// than MaxIntegerDigits integer digits are rejected. Anything else, including
// NaN and Inf, yields ErrInvalidAmount.
func ParseDecimal(raw string, decimalSeparator rune) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	upper := strings.ToUpper(s)
	for _, code := range currencyCodes {
		upper = strings.ReplaceAll(upper, code, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) || r == '\'' {
			return -1
		}
		return r
	}, upper)
	// "R$" leaves a stray R behind
	s = strings.TrimPrefix(s, "R")

	negative := false
	switch {
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		negative = true
		s = s[1 : len(s)-1]
	case strings.HasPrefix(s, "-"):
		negative = true
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = true
		s = s[:len(s)-1]
	}

	thousands, grouped := ",", groupedPoint
	if decimalSeparator == ',' {
		thousands, grouped = ".", groupedComma
	}
	if strings.Contains(s, thousands) {
		if !grouped.MatchString(s) {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		s = strings.ReplaceAll(s, thousands, "")
	}
	if decimalSeparator == ',' {
		s = strings.ReplaceAll(s, ",", ".")
	}

	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %q exceeds %d integer digits", ErrInvalidAmount, raw, MaxIntegerDigits)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
