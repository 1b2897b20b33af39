// Package money converts operator-entered decimal strings to integer minor
// units (cents) and back. Every amount that leaves the console is an int64
// number of cents.
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents bounds parsed amounts so that they stay exact in JSON consumers
// that decode numbers as float64.
const MaxCents int64 = 1 << 53

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrInvalidAmount)
	ErrAmountRequired = fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	ErrAmountNotPos   = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
)

var typingPattern = regexp.MustCompile(`^\d*\.?\d{0,2}$`)

var hundred = decimal.NewFromInt(100)

// TypingState classifies a value while the operator is still typing it.
type TypingState int

const (
	// Empty means "no amount" and is valid for optional fields.
	Empty TypingState = iota
	// Incomplete is a lone decimal point: not an error, not submittable.
	Incomplete
	Valid
	Invalid
)

func (s TypingState) String() string {
	switch s {
	case Empty:
		return "empty"
	case Incomplete:
		return "incomplete"
	case Valid:
		return "valid"
	default:
		return "invalid"
	}
}

// CheckTyping applies the in-progress input rules. Negative input is always
// Invalid.
func CheckTyping(raw string) TypingState {
	switch raw {
	case "":
		return Empty
	case ".":
		return Incomplete
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "-") {
		return Invalid
	}
	if !typingPattern.MatchString(raw) {
		return Invalid
	}
	return Valid
}

// ToCents parses a complete decimal string and returns round(value*100).
// Only the typing shape is accepted; exponents, signs and thousands
// separators are rejected.
func ToCents(raw string) (int64, error) {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "-") {
		return 0, ErrNegativeAmount
	}
	if value == "" || value == "." {
		return 0, ErrAmountRequired
	}
	if !typingPattern.MatchString(value) {
		return 0, fmt.Errorf("%w: %q is not a number with at most two decimals", ErrInvalidAmount, raw)
	}

	if strings.HasPrefix(value, ".") {
		value = "0" + value
	}
	value = strings.TrimSuffix(value, ".")

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	cents := parsed.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(MaxCents)) {
		return 0, fmt.Errorf("%w: amount too large", ErrInvalidAmount)
	}
	return cents.IntPart(), nil
}

// ParseOptional treats empty input and a lone decimal point as "no amount".
// A present amount must be greater than zero.
func ParseOptional(raw string) (cents int64, present bool, err error) {
	switch CheckTyping(strings.TrimSpace(raw)) {
	case Empty, Incomplete:
		return 0, false, nil
	}
	cents, err = ToCents(raw)
	if err != nil {
		return 0, false, err
	}
	if cents <= 0 {
		return 0, false, ErrAmountNotPos
	}
	return cents, true, nil
}

// ParseRequired requires an amount greater than zero.
func ParseRequired(raw string) (int64, error) {
	cents, err := ToCents(raw)
	if err != nil {
		return 0, err
	}
	if cents <= 0 {
		return 0, ErrAmountNotPos
	}
	return cents, nil
}

// ParseNonNegative accepts zero.
func ParseNonNegative(raw string) (int64, error) {
	return ToCents(raw)
}

// Format renders cents as a two-decimal string, e.g. 1500 -> "15.00".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
