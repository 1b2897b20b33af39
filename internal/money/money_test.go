package money

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTyping(t *testing.T) {
	cases := map[string]TypingState{
		"":       Empty,
		".":      Incomplete,
		"1":      Valid,
		"1.":     Valid,
		".5":     Valid,
		"15.00":  Valid,
		"15.001": Invalid,
		"-1":     Invalid,
		"abc":    Invalid,
		"1,000":  Invalid,
		"1e3":    Invalid,
	}
	for input, want := range cases {
		assert.Equal(t, want, CheckTyping(input), "input %q", input)
	}
}

func TestToCents(t *testing.T) {
	cases := map[string]int64{
		"15.00": 1500,
		"15":    1500,
		"15.":   1500,
		".5":    50,
		"0.01":  1,
		"0":     0,
		"20.1":  2010,
	}
	for input, want := range cases {
		got, err := ToCents(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, got, "input %q", input)
	}
}

func TestToCentsRejectsBadInput(t *testing.T) {
	for _, input := range []string{"-1", "-0.5", "abc", "1.234", "1e2", "", "."} {
		_, err := ToCents(input)
		require.Error(t, err, "input %q", input)
		assert.ErrorIs(t, err, ErrInvalidAmount, "input %q", input)
	}

	_, err := ToCents("-3")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestParseOptional(t *testing.T) {
	cents, present, err := ParseOptional("")
	require.NoError(t, err)
	assert.False(t, present)
	assert.Zero(t, cents)

	_, present, err = ParseOptional(".")
	require.NoError(t, err)
	assert.False(t, present)

	cents, present, err = ParseOptional("12.34")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, int64(1234), cents)

	_, _, err = ParseOptional("0")
	assert.ErrorIs(t, err, ErrAmountNotPos)

	_, _, err = ParseOptional("-2")
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestParseRequiredAndNonNegative(t *testing.T) {
	_, err := ParseRequired("0.00")
	assert.ErrorIs(t, err, ErrAmountNotPos)

	_, err = ParseRequired("")
	assert.ErrorIs(t, err, ErrAmountRequired)

	cents, err := ParseNonNegative("0")
	require.NoError(t, err)
	assert.Zero(t, cents)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "15.00", Format(1500))
	assert.Equal(t, "0.05", Format(5))
	assert.Equal(t, "0.00", Format(0))
}

func TestPositiveAmountsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		whole := rng.Intn(100000)
		var input string
		switch rng.Intn(3) {
		case 0:
			input = fmt.Sprintf("%d", whole)
		case 1:
			input = fmt.Sprintf("%d.%d", whole, rng.Intn(10))
		default:
			input = fmt.Sprintf("%d.%02d", whole, rng.Intn(100))
		}
		if CheckTyping(input) != Valid {
			t.Fatalf("generated input %q is not valid typing", input)
		}
		original := decimal.RequireFromString(input)
		if !original.IsPositive() {
			continue
		}

		cents, err := ParseRequired(input)
		require.NoError(t, err, "input %q", input)

		back := decimal.RequireFromString(Format(cents))
		assert.True(t, original.Equal(back), "input %q came back as %s", input, back)
	}
}
