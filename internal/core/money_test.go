package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  any
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"-45,5", "-45.50", true},
		{"0", "0.00", true},
		{" 2.50 ", "2.50", true},
		{"1.005", "1.01", true},
		{json.Number("12.3"), "12.30", true},
		{float64(7), "7.00", true},
		{"99999999.99", "99999999.99", true},
		{"100000000", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,234.56", "", false},
		{"", "", false},
		{true, "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			require.NoError(t, err, "input %#v", tc.in)
			assert.Equal(t, tc.out, FormatAmount(got), "input %#v", tc.in)
		} else {
			require.Error(t, err, "input %#v", tc.in)
			assert.True(t, errors.Is(err, ErrValidation), "input %#v should be a validation error", tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())

	for _, bad := range []any{"2023-02-29", "2024-1-5", "05/01/2024", "", 20240105, nil} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %#v", bad)
		assert.ErrorIs(t, err, ErrValidation, "input %#v", bad)
	}
}

func TestCentsRoundTrip(t *testing.T) {
	amount, err := ParseAmount("-1234,56")
	require.NoError(t, err)

	cents := AmountToCents(amount)
	assert.Equal(t, int64(-123456), cents)
	assert.Equal(t, "-1234.56", FormatAmount(AmountFromCents(cents)))
}
