// Package core provides money and date parsing utilities.
//
// This file contains the parsing rules shared by transaction amounts,
// duplicate checks and numeric settings: a decimal comma is normalized to a
// dot and the value is kept as a fixed-point decimal with two fraction digits.
package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted wire format for calendar dates.
const DateLayout = "2006-01-02"

// AmountScale is the number of fraction digits kept for amounts.
const AmountScale = 2

// maxAmount mirrors a NUMERIC(10,2) column: eight integer digits.
var maxAmount = decimal.RequireFromString("99999999.99")

// ParseAmount converts a request value into a two-digit fixed-point decimal.
//
// Strings and JSON numbers are accepted. A comma is treated as the decimal
// separator and replaced by a dot before parsing; extra fraction digits are
// rounded half away from zero.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,5")   -> 12.50
//	ParseAmount(-3)       -> -3.00
//	ParseAmount("1.2.3")  -> error
func ParseAmount(v any) (decimal.Decimal, error) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = decimal.NewFromFloat(val).String()
	case int:
		s = fmt.Sprint(val)
	case int64:
		s = fmt.Sprint(val)
	default:
		return decimal.Zero, ErrInvalidAmount
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	d = d.Round(AmountScale)
	if d.Abs().GreaterThan(maxAmount) {
		return decimal.Zero, ErrAmountOutOfRange
	}
	return d, nil
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(v any) (Date, error) {
	s, ok := v.(string)
	if !ok {
		return Date{}, ErrInvalidDate
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// FormatAmount renders an amount with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

// AmountToCents converts a two-digit decimal to integer cents for storage.
func AmountToCents(d decimal.Decimal) int64 {
	return d.Round(AmountScale).Shift(AmountScale).IntPart()
}

// AmountFromCents converts stored cents back into a decimal.
func AmountFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -AmountScale)
}
