// Package money converts between raw digit strings, grouped display strings
// and whole-unit amounts.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Separator groups thousands in display strings.
const Separator = ","

// ErrInvalidAmount is returned for empty or non-numeric amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// DigitsOnly drops every character that is not an ASCII digit.
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatGrouped inserts a separator every three digits from the right.
// digits must already be stripped of anything but digits.
func FormatGrouped(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}

	var b strings.Builder
	b.Grow(n + (n-1)/3)
	head := n % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < n; i += 3 {
		b.WriteString(Separator)
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// ParseAmount strips separators and parses a non-negative whole amount.
// Amounts above math.MaxInt64 (9,223,372,036,854,775,807) are rejected with
// ErrInvalidAmount, so a round trip through FormatGrouped only holds for
// digit strings within that bound.
func ParseAmount(formatted string) (int64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(formatted), Separator, "")
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, formatted)
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, formatted)
	}
	return v, nil
}

// FormatInt renders a whole amount with grouping.
func FormatInt(v int64) string {
	if v < 0 {
		return "-" + FormatGrouped(strconv.FormatInt(-v, 10))
	}
	return FormatGrouped(strconv.FormatInt(v, 10))
}

// Round rounds half-up to a whole unit.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// FormatRupiah rounds to a whole unit and renders "Rp 1,234".
func FormatRupiah(d decimal.Decimal) string {
	return "Rp " + FormatInt(Round(d).IntPart())
}
