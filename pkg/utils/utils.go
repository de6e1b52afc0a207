package utils

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const loanIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateLoanID builds a display id of the form LN-<base36 millis>-<5 random chars>.
func GenerateLoanID(now time.Time) string {
	timestamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	suffix := make([]byte, 5)
	for i := range suffix {
		suffix[i] = loanIDAlphabet[rand.IntN(len(loanIDAlphabet))]
	}

	return "LN-" + timestamp + "-" + string(suffix)
}

// CalculateDueDate returns the due date of the given instalment number.
// Instalment 1 is due one month after the start date.
func CalculateDueDate(startDate time.Time, month int) time.Time {
	return startDate.AddDate(0, month, 0)
}

// IsDateOverdue reports whether dueDate is strictly before now.
func IsDateOverdue(dueDate, now time.Time) bool {
	return now.After(dueDate)
}

// TruncateToDay drops the clock part of t, keeping its location.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// MonthKey returns the calendar month bucket of t in UTC, e.g. "2024-03".
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// FormatINR renders an amount with Indian digit grouping (1,23,45,678.90)
// and the rupee sign. places controls the fractional digits.
func FormatINR(amount decimal.Decimal, places int32) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}

	fixed := amount.StringFixed(places)
	whole, frac, _ := strings.Cut(fixed, ".")

	grouped := groupIndian(whole)
	if frac != "" {
		grouped += "." + frac
	}
	return sign + "₹" + grouped
}

func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	var parts []string
	for len(head) > 2 {
		parts = append([]string{head[len(head)-2:]}, parts...)
		head = head[:len(head)-2]
	}
	if head != "" {
		parts = append([]string{head}, parts...)
	}

	return strings.Join(parts, ",") + "," + tail
}

// DecimalFromString parses a decimal, ignoring surrounding whitespace as
// typed into spreadsheet cells.
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// FitsPlaces reports whether v has no significant digits beyond the given
// number of decimal places. Trailing zeros do not count.
func FitsPlaces(v decimal.Decimal, places int32) bool {
	return v.Equal(v.Truncate(places))
}
