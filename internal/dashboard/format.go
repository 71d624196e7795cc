// Package dashboard holds the number formatting shared by every surface.
package dashboard

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	crore = decimal.NewFromInt(10_000_000)
	lakh  = decimal.NewFromInt(100_000)
	thou  = decimal.NewFromInt(1_000)
)

// FormatIndian groups the integer part the Indian way (12,34,56,789) and
// keeps at most three fractional digits, trailing zeros dropped.
func FormatIndian(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().Round(3).String()
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(groupIndian(intPart))
	if frac = strings.TrimRight(frac, "0"); frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// groupIndian puts a comma before the last three digits and then every two.
func groupIndian(s string) string {
	if len(s) <= 3 {
		return s
	}
	head, tail := s[:len(s)-3], s[len(s)-3:]
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

// FormatInt formats an integer with Indian digit grouping.
func FormatInt(n int64) string {
	return FormatIndian(decimal.NewFromInt(n))
}

// FormatCompact abbreviates large quantities with Cr/L/K suffixes.
func FormatCompact(d decimal.Decimal) string {
	a := d.Abs()
	switch {
	case a.GreaterThanOrEqual(crore):
		return d.Div(crore).StringFixed(1) + "Cr"
	case a.GreaterThanOrEqual(lakh):
		return d.Div(lakh).StringFixed(1) + "L"
	case a.GreaterThanOrEqual(thou):
		return d.Div(thou).StringFixed(1) + "K"
	}
	return d.Round(0).String()
}

// FormatPercent formats an already-scaled percentage as "+12.34%".
func FormatPercent(pct decimal.Decimal) string {
	s := pct.StringFixed(2)
	if pct.IsPositive() {
		s = "+" + s
	}
	return s + "%"
}

// FormatQuantity renders a trade quantity compactly, or "-" when absent.
func FormatQuantity(d decimal.Decimal, ok bool) string {
	if !ok {
		return "-"
	}
	if d.Abs().LessThan(lakh) {
		return FormatIndian(d)
	}
	return FormatCompact(d)
}

// Deviation is the percentage change of actual over avg. A zero average
// yields ok=false.
func Deviation(avg, actual decimal.Decimal) (decimal.Decimal, bool) {
	if avg.IsZero() {
		return decimal.Zero, false
	}
	return actual.Sub(avg).Div(avg).Mul(decimal.NewFromInt(100)), true
}

// Tooltip joins label/value lines, skipping blank values and "-".
func Tooltip(pairs ...[2]string) string {
	var lines []string
	for _, p := range pairs {
		v := strings.TrimSpace(p[1])
		if v == "" || v == "-" {
			continue
		}
		if p[0] == "" {
			lines = append(lines, v)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", p[0], v))
	}
	return strings.Join(lines, "\n")
}
