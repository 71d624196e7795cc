// Package dates turns the assorted date strings found in exchange and news
// feeds into comparable instants.
//
// Every instant produced here is a naive wall-clock time carried in UTC: no
// timezone conversion happens anywhere. Use Naive to bring "now" into the
// same frame before comparing.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format hints which shape a source uses. Auto tries every shape.
type Format int

const (
	Auto          Format = iota
	DayMonthName         // "05-Jan-2024 10:30:00", "5 Jan 24"
	DaySlashMonth        // "05/01/2024"
	ISO                  // "2024-01-05", "2024-01-05T10:30:00"
)

// ParseFormat maps a config string to a Format. Unknown strings are Auto.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dd-mmm-yyyy", "dd mmm yyyy", "day-month-name":
		return DayMonthName
	case "dd/mm/yyyy", "day/month/year":
		return DaySlashMonth
	case "iso", "yyyy-mm-dd":
		return ISO
	}
	return Auto
}

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var (
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})[ -]([A-Za-z]{3})[ -](\d{2}|\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	slashRe    = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[ T](\d{2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?)?(Z|[+-]\d{2}:?\d{2})?$`)
)

// Normalizer parses dates. Century is added to two-digit years; the zero
// value uses 2000, so "24" means 2024 with no windowing.
type Normalizer struct {
	Century int
}

var std Normalizer

// Parse parses raw with the default Normalizer.
func Parse(raw string, hint Format) (time.Time, bool) {
	return std.Parse(raw, hint)
}

// Parse returns the instant raw denotes. ok is false for blank, malformed or
// unrecognised input, including impossible calendar dates and unknown month
// abbreviations.
func (n Normalizer) Parse(raw string, hint Format) (t time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	switch hint {
	case DayMonthName:
		return n.dayMonth(s)
	case DaySlashMonth:
		return n.slash(s)
	case ISO:
		return iso(s)
	}
	if t, ok := iso(s); ok {
		return t, true
	}
	if t, ok := n.dayMonth(s); ok {
		return t, true
	}
	return n.slash(s)
}

func (n Normalizer) year(s string) int {
	y, _ := strconv.Atoi(s)
	if len(s) == 2 {
		c := n.Century
		if c == 0 {
			c = 2000
		}
		y += c
	}
	return y
}

func (n Normalizer) dayMonth(s string) (time.Time, bool) {
	m := dayMonthRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	mon, ok := months[strings.ToLower(m[2])]
	if !ok {
		return time.Time{}, false
	}
	d, _ := strconv.Atoi(m[1])
	return build(n.year(m[3]), mon, d, m[4], m[5], m[6])
}

func (n Normalizer) slash(s string) (time.Time, bool) {
	m := slashRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	d, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	return build(n.year(m[3]), time.Month(mon), d, m[4], m[5], m[6])
}

func iso(s string) (time.Time, bool) {
	m := isoRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mon, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	// A trailing zone designator is accepted but ignored: the wall clock is
	// what the feed published.
	return build(y, time.Month(mon), d, m[4], m[5], m[6])
}

func build(y int, mon time.Month, d int, hh, mm, ss string) (time.Time, bool) {
	h, mi, sec := 0, 0, 0
	if hh != "" {
		h, _ = strconv.Atoi(hh)
		mi, _ = strconv.Atoi(mm)
		if ss != "" {
			sec, _ = strconv.Atoi(ss)
		}
	}
	if mon < time.January || mon > time.December || h > 23 || mi > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(y, mon, d, h, mi, sec, 0, time.UTC)
	// time.Date normalises 31 Feb into March; reject instead.
	if t.Day() != d || t.Month() != mon {
		return time.Time{}, false
	}
	return t, true
}

// Naive returns t's wall clock in the same UTC-carried frame Parse uses.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
