package filter

import (
	"fmt"
	"strings"
	"time"

	"enam/internal/dates"
	"enam/internal/record"
)

// Bucket is a named relative date window.
type Bucket string

const (
	AllTime  Bucket = "all_time"
	OneDay   Bucket = "1day"
	OneWeek  Bucket = "1week"
	OneMonth Bucket = "1month"
)

// Buckets lists the windows in display order.
var Buckets = []Bucket{OneDay, OneWeek, OneMonth, AllTime}

// Label returns the button caption for b.
func (b Bucket) Label() string {
	switch b {
	case OneDay:
		return "1 Day"
	case OneWeek:
		return "1 Week"
	case OneMonth:
		return "1 Month"
	}
	return "All Time"
}

// ParseBucket accepts "1day", "1-day", "1d", "week", ... An empty string is
// AllTime.
func ParseBucket(s string) (Bucket, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "")) {
	case "", "all", "alltime", "all_time":
		return AllTime, nil
	case "1day", "1d", "day":
		return OneDay, nil
	case "1week", "1w", "week":
		return OneWeek, nil
	case "1month", "1m", "month":
		return OneMonth, nil
	}
	return AllTime, fmt.Errorf("unknown date range %q", s)
}

// Cutoff returns the earliest instant b admits, relative to now. The
// one-day window reaches back two days so that yesterday's late filings
// stay visible, and the one-week window reaches back eight. Every page uses
// this single policy. AllTime has no cutoff and returns ok=false.
func (b Bucket) Cutoff(now time.Time) (time.Time, bool) {
	switch b {
	case OneDay:
		return now.AddDate(0, 0, -2), true
	case OneWeek:
		return now.AddDate(0, 0, -8), true
	case OneMonth:
		return now.AddDate(0, -1, 0), true
	}
	return time.Time{}, false
}

// DateRange passes records whose date field falls on or after the bucket's
// cutoff. Records with missing or unparsable dates only pass under AllTime.
type DateRange struct {
	Field  string
	Format dates.Format
	Bucket Bucket

	cutoff time.Time
	active bool
}

// NewDateRange fixes the cutoff against now, which is converted to the naive
// frame dates.Parse returns.
func NewDateRange(field string, format dates.Format, b Bucket, now time.Time) *DateRange {
	cut, ok := b.Cutoff(dates.Naive(now))
	return &DateRange{Field: field, Format: format, Bucket: b, cutoff: cut, active: ok}
}

func (p *DateRange) Active() bool { return p.active }
func (p *DateRange) Cost() int    { return costDate }

func (p *DateRange) Match(r record.Record) bool {
	t, ok := dates.Parse(r.Get(p.Field).String(), p.Format)
	return ok && !t.Before(p.cutoff)
}

// OnDate passes records whose date field is the given calendar day. A zero
// Day is inactive.
type OnDate struct {
	Field  string
	Format dates.Format
	Day    time.Time
}

func (p OnDate) Active() bool { return !p.Day.IsZero() }
func (p OnDate) Cost() int    { return costDate }

func (p OnDate) Match(r record.Record) bool {
	t, ok := dates.Parse(r.Get(p.Field).String(), p.Format)
	return ok && dates.SameDay(t, p.Day)
}

// Equal passes records whose field equals Value after trimming and
// lower-casing both sides. An empty Value is inactive.
type Equal struct {
	Field string
	Value string
}

func (p Equal) Active() bool { return record.Normalize(p.Value) != "" }
func (p Equal) Cost() int    { return costEqual }

func (p Equal) Match(r record.Record) bool {
	v := r.Get(p.Field)
	return !v.IsBlank() && v.Norm() == record.Normalize(p.Value)
}

// InSet passes records whose normalized field value is one of the selected
// values. An empty selection is inactive.
type InSet struct {
	Field    string
	selected map[string]bool
}

// NewInSet builds the predicate, normalizing the selection.
func NewInSet(field string, selected []string) InSet {
	m := make(map[string]bool, len(selected))
	for _, s := range selected {
		if n := record.Normalize(s); n != "" {
			m[n] = true
		}
	}
	return InSet{Field: field, selected: m}
}

func (p InSet) Active() bool { return len(p.selected) > 0 }
func (p InSet) Cost() int    { return costSet }

func (p InSet) Match(r record.Record) bool {
	v := r.Get(p.Field)
	return !v.IsBlank() && p.selected[v.Norm()]
}

// Contains passes records whose field contains Query, case-insensitively.
// An empty Query is inactive.
type Contains struct {
	Field string
	Query string
}

func (p Contains) Active() bool { return record.Normalize(p.Query) != "" }
func (p Contains) Cost() int    { return costContains }

func (p Contains) Match(r record.Record) bool {
	v := r.Get(p.Field)
	return !v.IsBlank() && strings.Contains(strings.ToLower(v.String()), record.Normalize(p.Query))
}

// MatchMode selects how Membership compares values to members.
type MatchMode int

const (
	// Exact requires the normalized value to equal a member.
	Exact MatchMode = iota
	// Substring accepts containment in either direction.
	Substring
)

// ParseMatchMode maps "exact" or "substring" to a MatchMode.
func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), "substring") {
		return Substring
	}
	return Exact
}

// Set is a read-only set of normalized identifiers, such as portfolio
// symbols.
type Set interface {
	Has(normalized string) bool
	Symbols() []string
}

// Membership restricts records to those relating to an externally supplied
// set. It is always active: an empty set matches nothing.
type Membership struct {
	Field string
	Set   Set
	Mode  MatchMode
}

func (p Membership) Active() bool { return true }
func (p Membership) Cost() int    { return costMember }

func (p Membership) Match(r record.Record) bool {
	if p.Set == nil {
		return false
	}
	v := r.Get(p.Field)
	if v.IsBlank() {
		return false
	}
	n := v.Norm()
	if p.Set.Has(n) {
		return true
	}
	if p.Mode != Substring {
		return false
	}
	for _, m := range p.Set.Symbols() {
		if m == "" {
			continue
		}
		if strings.Contains(n, m) || strings.Contains(m, n) {
			return true
		}
	}
	return false
}

// Required passes records where every listed field has a value.
type Required []string

func (p Required) Active() bool { return len(p) > 0 }
func (p Required) Cost() int    { return costSet }

func (p Required) Match(r record.Record) bool {
	for _, f := range p {
		if r.Get(f).IsBlank() {
			return false
		}
	}
	return true
}

// AnyNumber passes records where at least one listed field is numeric.
type AnyNumber []string

func (p AnyNumber) Active() bool { return len(p) > 0 }
func (p AnyNumber) Cost() int    { return costEqual }

func (p AnyNumber) Match(r record.Record) bool {
	for _, f := range p {
		if _, ok := r.Get(f).Decimal(); ok {
			return true
		}
	}
	return false
}
