// Package render turns filtered records into something visible: HTML
// tables, card grids, grouped tables, bar charts, markdown and a live
// terminal table.
//
// Every surface implements Surface. Render fully replaces whatever the
// surface showed before; zero records produce the Placeholder text.
package render

import (
	"sort"
	"strings"
	"time"

	"enam/internal/dashboard"
	"enam/internal/dates"
	"enam/internal/record"
)

// Placeholder is shown instead of an empty table.
const Placeholder = "No records found."

// Kind controls how a column's cells are compared and displayed.
type Kind int

const (
	Text Kind = iota
	// Link cells hold a URL and render as an attachment link.
	Link
	Number
	Date
	// RelativeTime cells are dates displayed as "3 hours ago".
	RelativeTime
)

// ParseKind maps a config string to a Kind.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "link", "attachment":
		return Link
	case "number":
		return Number
	case "date":
		return Date
	case "relative", "relative_time", "timeago":
		return RelativeTime
	}
	return Text
}

// Column describes one displayed field.
type Column struct {
	Key    string
	Title  string
	Kind   Kind
	Format dates.Format
	// NoWrap asks the surface to keep the cell on one line.
	NoWrap bool
	// Cell overrides the default text for the column.
	Cell func(record.Record) string
}

// Header returns the column title, falling back to its key.
func (c Column) Header() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Key
}

// Text returns the display text of c for r. Blank values render as "".
func (c Column) Text(r record.Record, now time.Time) string {
	if c.Cell != nil {
		return c.Cell(r)
	}
	v := r.Get(c.Key)
	if v.IsBlank() {
		return ""
	}
	switch c.Kind {
	case Number:
		if d, ok := v.Decimal(); ok {
			return dashboard.FormatIndian(d)
		}
	case RelativeTime:
		if t, ok := dates.Parse(v.String(), c.Format); ok {
			return dates.TimeAgo(t, dates.Naive(now))
		}
	}
	return strings.TrimSpace(v.String())
}

// Columns builds plain text columns for keys.
func Columns(keys []string) []Column {
	cols := make([]Column, len(keys))
	for i, k := range keys {
		cols[i] = Column{Key: k, Title: k}
	}
	return cols
}

// Find returns the column with the given key or title.
func Find(cols []Column, key string) (Column, bool) {
	for _, c := range cols {
		if c.Key == key || c.Title == key {
			return c, true
		}
	}
	return Column{}, false
}

// Sort is a sort column and direction. An empty Column means input order.
type Sort struct {
	Column string `yaml:"column" json:"column,omitempty"`
	Desc   bool   `yaml:"desc" json:"desc,omitempty"`
}

// SortRecords returns a sorted copy of records. Date, relative-time and
// number columns compare by value; everything else by normalized text.
// Blank and unparsable cells sort last in either direction, and ties keep
// input order.
func SortRecords(records []record.Record, s Sort, cols []Column) []record.Record {
	out := make([]record.Record, len(records))
	copy(out, records)
	if s.Column == "" {
		return out
	}
	col, ok := Find(cols, s.Column)
	if !ok {
		col = Column{Key: s.Column}
	}

	keys := make([]sortKey, len(out))
	for i, r := range out {
		keys[i] = makeKey(col, r)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if !ka.ok || !kb.ok {
			return ka.ok && !kb.ok
		}
		c := ka.compare(kb)
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
	sorted := make([]record.Record, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

type sortKey struct {
	ok   bool
	kind Kind
	text string
	t    time.Time
	num  float64
}

func makeKey(c Column, r record.Record) sortKey {
	v := r.Get(c.Key)
	if v.IsBlank() {
		return sortKey{}
	}
	switch c.Kind {
	case Date, RelativeTime:
		t, ok := dates.Parse(v.String(), c.Format)
		return sortKey{ok: ok, kind: Date, t: t}
	case Number:
		d, ok := v.Decimal()
		f, _ := d.Float64()
		return sortKey{ok: ok, kind: Number, num: f}
	}
	return sortKey{ok: true, kind: Text, text: v.Norm()}
}

func (k sortKey) compare(o sortKey) int {
	switch k.kind {
	case Date:
		return k.t.Compare(o.t)
	case Number:
		switch {
		case k.num < o.num:
			return -1
		case k.num > o.num:
			return 1
		}
		return 0
	}
	return strings.Compare(k.text, o.text)
}

// Surface is anywhere records become visible. Render replaces the previous
// content; calling it twice with the same input has the same effect as
// calling it once.
type Surface interface {
	Render(records []record.Record, cols []Column) error
}

// ErrorShower is implemented by surfaces that can display a load failure.
type ErrorShower interface {
	ShowError(err error)
}

func nowOr(f func() time.Time) time.Time {
	if f != nil {
		return f()
	}
	return time.Now()
}
