package controller

import (
	"maps"
	"slices"
	"strings"
	"time"

	"enam/internal/filter"
	"enam/internal/record"
	"enam/internal/render"
)

// DatasetState is one page's loaded data. All is replaced only by a load;
// Filtered is recomputed from All on every filter change.
type DatasetState struct {
	All         []record.Record
	Filtered    []record.Record
	CurrentPage int
	PageSize    int
}

// FilterState holds the current filter inputs, keyed by record field.
type FilterState struct {
	Range    filter.Bucket
	Equal    map[string]string
	Search   map[string]string
	Selected map[string][]string
	Dates    map[string]time.Time
}

// Clone returns a deep copy.
func (fs FilterState) Clone() FilterState {
	out := FilterState{
		Range:  fs.Range,
		Equal:  maps.Clone(fs.Equal),
		Search: maps.Clone(fs.Search),
		Dates:  maps.Clone(fs.Dates),
	}
	if fs.Selected != nil {
		out.Selected = make(map[string][]string, len(fs.Selected))
		for k, v := range fs.Selected {
			out.Selected[k] = slices.Clone(v)
		}
	}
	return out
}

func (fs *FilterState) setEqual(field, v string) {
	if fs.Equal == nil {
		fs.Equal = make(map[string]string)
	}
	fs.Equal[field] = v
}

func (fs *FilterState) setSearch(field, q string) {
	if fs.Search == nil {
		fs.Search = make(map[string]string)
	}
	fs.Search[field] = q
}

func (fs *FilterState) setSelected(field string, vals []string) {
	if fs.Selected == nil {
		fs.Selected = make(map[string][]string)
	}
	fs.Selected[field] = slices.Clone(vals)
}

func (fs *FilterState) setDate(field string, day time.Time) {
	if fs.Dates == nil {
		fs.Dates = make(map[string]time.Time)
	}
	fs.Dates[field] = day
}

// toggle adds token to the selection, or removes it if already present.
func (fs *FilterState) toggle(field, token string) {
	cur := fs.Selected[field]
	n := record.Normalize(token)
	for i, s := range cur {
		if record.Normalize(s) == n {
			fs.setSelected(field, slices.Delete(slices.Clone(cur), i, i+1))
			return
		}
	}
	fs.setSelected(field, append(slices.Clone(cur), strings.TrimSpace(token)))
}

// IsSelected reports whether token is in the selection for field.
func (fs FilterState) IsSelected(field, token string) bool {
	n := record.Normalize(token)
	for _, s := range fs.Selected[field] {
		if record.Normalize(s) == n {
			return true
		}
	}
	return false
}

// ChangeKind identifies a filter-input change.
type ChangeKind int

const (
	SetRange ChangeKind = iota
	SetEqual
	SetSearch
	SetSelection
	ToggleToken
	SelectAll
	ClearSelection
	SetDate
	SetPageSize
	GotoPage
	Reset
	// SetSort reorders the whole filtered set, not just the visible page.
	SetSort
)

// Change is one filter-input event. Only the fields its Kind reads are
// used.
type Change struct {
	Kind   ChangeKind
	Field  string
	Value  string
	Values []string
	Bucket filter.Bucket
	Day    time.Time
	Size   int
	Sort   render.Sort
	// Page is an absolute page for GotoPage; Step moves relative to the
	// current page when Page is zero.
	Page int
	Step int
}

func RangeChange(b filter.Bucket) Change { return Change{Kind: SetRange, Bucket: b} }

func EqualChange(field, value string) Change {
	return Change{Kind: SetEqual, Field: field, Value: value}
}

func SearchChange(field, query string) Change {
	return Change{Kind: SetSearch, Field: field, Value: query}
}

func SelectionChange(field string, values ...string) Change {
	return Change{Kind: SetSelection, Field: field, Values: values}
}

func ToggleChange(field, token string) Change {
	return Change{Kind: ToggleToken, Field: field, Value: token}
}

func DateChange(field string, day time.Time) Change {
	return Change{Kind: SetDate, Field: field, Day: day}
}

func PageSizeChange(n int) Change { return Change{Kind: SetPageSize, Size: n} }

func SortChange(s render.Sort) Change { return Change{Kind: SetSort, Sort: s} }

func Goto(page int) Change { return Change{Kind: GotoPage, Page: page} }

func Prev() Change { return Change{Kind: GotoPage, Step: -1} }

func Next() Change { return Change{Kind: GotoPage, Step: 1} }
