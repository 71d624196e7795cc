package controller

import (
	"strings"
	"time"

	"enam/internal/dates"
	"enam/internal/fieldmap"
	"enam/internal/filter"
	"enam/internal/paginate"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
)

// DimensionKind is the kind of input a filter dimension reads.
type DimensionKind int

const (
	// Range reads FilterState.Range as a date-range bucket.
	Range DimensionKind = iota
	// Choice reads a single dropdown value from FilterState.Equal.
	Choice
	// Search reads free text from FilterState.Search.
	Search
	// Tokens reads a multi-select from FilterState.Selected.
	Tokens
	// Day reads a calendar-day picker from FilterState.Dates.
	Day
)

// Dimension is one user-facing filter input of a page.
type Dimension struct {
	// Param is the short name used in query strings and CLI flags.
	Param  string
	Field  string
	Kind   DimensionKind
	Format dates.Format
	// Unset is a Choice value meaning "no filter", such as BOTH.
	Unset string
	// AllSelected starts a Tokens dimension with every option selected.
	AllSelected bool
}

// Scope restricts a page to records relating to the user's portfolio.
type Scope struct {
	Field string
	Mode  filter.MatchMode
}

// Pipeline is the declarative description of one page's data path:
// where records come from, how they are renamed and pre-filtered, and which
// filter inputs the user has.
type Pipeline struct {
	Name    string
	Locator source.Locator
	Mapping fieldmap.Mapping
	// Base predicates run once per load, after mapping.
	Base  []filter.Predicate
	Scope *Scope
	// LoadSort orders the loaded set once, e.g. newest first for feeds.
	LoadSort render.Sort
	// Sort orders the filtered set before it is paged. Table surfaces start
	// with it as their sort.
	Sort render.Sort
	// Columns carries kinds, titles and hints for the derived columns,
	// matched by key. Unlisted fields render as plain text.
	Columns    []render.Column
	Dimensions []Dimension
	// PageSize is the default page size; zero means unpaginated.
	PageSize     int
	DefaultRange filter.Bucket
}

// Dimension returns the dimension with the given param.
func (p *Pipeline) Dimension(param string) (Dimension, bool) {
	for _, d := range p.Dimensions {
		if d.Param == param {
			return d, true
		}
	}
	return Dimension{}, false
}

// InitialFilters returns the filter state a page starts with and returns to
// on Reset. options supplies the values AllSelected dimensions start with.
func (p *Pipeline) InitialFilters(options map[string][]string) FilterState {
	fs := FilterState{Range: p.DefaultRange}
	for _, d := range p.Dimensions {
		if d.Kind == Tokens && d.AllSelected {
			fs.setSelected(d.Field, options[d.Field])
		}
	}
	return fs
}

// Predicates turns the filter state into predicates. now fixes date-range
// cutoffs.
func (p *Pipeline) Predicates(fs FilterState, now time.Time) []filter.Predicate {
	preds := make([]filter.Predicate, 0, len(p.Dimensions))
	for _, d := range p.Dimensions {
		switch d.Kind {
		case Range:
			preds = append(preds, filter.NewDateRange(d.Field, d.Format, fs.Range, now))
		case Choice:
			v := fs.Equal[d.Field]
			if d.Unset != "" && strings.EqualFold(strings.TrimSpace(v), d.Unset) {
				v = ""
			}
			preds = append(preds, filter.Equal{Field: d.Field, Value: v})
		case Search:
			preds = append(preds, filter.Contains{Field: d.Field, Query: fs.Search[d.Field]})
		case Tokens:
			preds = append(preds, filter.NewInSet(d.Field, fs.Selected[d.Field]))
		case Day:
			preds = append(preds, filter.OnDate{Field: d.Field, Format: d.Format, Day: fs.Dates[d.Field]})
		}
	}
	return preds
}

// Options returns the sorted distinct values of every Choice and Tokens
// dimension.
func (p *Pipeline) Options(all []record.Record) map[string][]string {
	out := make(map[string][]string)
	for _, d := range p.Dimensions {
		if d.Kind == Choice || d.Kind == Tokens {
			out[d.Field] = record.Distinct(all, d.Field)
		}
	}
	return out
}

// Prepare maps freshly fetched records and applies the base predicates,
// the portfolio scope and the load sort. The result is the page's "all"
// set.
func (p *Pipeline) Prepare(fetched []record.Record, members filter.Set) ([]record.Record, []render.Column) {
	mapped := fieldmap.Map(fetched, p.Mapping)
	preds := append([]filter.Predicate(nil), p.Base...)
	if p.Scope != nil {
		preds = append(preds, filter.Membership{Field: p.Scope.Field, Set: members, Mode: p.Scope.Mode})
	}
	all := filter.Apply(mapped, preds...)

	keys := fieldmap.Columns(mapped, p.Mapping)
	cols := make([]render.Column, len(keys))
	for i, k := range keys {
		if c, ok := render.Find(p.Columns, k); ok {
			cols[i] = c
		} else {
			cols[i] = render.Column{Key: k, Title: k}
		}
	}
	if p.LoadSort.Column != "" {
		all = render.SortRecords(all, p.LoadSort, cols)
	}
	return all, cols
}

// Result is one computed view of a dataset.
type Result struct {
	Filtered   []record.Record
	Visible    []record.Record
	Page       int
	PageSize   int
	TotalPages int
}

// Compute filters all by fs, orders the matches by order (p.Sort when order
// is empty) and slices out the requested page, clamped to range. A size of
// zero disables pagination. It never modifies all.
func (p *Pipeline) Compute(all []record.Record, fs FilterState, order render.Sort, page, size int, now time.Time) Result {
	filtered := filter.Apply(all, p.Predicates(fs, now)...)
	if order.Column == "" {
		order = p.Sort
	}
	if order.Column != "" {
		filtered = render.SortRecords(filtered, order, p.Columns)
	}
	if size <= 0 {
		return Result{Filtered: filtered, Visible: filtered, Page: 1, TotalPages: 1}
	}
	page = paginate.Clamp(page, len(filtered), size)
	return Result{
		Filtered:   filtered,
		Visible:    paginate.Slice(filtered, page, size),
		Page:       page,
		PageSize:   size,
		TotalPages: paginate.TotalPages(len(filtered), size),
	}
}
