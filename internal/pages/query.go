package pages

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"enam/internal/controller"
	"enam/internal/dates"
	"enam/internal/filter"
)

// Query is a filter request against one page, as carried in URLs and CLI
// flags.
type Query struct {
	Filters controller.FilterState
	Page    int
	Size    int
}

// ParseQuery reads filters from query parameters named after the page's
// dimensions, plus page and size. Token parameters may repeat or hold a
// comma-separated list. Unknown parameters are ignored.
func (p *Page) ParseQuery(v url.Values) (Query, error) {
	q := Query{Filters: p.InitialFilters(nil), Page: 1, Size: p.PageSize}
	for _, d := range p.Dimensions {
		raw, ok := v[d.Param]
		if !ok || len(raw) == 0 {
			continue
		}
		first := strings.TrimSpace(raw[0])
		switch d.Kind {
		case controller.Range:
			b, err := filter.ParseBucket(first)
			if err != nil {
				return Query{}, err
			}
			q.Filters.Range = b
		case controller.Choice:
			setKey(&q.Filters.Equal, d.Field, first)
		case controller.Search:
			setKey(&q.Filters.Search, d.Field, first)
		case controller.Tokens:
			var toks []string
			for _, r := range raw {
				for _, t := range strings.Split(r, ",") {
					if t = strings.TrimSpace(t); t != "" {
						toks = append(toks, t)
					}
				}
			}
			if q.Filters.Selected == nil {
				q.Filters.Selected = map[string][]string{}
			}
			q.Filters.Selected[d.Field] = toks
		case controller.Day:
			if first == "" {
				continue
			}
			day, ok := dates.Parse(first, dates.Auto)
			if !ok {
				return Query{}, fmt.Errorf("%s: unrecognized date %q", d.Param, first)
			}
			if q.Filters.Dates == nil {
				q.Filters.Dates = map[string]time.Time{}
			}
			q.Filters.Dates[d.Field] = day
		}
	}
	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Query{}, fmt.Errorf("page: %w", err)
		}
		q.Page = n
	}
	if s := v.Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return Query{}, fmt.Errorf("size: must be a positive integer, got %q", s)
		}
		if len(p.PageSizes) > 0 && !slices.Contains(p.PageSizes, n) {
			return Query{}, fmt.Errorf("size: %d is not one of %v", n, p.PageSizes)
		}
		q.Size = n
	}
	return q, nil
}

func setKey(m *map[string]string, k, v string) {
	if *m == nil {
		*m = map[string]string{}
	}
	(*m)[k] = v
}

// Encode is the inverse of ParseQuery.
func (p *Page) Encode(q Query) url.Values {
	v := url.Values{}
	for _, d := range p.Dimensions {
		switch d.Kind {
		case controller.Range:
			if q.Filters.Range != "" && q.Filters.Range != filter.AllTime {
				v.Set(d.Param, string(q.Filters.Range))
			}
		case controller.Choice:
			if s := q.Filters.Equal[d.Field]; s != "" {
				v.Set(d.Param, s)
			}
		case controller.Search:
			if s := q.Filters.Search[d.Field]; s != "" {
				v.Set(d.Param, s)
			}
		case controller.Tokens:
			for _, t := range q.Filters.Selected[d.Field] {
				v.Add(d.Param, t)
			}
		case controller.Day:
			if t, ok := q.Filters.Dates[d.Field]; ok && !t.IsZero() {
				v.Set(d.Param, t.Format("2006-01-02"))
			}
		}
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 && q.Size != p.PageSize {
		v.Set("size", strconv.Itoa(q.Size))
	}
	return v
}
