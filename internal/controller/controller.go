// Package controller owns one page's dataset and filter state and drives
// the fetch → map → filter → paginate → render path.
//
// Every filter-input event is a Change passed to Dispatch. Loads are
// guarded by a monotonically increasing token: a response tagged with an
// older token than the latest BeginLoad is discarded.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"enam/internal/paginate"
	"enam/internal/portfolio"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
)

// ErrStaleLoad is returned by Load when a newer load superseded it.
var ErrStaleLoad = errors.New("load superseded by a newer one")

// Loaded is the outcome of one fetch, tagged with the token it was started
// under.
type Loaded struct {
	Token   uint64
	Records []record.Record
	Members portfolio.Membership
	Err     error
}

// pager is implemented by surfaces that draw a page-button strip.
type pager interface {
	SetPage(current, total int)
}

// Controller drives one page. It is safe for concurrent use; Dispatch and
// CompleteLoad serialize on an internal lock.
type Controller struct {
	pipe    *Pipeline
	src     source.Source
	folio   portfolio.Service
	surface render.Surface
	log     *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	token   uint64
	loaded  bool
	err     error
	data    DatasetState
	filters FilterState
	order   render.Sort
	cols    []render.Column
	options map[string][]string
	members portfolio.Membership
}

// New creates a controller. folio may be nil for pages without a portfolio
// scope; surface may be nil when the caller only reads state.
func New(pipe *Pipeline, src source.Source, folio portfolio.Service, surface render.Surface, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		pipe:    pipe,
		src:     src,
		folio:   folio,
		surface: surface,
		log:     log.With("page", pipe.Name),
		now:     time.Now,
		data:    DatasetState{CurrentPage: 1, PageSize: pipe.PageSize},
		filters: pipe.InitialFilters(nil),
		options: map[string][]string{},
	}
}

// SetClock overrides time.Now for date-range cutoffs.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Pipeline returns the page description.
func (c *Controller) Pipeline() *Pipeline { return c.pipe }

// BeginLoad starts a load and returns its token.
func (c *Controller) BeginLoad() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token++
	return c.token
}

// Fetch retrieves the dataset and, for portfolio-scoped pages, the
// membership concurrently. It does not touch controller state, so it can
// run on a background goroutine.
func (c *Controller) Fetch(ctx context.Context, token uint64) Loaded {
	out := Loaded{Token: token}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := c.src.Fetch(gctx, c.pipe.Locator)
		if err != nil {
			return err
		}
		out.Records = recs
		return nil
	})
	if c.pipe.Scope != nil {
		g.Go(func() error {
			if c.folio == nil {
				return fmt.Errorf("page %s: %w: no portfolio service", c.pipe.Name, source.ErrSourceUnavailable)
			}
			m, err := portfolio.Fetch(gctx, c.folio)
			if err != nil {
				return err
			}
			out.Members = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Loaded{Token: token, Err: err}
	}
	return out
}

// CompleteLoad installs a fetch result and renders. It returns false and
// leaves state untouched when l is stale.
func (c *Controller) CompleteLoad(l Loaded) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.Token != c.token {
		c.log.Debug("discarding stale load", "token", l.Token, "latest", c.token)
		return false
	}
	if l.Err != nil {
		c.err = l.Err
		c.loaded = false
		c.data.All, c.data.Filtered = nil, nil
		c.log.Warn("load failed", "error", l.Err)
		if es, ok := c.surface.(render.ErrorShower); ok {
			es.ShowError(l.Err)
		}
		return true
	}

	all, cols := c.pipe.Prepare(l.Records, l.Members)
	c.err = nil
	c.loaded = true
	c.members = l.Members
	c.cols = cols
	c.data.All = all
	c.options = c.pipe.Options(all)
	for _, d := range c.pipe.Dimensions {
		if d.Kind == Tokens && d.AllSelected {
			c.filters.setSelected(d.Field, c.options[d.Field])
		}
	}
	c.log.Info("page loaded", "fetched", len(l.Records), "records", len(all))
	c.refilter(true)
	return true
}

// Load runs BeginLoad, Fetch and CompleteLoad in sequence.
func (c *Controller) Load(ctx context.Context) error {
	token := c.BeginLoad()
	l := c.Fetch(ctx, token)
	if !c.CompleteLoad(l) {
		return ErrStaleLoad
	}
	return l.Err
}

// Dispatch applies one filter-input change. Everything except GotoPage
// refilters and returns to page 1; GotoPage only moves the (clamped) page.
func (c *Controller) Dispatch(ch Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ch.Kind {
	case SetRange:
		c.filters.Range = ch.Bucket
	case SetEqual:
		c.filters.setEqual(ch.Field, ch.Value)
	case SetSearch:
		c.filters.setSearch(ch.Field, ch.Value)
	case SetSelection:
		c.filters.setSelected(ch.Field, ch.Values)
	case ToggleToken:
		c.filters.toggle(ch.Field, ch.Value)
	case SelectAll:
		c.filters.setSelected(ch.Field, c.options[ch.Field])
	case ClearSelection:
		c.filters.setSelected(ch.Field, nil)
	case SetDate:
		c.filters.setDate(ch.Field, ch.Day)
	case SetPageSize:
		if ch.Size <= 0 {
			return
		}
		c.data.PageSize = ch.Size
	case GotoPage:
		page := ch.Page
		if page == 0 {
			page = c.data.CurrentPage + ch.Step
		}
		c.data.CurrentPage = page
		c.refilter(false)
		return
	case SetSort:
		c.order = ch.Sort
	case Reset:
		c.filters = c.pipe.InitialFilters(c.options)
		c.data.PageSize = c.pipe.PageSize
		c.order = render.Sort{}
	}
	c.refilter(true)
}

// refilter recomputes Filtered from All and renders. Callers hold mu.
func (c *Controller) refilter(resetPage bool) {
	if resetPage {
		c.data.CurrentPage = 1
	}
	if !c.loaded {
		return
	}
	res := c.pipe.Compute(c.data.All, c.filters, c.order, c.data.CurrentPage, c.data.PageSize, c.now())
	c.data.Filtered = res.Filtered
	c.data.CurrentPage = res.Page
	if c.surface == nil {
		return
	}
	if p, ok := c.surface.(pager); ok {
		total := res.TotalPages
		if c.data.PageSize <= 0 {
			total = 0
		}
		p.SetPage(res.Page, total)
	}
	if err := c.surface.Render(res.Visible, c.cols); err != nil {
		c.log.Warn("render failed", "error", err)
	}
}

// Dataset returns a copy of the dataset state header; the record slices are
// shared and must not be modified.
func (c *Controller) Dataset() DatasetState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// Order returns the sort last set by a SetSort change; empty means the
// pipeline's own Sort.
func (c *Controller) Order() render.Sort {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order
}

// Filters returns a copy of the current filter state.
func (c *Controller) Filters() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters.Clone()
}

// Options returns the sorted distinct values offered for field.
func (c *Controller) Options(field string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options[field]
}

// Columns returns the display columns of the loaded set.
func (c *Controller) Columns() []render.Column {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cols
}

// Members returns the portfolio snapshot of the last successful load.
func (c *Controller) Members() portfolio.Membership {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.members
}

// Visible returns the records on the current page.
func (c *Controller) Visible() []record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return paginate.Slice(c.data.Filtered, c.data.CurrentPage, c.data.PageSize)
}

// TotalPages returns the page count of the filtered set.
func (c *Controller) TotalPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return paginate.TotalPages(len(c.data.Filtered), c.data.PageSize)
}

// Loaded reports whether a load has succeeded and no later load failed.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Err returns the error of the last completed load, if it failed.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
