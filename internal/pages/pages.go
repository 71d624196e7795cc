// Package pages is the catalogue of dashboard pages: where each page's
// data comes from, how it is shaped and filtered, and which surface shows
// it.
package pages

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"enam/internal/config"
	"enam/internal/controller"
	"enam/internal/dates"
	"enam/internal/fieldmap"
	"enam/internal/filter"
	"enam/internal/paginate"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
)

// Layout is how a page presents its records.
type Layout string

const (
	Table   Layout = "table"
	Cards   Layout = "cards"
	Grouped Layout = "grouped"
	Feed    Layout = "feed"
	Chart   Layout = "chart"
)

// Page is one dashboard page.
type Page struct {
	controller.Pipeline
	Title  string
	Layout Layout
	// PageSizes are the sizes a paginated page offers.
	PageSizes []int

	cards  render.CardGrid
	group  string
	rowTag func(record.Record) string
	feed   render.Feed
	chart  render.BarChart
}

// HTML returns a fresh HTML surface for the page.
func (p *Page) HTML(now func() time.Time) render.Surface {
	switch p.Layout {
	case Cards:
		g := p.cards
		return &g
	case Grouped:
		return &render.GroupedTable{Key: p.group, RowClass: p.rowTag, Now: now}
	case Feed:
		f := p.feed
		f.Now = now
		return &f
	}
	return &render.HTMLTable{ID: p.Name, Sort: p.Sort, Now: now}
}

// Text returns a fresh plain-terminal surface: a bar chart for chart
// pages, a markdown table otherwise.
func (p *Page) Text(now func() time.Time) render.Surface {
	if p.Layout == Chart {
		c := p.chart
		return &c
	}
	return &render.Markdown{Sort: p.Sort, Now: now}
}

// Live returns a fresh interactive surface for the terminal dashboard.
func (p *Page) Live(now func() time.Time) render.Surface {
	if p.Layout == Chart {
		c := p.chart
		return &c
	}
	size := p.PageSize
	if size <= 0 {
		size = 10
	}
	t := render.NewLiveTable(p.Sort, size)
	t.Now = now
	return t
}

// Catalogue is an ordered set of pages.
type Catalogue struct {
	pages []*Page
}

// Pages returns the pages in menu order.
func (c *Catalogue) Pages() []*Page { return c.pages }

// Names returns the page names in menu order.
func (c *Catalogue) Names() []string {
	out := make([]string, len(c.pages))
	for i, p := range c.pages {
		out[i] = p.Name
	}
	return out
}

// Lookup finds a page by name.
func (c *Catalogue) Lookup(name string) (*Page, bool) {
	for _, p := range c.pages {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Apply replaces parts of the built-in pages with config overrides.
func (c *Catalogue) Apply(overrides map[string]config.PageOverride) error {
	names := make([]string, 0, len(overrides))
	for n := range overrides {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		o := overrides[name]
		p, ok := c.Lookup(name)
		if !ok {
			return fmt.Errorf("config: unknown page %q", name)
		}
		if o.Kind != "" {
			p.Locator = source.Locator{Kind: source.Kind(strings.ToLower(o.Kind))}
		}
		setIf(&p.Locator.URL, o.URL)
		setIf(&p.Locator.Path, o.Path)
		setIf(&p.Locator.JSONPath, o.JSONPath)
		setIf(&p.Locator.Delimiter, o.Delimiter)
		setIf(&p.Locator.Table, o.Table)
		setIf(&p.Locator.Query, o.Query)
		if o.Mapping != "" {
			m, err := fieldmap.Parse(o.Mapping)
			if err != nil {
				return fmt.Errorf("config: page %s: %w", name, err)
			}
			p.Mapping = m
		}
		if o.PageSize > 0 {
			p.PageSize = o.PageSize
		}
		if o.SortBy != "" {
			p.Sort.Column = o.SortBy
			if p.LoadSort.Column != "" {
				p.LoadSort.Column = o.SortBy
			}
		}
		if o.SortDesc != nil {
			p.Sort.Desc = *o.SortDesc
			if p.LoadSort.Column != "" {
				p.LoadSort.Desc = *o.SortDesc
			}
		}
		if o.MatchMode != "" {
			if p.Scope == nil {
				return fmt.Errorf("config: page %s: match_mode needs a portfolio-scoped page", name)
			}
			p.Scope.Mode = filter.ParseMatchMode(o.MatchMode)
		}
		if o.DateFormat != "" {
			p.setDateFormat(dates.ParseFormat(o.DateFormat))
		}
	}
	return nil
}

// setDateFormat applies f to every date dimension and date column.
func (p *Page) setDateFormat(f dates.Format) {
	for i, d := range p.Dimensions {
		if d.Kind == controller.Range || d.Kind == controller.Day {
			p.Dimensions[i].Format = f
		}
	}
	for i, c := range p.Columns {
		if c.Kind == render.Date || c.Kind == render.RelativeTime {
			p.Columns[i].Format = f
		}
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Default returns the built-in catalogue. Each call returns fresh pages.
func Default() *Catalogue {
	return &Catalogue{pages: []*Page{
		corpActions(),
		announcements(),
		insider(),
		deals("block-deals", "Block Deals", "block_deals.csv"),
		deals("bulk-deals", "Bulk Deals", "bulk_deals.csv"),
		news(),
		mutualFunds(),
		volume("volume-trading", "Trading Volume Deviation", "trd_deviation.parquet", "AVG_TTL_TRD_QNTY", "NEW_TTL_TRD_QNTY"),
		volume("volume-delivery", "Delivery Volume Deviation", "deliv_deviation.parquet", "AVG_DELIV_QTY", "NEW_DELIV_QTY"),
	}}
}

func rangeDim(field string, f dates.Format) controller.Dimension {
	return controller.Dimension{Param: "range", Field: field, Kind: controller.Range, Format: f}
}

func corpActions() *Page {
	const sec = "Security Name"
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    "corp-actions",
			Locator: source.Locator{Kind: source.CSV, Path: "corp_actions.csv"},
			Scope:   &controller.Scope{Field: sec, Mode: filter.Exact},
			Columns: []render.Column{
				{Key: "Ex Date", Title: "Ex Date", Kind: render.Date, Format: dates.DayMonthName},
				{Key: "Record Date", Title: "Record Date", Kind: render.Date, Format: dates.DayMonthName},
			},
			Dimensions: []controller.Dimension{
				{Param: "security", Field: sec, Kind: controller.Tokens},
				{Param: "ex_date", Field: "Ex Date", Kind: controller.Day, Format: dates.DayMonthName},
				{Param: "record_date", Field: "Record Date", Kind: controller.Day, Format: dates.DayMonthName},
			},
		},
		Title:  "Corporate Actions",
		Layout: Cards,
		cards: render.CardGrid{
			Title: sec,
			Lines: []render.CardLine{
				{Label: "Ex Date", Field: "Ex Date", Short: true},
				{Label: "Record Date", Field: "Record Date", Short: true},
				{Field: "Purpose"},
			},
			Hidden: []string{"Security Code", "Purpose"},
			Bare:   []string{"Company Name"},
		},
	}
}

var timeDesc = render.Sort{Column: "Time", Desc: true}

func announcements() *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    "announcements",
			Locator: source.Locator{Kind: source.JSON, URL: "/api/announcements"},
			Mapping: fieldmap.Mapping{
				{Source: "symbol", Display: "Stock"},
				{Source: "sm_name", Display: "Company"},
				{Source: "desc", Display: "Subject"},
				{Source: "attchmntText", Display: "Details"},
				{Source: "an_dt", Display: "Time"},
				{Source: "attchmntFile", Display: "Attachment"},
			},
			Columns: []render.Column{
				{Key: "Stock", Title: "Stock", NoWrap: true},
				{Key: "Time", Title: "Time", Kind: render.Date, Format: dates.DayMonthName, NoWrap: true},
				{Key: "Attachment", Title: "Attachment", Kind: render.Link, NoWrap: true},
			},
			Dimensions:   []controller.Dimension{rangeDim("Time", dates.DayMonthName)},
			DefaultRange: filter.AllTime,
			Sort:         timeDesc,
		},
		Title:  "Announcements",
		Layout: Table,
	}
}

func insider() *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    "insider",
			Locator: source.Locator{Kind: source.JSON, URL: "/api/insider"},
			Mapping: fieldmap.Mapping{
				{Source: "symbol", Display: "Stock"},
				{Source: "company", Display: "Company"},
				{Source: "acqName", Display: "Acquirer"},
				{Source: "personCategory", Display: "Category"},
				{Source: "tdpTransactionType", Display: "Type"},
				{Source: "secAcq", Display: "Amount"},
				{Source: "secVal", Display: "Value"},
				{Source: "date", Display: "Time"},
				{Source: "xbrl", Display: "Attachment"},
			},
			Columns: []render.Column{
				{Key: "Stock", Title: "Stock", NoWrap: true},
				{Key: "Amount", Title: "Amount", Kind: render.Number, NoWrap: true},
				{Key: "Value", Title: "Value", Kind: render.Number, NoWrap: true},
				{Key: "Time", Title: "Time", Kind: render.Date, Format: dates.DayMonthName, NoWrap: true},
				{Key: "Attachment", Title: "Attachment", Kind: render.Link, NoWrap: true},
			},
			Dimensions:   []controller.Dimension{rangeDim("Time", dates.DayMonthName)},
			DefaultRange: filter.AllTime,
			Sort:         timeDesc,
		},
		Title:  "Insider Trading",
		Layout: Table,
	}
}

func deals(name, title, file string) *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    name,
			Locator: source.Locator{Kind: source.CSV, Path: file},
			Columns: []render.Column{
				{Key: "Deal Date", Title: "Deal Date", Kind: render.Date, Format: dates.DaySlashMonth, NoWrap: true},
				{Key: "Quantity", Title: "Quantity", Kind: render.Number},
				{Key: "Price", Title: "Price", Kind: render.Number},
			},
			Dimensions: []controller.Dimension{
				rangeDim("Deal Date", dates.DaySlashMonth),
				{Param: "exchange", Field: "Source", Kind: controller.Choice, Unset: "BOTH"},
			},
			DefaultRange: filter.AllTime,
			Sort:         render.Sort{Column: "Deal Date"},
		},
		Title:  title,
		Layout: Table,
	}
}

func news() *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:     "news",
			Locator:  source.Locator{Kind: source.CSV, Path: "news_repository.csv"},
			Base:     []filter.Predicate{filter.Required{"Time", "Headline"}},
			LoadSort: timeDesc,
			Columns: []render.Column{
				{Key: "Time", Title: "Time", Kind: render.RelativeTime},
				{Key: "Link", Title: "Link", Kind: render.Link},
			},
			Dimensions: []controller.Dimension{
				{Param: "source", Field: "Source", Kind: controller.Choice},
				{Param: "category", Field: "Category", Kind: controller.Choice},
				{Param: "q", Field: "Headline", Kind: controller.Search},
			},
			PageSize: 50,
			Sort:     timeDesc,
		},
		Title:     "News",
		Layout:    Feed,
		PageSizes: paginate.PageSizes,
		feed: render.Feed{
			Headline: "Headline",
			Link:     "Link",
			Source:   "Source",
			Category: "Category",
			Time:     "Time",
		},
	}
}

func mutualFunds() *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    "mutual-funds",
			Locator: source.Locator{Kind: source.SQLite, Path: "enam.db", Table: "mutual_funds"},
			Mapping: fieldmap.Mapping{
				{Source: "Stock", Display: "Stock"},
				{Source: "Fund", Display: "Fund"},
				{Source: "Buy", Display: "Buy"},
				{Source: "Sell", Display: "Sell"},
			},
			Base: []filter.Predicate{
				filter.Required{"Stock", "Fund"},
				filter.AnyNumber{"Buy", "Sell"},
			},
			Columns: []render.Column{
				{Key: "Buy", Title: "Buy", Kind: render.Number},
				{Key: "Sell", Title: "Sell", Kind: render.Number},
			},
			Dimensions: []controller.Dimension{
				{Param: "stock", Field: "Stock", Kind: controller.Tokens},
				{Param: "fund", Field: "Fund", Kind: controller.Tokens, AllSelected: true},
			},
		},
		Title:  "Mutual Fund Activity",
		Layout: Grouped,
		group:  "Stock",
		rowTag: buySell,
	}
}

func buySell(r record.Record) string {
	if _, ok := r.Get("Buy").Decimal(); ok {
		return "hover-green"
	}
	if _, ok := r.Get("Sell").Decimal(); ok {
		return "hover-red"
	}
	return ""
}

func volume(name, title, file, avg, actual string) *Page {
	return &Page{
		Pipeline: controller.Pipeline{
			Name:    name,
			Locator: source.Locator{Kind: source.Parquet, Path: file},
			Scope:   &controller.Scope{Field: "SYMBOL", Mode: filter.Exact},
			Base:    []filter.Predicate{filter.Required{avg}},
			Columns: []render.Column{
				{Key: avg, Title: avg, Kind: render.Number},
				{Key: actual, Title: actual, Kind: render.Number},
				{Key: "PCT_DEVIATION", Title: "PCT_DEVIATION", Kind: render.Number},
			},
			Dimensions: []controller.Dimension{
				{Param: "symbol", Field: "SYMBOL", Kind: controller.Tokens},
			},
		},
		Title:  title,
		Layout: Chart,
		chart:  render.BarChart{Symbol: "SYMBOL", Avg: avg, Actual: actual, Pct: "PCT_DEVIATION"},
	}
}
