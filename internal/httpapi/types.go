// Package httpapi serves the dashboard pages over HTTP: filtered datasets as
// JSON, the same views as HTML fragments, and the portfolio endpoints the
// portfolio-scoped pages depend on.
package httpapi

import (
	"time"

	"enam/internal/controller"
	"enam/internal/pages"
	"enam/internal/paginate"
	"enam/internal/portfolio"
	"enam/internal/record"
	"enam/internal/render"
)

// DimensionJSON describes one filter input of a page.
type DimensionJSON struct {
	Param string `json:"param"`
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

// PageInfo describes one page in the catalogue.
type PageInfo struct {
	Name       string          `json:"name"`
	Title      string          `json:"title"`
	Layout     string          `json:"layout"`
	Source     string          `json:"source"`
	Portfolio  bool            `json:"portfolio,omitempty"`
	PageSize   int             `json:"pageSize,omitempty"`
	PageSizes  []int           `json:"pageSizes,omitempty"`
	Sort       render.Sort     `json:"sort"`
	Dimensions []DimensionJSON `json:"dimensions"`
}

// PagesResponse lists the catalogue.
type PagesResponse struct {
	Pages []PageInfo `json:"pages"`
}

// ColumnJSON is one display column.
type ColumnJSON struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	NoWrap bool   `json:"noWrap,omitempty"`
}

// ButtonJSON is one page-strip control.
type ButtonJSON struct {
	Label    string `json:"label"`
	Page     int    `json:"page,omitempty"`
	Active   bool   `json:"active,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// PageResponse is one filtered, paginated view of a page.
type PageResponse struct {
	Page        string              `json:"page"`
	Title       string              `json:"title"`
	Columns     []ColumnJSON        `json:"columns"`
	Records     []record.Record     `json:"records"`
	Matched     int                 `json:"matched"`
	Total       int                 `json:"total"`
	CurrentPage int                 `json:"currentPage"`
	PageSize    int                 `json:"pageSize,omitempty"`
	TotalPages  int                 `json:"totalPages"`
	Buttons     []ButtonJSON        `json:"buttons,omitempty"`
	Options     map[string][]string `json:"options,omitempty"`
	LoadedAt    time.Time           `json:"loadedAt"`
}

// RefreshResponse reports a reload.
type RefreshResponse struct {
	Page     string    `json:"page"`
	Records  int       `json:"records"`
	LoadedAt time.Time `json:"loadedAt"`
}

// LastUpdatedResponse maps loaded page names to their last load time.
type LastUpdatedResponse struct {
	Pages map[string]time.Time `json:"pages"`
}

// SearchResponse lists companies matching a query.
type SearchResponse struct {
	Query   string              `json:"query"`
	Results []portfolio.Company `json:"results"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message string `json:"message"`
}

func dimensionKind(k controller.DimensionKind) string {
	switch k {
	case controller.Range:
		return "range"
	case controller.Choice:
		return "choice"
	case controller.Search:
		return "search"
	case controller.Tokens:
		return "tokens"
	case controller.Day:
		return "day"
	}
	return "unknown"
}

func columnKind(k render.Kind) string {
	switch k {
	case render.Link:
		return "link"
	case render.Number:
		return "number"
	case render.Date:
		return "date"
	case render.RelativeTime:
		return "relative_time"
	}
	return "text"
}

func convertPage(p *pages.Page) PageInfo {
	info := PageInfo{
		Name:      p.Name,
		Title:     p.Title,
		Layout:    string(p.Layout),
		Source:    p.Locator.String(),
		Portfolio: p.Scope != nil,
		PageSize:  p.PageSize,
		PageSizes: p.PageSizes,
		Sort:      p.Sort,
	}
	for _, d := range p.Dimensions {
		info.Dimensions = append(info.Dimensions, DimensionJSON{Param: d.Param, Field: d.Field, Kind: dimensionKind(d.Kind)})
	}
	return info
}

func convertColumns(cols []render.Column) []ColumnJSON {
	out := make([]ColumnJSON, len(cols))
	for i, c := range cols {
		out[i] = ColumnJSON{Key: c.Key, Title: c.Header(), Kind: columnKind(c.Kind), NoWrap: c.NoWrap}
	}
	return out
}

func convertButtons(bs []paginate.Button) []ButtonJSON {
	out := make([]ButtonJSON, len(bs))
	for i, b := range bs {
		out[i] = ButtonJSON{Label: b.Label(), Page: b.Page, Active: b.Active, Disabled: b.Disabled}
	}
	return out
}
