package render

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"enam/internal/dashboard"
	"enam/internal/dates"
	"enam/internal/paginate"
	"enam/internal/record"
)

// htmlSurface holds the most recent fragment a surface produced.
type htmlSurface struct {
	out template.HTML
}

// HTML returns the fragment from the last Render.
func (h *htmlSurface) HTML() template.HTML { return h.out }

// ShowError replaces the content with an error notice.
func (h *htmlSurface) ShowError(err error) {
	h.out = execute(errorTmpl, err.Error())
}

func execute(t *template.Template, data any) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return template.HTML(template.HTMLEscapeString(err.Error()))
	}
	return template.HTML(buf.String())
}

var funcs = template.FuncMap{
	"badgeColor": func(c string) template.CSS { return template.CSS(BadgeColor(c)) },
}

var errorTmpl = template.Must(template.New("error").Parse(
	`<div class="load-error">Failed to load data: {{.}}</div>`))

var emptyTmpl = template.Must(template.New("empty").Parse(
	`<p class="no-records">{{.}}</p>`))

type cell struct {
	Text   string
	Link   bool
	NoWrap bool
	Class  string
	Span   int
}

// ---------------------------------------------------------------------------
// HTMLTable
// ---------------------------------------------------------------------------

var tableTmpl = template.Must(template.New("table").Parse(`<table class="data-table"{{if .ID}} id="{{.ID}}"{{end}}{{if .Sort.Column}} data-sort="{{.Sort.Column}}" data-dir="{{if .Sort.Desc}}desc{{else}}asc{{end}}"{{end}}>
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr>{{range .}}<td class="{{if .NoWrap}}nowrap-cell{{else}}wrap-cell{{end}}">{{if .Link}}{{if .Text}}<a href="{{.Text}}" target="_blank" rel="noopener" class="attachment">Download</a>{{end}}{{else}}{{.Text}}{{end}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>`))

// HTMLTable renders a plain sortable table. Each Render builds the table
// afresh, sorted by Sort.
type HTMLTable struct {
	htmlSurface
	ID   string
	Sort Sort
	Now  func() time.Time
}

func (t *HTMLTable) Render(records []record.Record, cols []Column) error {
	if len(records) == 0 {
		t.out = execute(emptyTmpl, Placeholder)
		return nil
	}
	now := nowOr(t.Now)
	sorted := SortRecords(records, t.Sort, cols)
	rows := make([][]cell, len(sorted))
	for i, r := range sorted {
		row := make([]cell, len(cols))
		for j, c := range cols {
			row[j] = cell{Text: c.Text(r, now), Link: c.Kind == Link, NoWrap: c.NoWrap}
		}
		rows[i] = row
	}
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header()
	}
	t.out = execute(tableTmpl, map[string]any{
		"ID": t.ID, "Sort": t.Sort, "Headers": headers, "Rows": rows,
	})
	return nil
}

// ---------------------------------------------------------------------------
// CardGrid
// ---------------------------------------------------------------------------

var cardTmpl = template.Must(template.New("cards").Parse(`<div class="grid">
{{- range .}}
<div class="badge" title="{{.Tooltip}}">
<div class="badge-title">{{.Title}}</div>
{{- range .Lines}}
<div class="badge-text">{{.}}</div>
{{- end}}
</div>
{{- end}}
</div>`))

// CardLine is one line under a card's title.
type CardLine struct {
	Label string
	Field string
	// Short trims "DD Mon YYYY" to "DD Mon YY".
	Short bool
}

// CardGrid renders one card per record: a title, a few labelled lines and a
// tooltip listing the remaining fields.
type CardGrid struct {
	htmlSurface
	Title string
	Lines []CardLine
	// Hidden fields never appear in the tooltip.
	Hidden []string
	// Bare fields appear in the tooltip without their label.
	Bare []string
}

type card struct {
	Title   string
	Lines   []string
	Tooltip string
}

func (g *CardGrid) Render(records []record.Record, _ []Column) error {
	if len(records) == 0 {
		g.out = execute(emptyTmpl, Placeholder)
		return nil
	}
	cards := make([]card, len(records))
	for i, r := range records {
		c := card{Title: strings.TrimSpace(r.Get(g.Title).String()), Tooltip: g.Tooltip(r)}
		for _, l := range g.Lines {
			v := strings.TrimSpace(r.Get(l.Field).String())
			if l.Short {
				v = dates.ShortDisplay(v)
			}
			if l.Label != "" {
				v = l.Label + ": " + v
			}
			c.Lines = append(c.Lines, v)
		}
		cards[i] = c
	}
	g.out = execute(cardTmpl, cards)
	return nil
}

// Tooltip returns the hover text for r.
func (g *CardGrid) Tooltip(r record.Record) string {
	var pairs [][2]string
	for _, k := range r.Keys() {
		if k == g.Title || contains(g.Hidden, k) {
			continue
		}
		label := k
		if contains(g.Bare, k) {
			label = ""
		}
		pairs = append(pairs, [2]string{label, r.Get(k).String()})
	}
	return dashboard.Tooltip(pairs...)
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// GroupedTable
// ---------------------------------------------------------------------------

var groupedTmpl = template.Must(template.New("grouped").Parse(`<table class="table grouped">
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{- range .Rows}}
<tr class="{{.Class}}">{{range .Cells}}<td{{if gt .Span 0}} rowspan="{{.Span}}" class="rowspan-key"{{else if .Class}} class="{{.Class}}"{{end}}>{{.Text}}</td>{{end}}</tr>
{{- end}}
</tbody>
</table>`))

// GroupedTable lists records grouped by Key, with one label cell spanning
// each group's rows. Groups keep first-seen order.
type GroupedTable struct {
	htmlSurface
	Key string
	// RowClass optionally tags rows, e.g. buys versus sells.
	RowClass func(record.Record) string
	Now      func() time.Time
}

type groupedRow struct {
	Class string
	Cells []cell
}

func (g *GroupedTable) Render(records []record.Record, cols []Column) error {
	if len(records) == 0 {
		g.out = execute(emptyTmpl, Placeholder)
		return nil
	}
	now := nowOr(g.Now)
	keyCol, ok := Find(cols, g.Key)
	if !ok {
		keyCol = Column{Key: g.Key, Title: g.Key}
	}
	headers := []string{keyCol.Header()}
	var rest []Column
	for _, c := range cols {
		if c.Key == keyCol.Key {
			continue
		}
		rest = append(rest, c)
		headers = append(headers, c.Header())
	}

	var rows []groupedRow
	for _, grp := range paginate.GroupBy(records, keyCol.Key) {
		for i, r := range grp.Records {
			row := groupedRow{}
			if g.RowClass != nil {
				row.Class = g.RowClass(r)
			}
			if i == 0 {
				row.Cells = append(row.Cells, cell{Text: grp.Key, Span: grp.Span()})
			}
			for _, c := range rest {
				text := c.Text(r, now)
				cls := ""
				if c.Kind == Number {
					cls = "text-center"
					if text == "" {
						text = "-"
					}
				}
				row.Cells = append(row.Cells, cell{Text: text, Class: cls})
			}
			rows = append(rows, row)
		}
	}
	g.out = execute(groupedTmpl, map[string]any{"Headers": headers, "Rows": rows})
	return nil
}

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

var feedTmpl = template.Must(template.New("feed").Funcs(funcs).Parse(`{{define "strip"}}{{if .}}<nav><ul class="pagination">
{{- range .}}<li class="page-item{{if .Active}} active{{end}}{{if or .Disabled .Gap}} disabled{{end}}">{{if .Gap}}<span class="page-link">{{.Label}}</span>{{else}}<a class="page-link" href="?page={{.Page}}">{{.Label}}</a>{{end}}</li>{{end -}}
</ul></nav>{{end}}{{end -}}
{{template "strip" .Strip}}
<table class="feed"><tbody>
{{- range .Items}}
<tr><td>
<div>{{range .Categories}}<span class="badge rounded-pill" style="background-color: {{badgeColor .}};">{{.}}</span> {{end}}</div>
<div class="headline">{{if .Link}}<a href="{{.Link}}" target="_blank" rel="noopener">{{.Headline}}</a>{{else}}{{.Headline}}{{end}}</div>
<div class="text-muted small">Source: {{.Source}}</div>
<div class="text-muted small text-end">{{.When}}</div>
</td></tr>
{{- end}}
</tbody></table>
{{template "strip" .Strip}}`))

// Feed renders a paginated news feed: category badges, a linked headline,
// its source and a relative timestamp. Set the page with SetPage before
// Render to draw the page-button strip.
type Feed struct {
	htmlSurface
	Headline, Link, Source, Category, Time string
	TimeFormat                             dates.Format
	Now                                    func() time.Time

	page, total int
}

// SetPage records the current page and page count for the strip.
func (f *Feed) SetPage(current, total int) {
	f.page, f.total = current, total
}

type feedItem struct {
	Headline, Link, Source, When string
	Categories                   []string
}

func (f *Feed) Render(records []record.Record, _ []Column) error {
	if len(records) == 0 {
		f.out = execute(emptyTmpl, Placeholder)
		return nil
	}
	now := dates.Naive(nowOr(f.Now))
	items := make([]feedItem, len(records))
	for i, r := range records {
		it := feedItem{
			Headline:   strings.TrimSpace(r.Get(f.Headline).String()),
			Link:       strings.TrimSpace(r.Get(f.Link).String()),
			Source:     strings.TrimSpace(r.Get(f.Source).String()),
			Categories: SplitCategories(r.Get(f.Category).String()),
		}
		if t, ok := dates.Parse(r.Get(f.Time).String(), f.TimeFormat); ok {
			it.When = dates.TimeAgo(t, now)
		}
		items[i] = it
	}
	f.out = execute(feedTmpl, map[string]any{
		"Items": items,
		"Strip": paginate.Strip(f.total, f.page),
	})
	return nil
}

// SplitCategories splits a comma-separated category list, dropping blanks.
func SplitCategories(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

var badgeColors = map[string]string{
	"markets":     "#007bff",
	"economy":     "#28a745",
	"finance":     "#ffc107",
	"companies":   "#17a2b8",
	"stocks":      "#6610f2",
	"ipos":        "#fd7e14",
	"industry":    "#6c757d",
	"business":    "#20c997",
	"commodities": "#dc3545",
}

// BadgeColor returns the fixed colour for a news category.
func BadgeColor(category string) string {
	if c, ok := badgeColors[record.Normalize(category)]; ok {
		return c
	}
	return "#6c757d"
}
