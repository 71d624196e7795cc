package render

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"enam/internal/dates"
	"enam/internal/record"
)

var fixedNow = func() time.Time { return time.Date(2024, time.January, 5, 12, 0, 0, 0, time.UTC) }

func names(recs []record.Record, field string) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Get(field).String()
	}
	return out
}

func announcements() []record.Record {
	return []record.Record{
		record.FromPairs("Symbol", "TCS", "Time", "04-Jan-2024 09:15:00", "Attachment", "https://example.com/a.pdf"),
		record.FromPairs("Symbol", "INFY", "Time", "05-Jan-2024 10:30:00", "Attachment", ""),
		record.FromPairs("Symbol", "WIPRO", "Time", "", "Attachment", nil),
		record.FromPairs("Symbol", "HDFC", "Time", "03-Jan-2024 18:00", "Attachment", "https://example.com/b.pdf"),
	}
}

var annCols = []Column{
	{Key: "Symbol", Title: "Symbol"},
	{Key: "Time", Title: "Time", Kind: Date, Format: dates.DayMonthName, NoWrap: true},
	{Key: "Attachment", Title: "Attachment", Kind: Link},
}

func TestSortRecordsDatesBlanksLast(t *testing.T) {
	in := announcements()
	desc := SortRecords(in, Sort{Column: "Time", Desc: true}, annCols)
	if got, want := names(desc, "Symbol"), []string{"INFY", "TCS", "HDFC", "WIPRO"}; !reflect.DeepEqual(got, want) {
		t.Errorf("desc = %v, want %v", got, want)
	}
	asc := SortRecords(in, Sort{Column: "Time"}, annCols)
	if got, want := names(asc, "Symbol"), []string{"HDFC", "TCS", "INFY", "WIPRO"}; !reflect.DeepEqual(got, want) {
		t.Errorf("asc = %v, want %v", got, want)
	}
	if names(in, "Symbol")[0] != "TCS" {
		t.Error("SortRecords modified its input")
	}
}

func TestSortRecordsNumbersAndStability(t *testing.T) {
	in := []record.Record{
		record.FromPairs("n", "10", "id", "a"),
		record.FromPairs("n", 2, "id", "b"),
		record.FromPairs("n", "1,200", "id", "c"),
		record.FromPairs("n", 2, "id", "d"),
	}
	cols := []Column{{Key: "n", Kind: Number}}
	got := names(SortRecords(in, Sort{Column: "n"}, cols), "id")
	if want := []string{"b", "d", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("numeric sort = %v, want %v", got, want)
	}
	if got := names(SortRecords(in, Sort{}, cols), "id"); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("empty sort should keep input order, got %v", got)
	}
}

func TestHTMLTableRendersLinksAndReplaces(t *testing.T) {
	tbl := &HTMLTable{Sort: Sort{Column: "Time", Desc: true}, Now: fixedNow}
	if err := tbl.Render(announcements(), annCols); err != nil {
		t.Fatal(err)
	}
	out := string(tbl.HTML())
	if strings.Count(out, `class="attachment"`) != 2 {
		t.Errorf("expected two attachment links:\n%s", out)
	}
	if !strings.Contains(out, `href="https://example.com/a.pdf"`) {
		t.Error("attachment href missing")
	}
	if strings.Index(out, "INFY") > strings.Index(out, "TCS") {
		t.Error("rows not sorted newest first")
	}
	if !strings.Contains(out, "nowrap-cell") {
		t.Error("no-wrap hint not rendered")
	}

	if err := tbl.Render(announcements()[:1], annCols); err != nil {
		t.Fatal(err)
	}
	out = string(tbl.HTML())
	if strings.Contains(out, "INFY") || !strings.Contains(out, "TCS") {
		t.Errorf("second render should replace rows:\n%s", out)
	}
}

func TestSurfacesShowPlaceholder(t *testing.T) {
	tbl := &HTMLTable{}
	grid := &CardGrid{Title: "Security Name"}
	grouped := &GroupedTable{Key: "Stock"}
	feed := &Feed{}
	for _, s := range []Surface{tbl, grid, grouped, feed} {
		if err := s.Render(nil, annCols); err != nil {
			t.Fatal(err)
		}
	}
	for i, out := range []string{string(tbl.HTML()), string(grid.HTML()), string(grouped.HTML()), string(feed.HTML())} {
		if !strings.Contains(out, Placeholder) {
			t.Errorf("surface %d: missing placeholder in %q", i, out)
		}
		if strings.Contains(out, "<table") {
			t.Errorf("surface %d rendered an empty table shell", i)
		}
	}

	chart := &BarChart{}
	_ = chart.Render(nil, nil)
	if !strings.Contains(chart.String(), Placeholder) {
		t.Error("chart missing placeholder")
	}
	md := &Markdown{}
	_ = md.Render(nil, annCols)
	if !strings.Contains(md.String(), Placeholder) {
		t.Error("markdown missing placeholder")
	}
}

func TestCardGridTooltip(t *testing.T) {
	grid := &CardGrid{
		Title:  "Security Name",
		Lines:  []CardLine{{Label: "Ex Date", Field: "Ex Date", Short: true}, {Field: "Purpose"}},
		Hidden: []string{"Security Code", "Purpose"},
		Bare:   []string{"Company Name"},
	}
	r := record.FromPairs(
		"Security Code", "500209",
		"Security Name", "INFY",
		"Company Name", "Infosys Ltd",
		"Ex Date", "05 Jan 2024",
		"BC Start Date", "-",
		"Purpose", "Dividend",
	)
	if got, want := grid.Tooltip(r), "Infosys Ltd\nEx Date: 05 Jan 2024"; got != want {
		t.Errorf("Tooltip = %q, want %q", got, want)
	}
	if err := grid.Render([]record.Record{r}, nil); err != nil {
		t.Fatal(err)
	}
	out := string(grid.HTML())
	for _, want := range []string{"INFY", "Ex Date: 05 Jan 24", "Dividend"} {
		if !strings.Contains(out, want) {
			t.Errorf("card missing %q:\n%s", want, out)
		}
	}
}

func TestGroupedTableRowspan(t *testing.T) {
	recs := []record.Record{
		record.FromPairs("Stock", "INFY", "Fund", "Axis", "Buy", 1200, "Sell", nil),
		record.FromPairs("Stock", "TCS", "Fund", "SBI", "Buy", nil, "Sell", 300),
		record.FromPairs("Stock", "INFY", "Fund", "HDFC", "Buy", 50, "Sell", nil),
	}
	cols := []Column{{Key: "Stock"}, {Key: "Fund"}, {Key: "Buy", Kind: Number}, {Key: "Sell", Kind: Number}}
	g := &GroupedTable{Key: "Stock", RowClass: func(r record.Record) string {
		if !r.Get("Buy").IsBlank() {
			return "hover-green"
		}
		return "hover-red"
	}}
	if err := g.Render(recs, cols); err != nil {
		t.Fatal(err)
	}
	out := string(g.HTML())
	if !strings.Contains(out, `rowspan="2" class="rowspan-key">INFY`) {
		t.Errorf("INFY should span two rows:\n%s", out)
	}
	if !strings.Contains(out, `rowspan="1" class="rowspan-key">TCS`) {
		t.Errorf("TCS should span one row:\n%s", out)
	}
	if strings.Index(out, "Axis") > strings.Index(out, "HDFC") || strings.Index(out, "HDFC") > strings.Index(out, "TCS") {
		t.Error("grouping changed record order")
	}
	if !strings.Contains(out, "1,200") || !strings.Contains(out, "hover-red") {
		t.Errorf("numbers or row classes missing:\n%s", out)
	}
}

func TestFeedBadgesAndStrip(t *testing.T) {
	f := &Feed{Headline: "Headline", Link: "Link", Source: "Source", Category: "Category", Time: "Time", Now: fixedNow}
	f.SetPage(1, 3)
	recs := []record.Record{
		record.FromPairs("Headline", "Markets rally", "Link", "https://news.example/1", "Source", "ET", "Category", "Markets, Economy,", "Time", "2024-01-05T09:00:00"),
	}
	if err := f.Render(recs, nil); err != nil {
		t.Fatal(err)
	}
	out := string(f.HTML())
	for _, want := range []string{"#007bff", "#28a745", "Markets rally", "3 hours ago", `href="?page=2"`} {
		if !strings.Contains(out, want) {
			t.Errorf("feed missing %q:\n%s", want, out)
		}
	}
	if BadgeColor("Unknown") != "#6c757d" || BadgeColor(" IPOs ") != "#fd7e14" {
		t.Error("BadgeColor mapping wrong")
	}
	if got := SplitCategories(" a, ,b,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("SplitCategories = %v", got)
	}
}

func TestDeviationColorAndGeometry(t *testing.T) {
	for in, want := range map[string]string{"10.5": "green", "10": "orange", "-10": "orange", "-10.01": "red", "0": "orange"} {
		if got := DeviationColor(decimal.RequireFromString(in)); got != want {
			t.Errorf("DeviationColor(%s) = %s, want %s", in, got, want)
		}
	}
	filled, mark := BarGeometry(decimal.NewFromInt(100), decimal.NewFromInt(150), 40)
	if filled != 30 || mark != 20 {
		t.Errorf("BarGeometry = %d, %d; want 30, 20", filled, mark)
	}
	if f, m := BarGeometry(decimal.Zero, decimal.Zero, 40); f != 0 || m != 0 {
		t.Errorf("zero scale = %d, %d", f, m)
	}

	c := &BarChart{Symbol: "SYMBOL", Avg: "AVG", Actual: "NEW", Pct: "PCT_DEVIATION", Width: 20}
	recs := []record.Record{record.FromPairs("SYMBOL", "INFY", "AVG", 100, "NEW", 150, "PCT_DEVIATION", "50")}
	if err := c.Render(recs, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.String(), "INFY") || !strings.Contains(c.String(), "50.00%") {
		t.Errorf("chart output = %q", c.String())
	}
}

func TestMarkdownTable(t *testing.T) {
	md := &Markdown{Sort: Sort{Column: "Time", Desc: true}, Now: fixedNow}
	recs := []record.Record{
		record.FromPairs("Symbol", "A|B", "Time", "04-Jan-2024 09:15:00", "Attachment", "https://example.com/a.pdf"),
	}
	if err := md.Render(recs, annCols); err != nil {
		t.Fatal(err)
	}
	out := md.String()
	for _, want := range []string{"| Symbol | Time | Attachment |", `A\|B`, "[Download](https://example.com/a.pdf)"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q:\n%s", want, out)
		}
	}
}

func TestLiveTableKeepsSortAcrossUpdates(t *testing.T) {
	lt := NewLiveTable(Sort{Column: "Time", Desc: true}, 10)
	lt.Now = fixedNow
	if err := lt.Render(announcements(), annCols); err != nil {
		t.Fatal(err)
	}
	if got := names(lt.Rows(), "Symbol"); got[0] != "INFY" {
		t.Fatalf("initial sort not applied: %v", got)
	}

	lt.SetSort(Sort{Column: "Symbol"})
	lt.SetPageSize(25)

	shorter := announcements()[:2]
	if err := lt.Render(shorter, []Column{{Key: "Other"}}); err != nil {
		t.Fatal(err)
	}
	if lt.Sort() != (Sort{Column: "Symbol"}) {
		t.Errorf("sort changed to %+v", lt.Sort())
	}
	if lt.PageSize() != 25 {
		t.Errorf("page size changed to %d", lt.PageSize())
	}
	if len(lt.Columns()) != len(annCols) {
		t.Error("column layout changed on live update")
	}
	if got, want := names(lt.Rows(), "Symbol"), []string{"INFY", "TCS"}; !reflect.DeepEqual(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if strings.Contains(lt.View(), "WIPRO") {
		t.Error("stale rows still visible")
	}
}

func TestLiveTableToggleAndEmpty(t *testing.T) {
	lt := NewLiveTable(Sort{}, 0)
	if !strings.Contains(lt.View(), Placeholder) {
		t.Error("unbuilt table should show placeholder")
	}
	_ = lt.Render(announcements(), annCols)
	lt.ToggleSort(0)
	lt.ToggleSort(0)
	if lt.Sort() != (Sort{Column: "Symbol", Desc: true}) {
		t.Errorf("ToggleSort = %+v", lt.Sort())
	}
	_ = lt.Render(nil, annCols)
	if !strings.Contains(lt.View(), Placeholder) {
		t.Error("empty rows should show placeholder")
	}
	lt.ShowError(errors.New("boom"))
	if !strings.Contains(lt.View(), "boom") {
		t.Error("error not shown")
	}
}
