package controller

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"enam/internal/dates"
	"enam/internal/fieldmap"
	"enam/internal/filter"
	"enam/internal/portfolio"
	"enam/internal/record"
	"enam/internal/render"
	"enam/internal/source"
)

type stubSource struct {
	records []record.Record
	err     error
	calls   int
}

func (s *stubSource) Fetch(_ context.Context, _ source.Locator) ([]record.Record, error) {
	s.calls++
	return s.records, s.err
}

type stubPortfolio struct{ symbols []string }

func (s stubPortfolio) List(context.Context) ([]portfolio.Item, error) {
	items := make([]portfolio.Item, len(s.symbols))
	for i, sym := range s.symbols {
		items[i] = portfolio.Item{Symbol: sym}
	}
	return items, nil
}
func (stubPortfolio) Add(context.Context, string, string) error { return nil }
func (stubPortfolio) Remove(context.Context, string) error      { return nil }
func (stubPortfolio) Apply(context.Context) error               { return nil }

type recordingSurface struct {
	renders     int
	last        []record.Record
	cols        []render.Column
	err         error
	page, total int
}

func (s *recordingSurface) Render(recs []record.Record, cols []render.Column) error {
	s.renders++
	s.last = recs
	s.cols = cols
	return nil
}

func (s *recordingSurface) ShowError(err error) { s.err = err }

func (s *recordingSurface) SetPage(current, total int) { s.page, s.total = current, total }

func numbered(n int) []record.Record {
	recs := make([]record.Record, n)
	for i := range recs {
		ex := "NSE"
		if i%2 == 1 {
			ex = "BSE"
		}
		recs[i] = record.FromPairs("n", i, "Exchange", ex, "Headline", fmt.Sprintf("headline %d", i))
	}
	return recs
}

func feedPipeline() *Pipeline {
	return &Pipeline{
		Name:     "test",
		PageSize: 10,
		Dimensions: []Dimension{
			{Param: "exchange", Field: "Exchange", Kind: Choice, Unset: "BOTH"},
			{Param: "q", Field: "Headline", Kind: Search},
		},
	}
}

func values(recs []record.Record, field string) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Get(field).String()
	}
	return out
}

func TestLoadRendersFirstPage(t *testing.T) {
	src := &stubSource{records: numbered(23)}
	surf := &recordingSurface{}
	c := New(feedPipeline(), src, nil, surf, nil)

	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	ds := c.Dataset()
	if len(ds.All) != 23 || len(ds.Filtered) != 23 || ds.CurrentPage != 1 {
		t.Fatalf("dataset = %d/%d page %d", len(ds.All), len(ds.Filtered), ds.CurrentPage)
	}
	if len(surf.last) != 10 || surf.page != 1 || surf.total != 3 {
		t.Errorf("render: %d rows, page %d of %d", len(surf.last), surf.page, surf.total)
	}
	if got := c.Options("Exchange"); !reflect.DeepEqual(got, []string{"BSE", "NSE"}) {
		t.Errorf("options = %v", got)
	}
}

func TestGotoPageClampsAndKeepsFilters(t *testing.T) {
	surf := &recordingSurface{}
	c := New(feedPipeline(), &stubSource{records: numbered(23)}, nil, surf, nil)
	_ = c.Load(context.Background())

	c.Dispatch(Goto(4))
	if got := c.Dataset().CurrentPage; got != 3 {
		t.Errorf("page = %d, want 3 (clamped)", got)
	}
	if len(surf.last) != 3 {
		t.Errorf("last page rows = %d, want 3", len(surf.last))
	}
	c.Dispatch(Prev())
	if got := c.Dataset().CurrentPage; got != 2 {
		t.Errorf("after Prev page = %d", got)
	}
	c.Dispatch(Next())
	c.Dispatch(Next())
	if got := c.Dataset().CurrentPage; got != 3 {
		t.Errorf("Next past end page = %d", got)
	}

	c.Dispatch(EqualChange("Exchange", "nse"))
	ds := c.Dataset()
	if ds.CurrentPage != 1 {
		t.Errorf("filter change should reset page, got %d", ds.CurrentPage)
	}
	if len(ds.Filtered) != 12 {
		t.Errorf("NSE records = %d, want 12", len(ds.Filtered))
	}
	if len(ds.All) != 23 {
		t.Error("All must not change on filtering")
	}

	c.Dispatch(EqualChange("Exchange", "BOTH"))
	if len(c.Dataset().Filtered) != 23 {
		t.Error("BOTH should clear the exchange filter")
	}
}

func TestPageSizeResetsPage(t *testing.T) {
	c := New(feedPipeline(), &stubSource{records: numbered(60)}, nil, nil, nil)
	_ = c.Load(context.Background())
	c.Dispatch(Goto(5))
	c.Dispatch(PageSizeChange(25))
	ds := c.Dataset()
	if ds.CurrentPage != 1 || ds.PageSize != 25 {
		t.Errorf("page %d size %d, want 1/25", ds.CurrentPage, ds.PageSize)
	}
	if c.TotalPages() != 3 {
		t.Errorf("TotalPages = %d", c.TotalPages())
	}
	c.Dispatch(PageSizeChange(0))
	if c.Dataset().PageSize != 25 {
		t.Error("non-positive page size should be ignored")
	}
}

func TestReset(t *testing.T) {
	c := New(feedPipeline(), &stubSource{records: numbered(30)}, nil, nil, nil)
	_ = c.Load(context.Background())
	c.Dispatch(SearchChange("Headline", "HEADLINE 7"))
	c.Dispatch(PageSizeChange(100))
	if n := len(c.Dataset().Filtered); n != 1 {
		t.Fatalf("search matched %d, want 1", n)
	}
	c.Dispatch(Change{Kind: Reset})
	ds := c.Dataset()
	if len(ds.Filtered) != 30 || ds.PageSize != 10 || ds.CurrentPage != 1 {
		t.Errorf("after reset: %d records, size %d, page %d", len(ds.Filtered), ds.PageSize, ds.CurrentPage)
	}
	if q := c.Filters().Search["Headline"]; q != "" {
		t.Errorf("search not cleared: %q", q)
	}
}

func TestStaleLoadDiscarded(t *testing.T) {
	c := New(feedPipeline(), &stubSource{}, nil, nil, nil)
	first := c.BeginLoad()
	second := c.BeginLoad()

	if !c.CompleteLoad(Loaded{Token: second, Records: numbered(4)}) {
		t.Fatal("latest load rejected")
	}
	if c.CompleteLoad(Loaded{Token: first, Records: numbered(9)}) {
		t.Error("stale load accepted")
	}
	if n := len(c.Dataset().All); n != 4 {
		t.Errorf("All = %d records, want 4 from the newer load", n)
	}
	if c.CompleteLoad(Loaded{Token: first, Err: errors.New("late failure")}) || c.Err() != nil {
		t.Error("stale failure should not set an error")
	}
}

func TestLoadFailureShowsError(t *testing.T) {
	surf := &recordingSurface{}
	src := &stubSource{err: fmt.Errorf("fetch: %w", source.ErrSourceUnavailable)}
	c := New(feedPipeline(), src, nil, surf, nil)

	err := c.Load(context.Background())
	if !errors.Is(err, source.ErrSourceUnavailable) {
		t.Fatalf("Load = %v", err)
	}
	if !errors.Is(c.Err(), source.ErrSourceUnavailable) || !errors.Is(surf.err, source.ErrSourceUnavailable) {
		t.Error("error state not surfaced")
	}
	if c.Loaded() || surf.renders != 0 {
		t.Error("failed load should not render rows")
	}

	// filtering after a failure is harmless
	c.Dispatch(EqualChange("Exchange", "NSE"))
	if len(c.Dataset().Filtered) != 0 {
		t.Error("filtered should stay empty")
	}
}

func TestPortfolioScope(t *testing.T) {
	recs := []record.Record{
		record.FromPairs("sec", "TCS", "purpose", "Dividend"),
		record.FromPairs("sec", "INFY", "purpose", "Bonus"),
		record.FromPairs("sec", "WIPRO", "purpose", "Split"),
		record.FromPairs("sec", "HDFC", "purpose", "Dividend"),
		record.FromPairs("sec", "ITC", "purpose", "Dividend"),
	}
	pipe := &Pipeline{
		Name:    "corp",
		Mapping: fieldmap.Mapping{{Source: "sec", Display: "Security Name"}, {Source: "purpose", Display: "Purpose"}},
		Scope:   &Scope{Field: "Security Name", Mode: filter.Exact},
		Dimensions: []Dimension{
			{Param: "security", Field: "Security Name", Kind: Tokens},
		},
	}
	surf := &recordingSurface{}
	c := New(pipe, &stubSource{records: recs}, stubPortfolio{[]string{"tcs", " HDFC ", "RELIANCE"}}, surf, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := values(c.Dataset().All, "Security Name"); !reflect.DeepEqual(got, []string{"TCS", "HDFC"}) {
		t.Errorf("scoped records = %v", got)
	}
	if c.Members().Len() != 3 {
		t.Errorf("members = %v", c.Members().Symbols())
	}
	if len(surf.cols) != 2 || surf.cols[0].Key != "Security Name" {
		t.Errorf("columns = %+v", surf.cols)
	}
	if surf.total != 0 {
		t.Errorf("unpaginated page should have no strip, total = %d", surf.total)
	}

	c.Dispatch(SelectionChange("Security Name", "hdfc"))
	if got := values(c.Dataset().Filtered, "Security Name"); !reflect.DeepEqual(got, []string{"HDFC"}) {
		t.Errorf("selection = %v", got)
	}
	c.Dispatch(Change{Kind: ClearSelection, Field: "Security Name"})
	if len(c.Dataset().Filtered) != 2 {
		t.Error("empty selection should show all")
	}
}

func TestScopedPageWithoutPortfolioFails(t *testing.T) {
	pipe := &Pipeline{Name: "corp", Scope: &Scope{Field: "s"}}
	c := New(pipe, &stubSource{records: numbered(2)}, nil, nil, nil)
	if err := c.Load(context.Background()); !errors.Is(err, source.ErrSourceUnavailable) {
		t.Errorf("Load = %v", err)
	}
}

func TestAllSelectedTokens(t *testing.T) {
	recs := []record.Record{
		record.FromPairs("Stock", "TCS", "Fund", "Axis"),
		record.FromPairs("Stock", "TCS", "Fund", "HDFC MF"),
		record.FromPairs("Stock", "INFY", "Fund", "Axis"),
	}
	pipe := &Pipeline{
		Name:       "mf",
		Dimensions: []Dimension{{Param: "fund", Field: "Fund", Kind: Tokens, AllSelected: true}},
	}
	c := New(pipe, &stubSource{records: recs}, nil, nil, nil)
	_ = c.Load(context.Background())

	fs := c.Filters()
	if !fs.IsSelected("Fund", "axis") || !fs.IsSelected("Fund", "HDFC MF") {
		t.Fatalf("funds should start selected: %v", fs.Selected)
	}
	c.Dispatch(ToggleChange("Fund", "Axis"))
	if got := values(c.Dataset().Filtered, "Fund"); !reflect.DeepEqual(got, []string{"HDFC MF"}) {
		t.Errorf("after toggling Axis off = %v", got)
	}
	c.Dispatch(ToggleChange("Fund", "HDFC MF"))
	if len(c.Dataset().Filtered) != 3 {
		t.Error("deselecting every fund should show all")
	}
	c.Dispatch(ToggleChange("Fund", "Axis"))
	if len(c.Dataset().Filtered) != 2 {
		t.Error("re-toggling Axis should select it again")
	}
	c.Dispatch(Change{Kind: Reset})
	if len(c.Filters().Selected["Fund"]) != 2 {
		t.Error("reset should reselect every fund")
	}
}

func TestComputeDateRangeAndDay(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	recs := []record.Record{
		record.FromPairs("Deal Date", "15/03/2024"),
		record.FromPairs("Deal Date", "14/03/2024"),
		record.FromPairs("Deal Date", "01/03/2024"),
		record.FromPairs("Deal Date", "garbage"),
	}
	pipe := &Pipeline{Dimensions: []Dimension{
		{Param: "range", Field: "Deal Date", Kind: Range, Format: dates.DaySlashMonth},
		{Param: "on", Field: "Deal Date", Kind: Day, Format: dates.DaySlashMonth},
	}}
	tests := []struct {
		fs   FilterState
		want int
	}{
		{FilterState{}, 4},
		{FilterState{Range: filter.AllTime}, 4},
		{FilterState{Range: filter.OneDay}, 2},
		{FilterState{Range: filter.OneWeek}, 2},
		{FilterState{Range: filter.OneMonth}, 3},
		{FilterState{Dates: map[string]time.Time{"Deal Date": time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}}, 1},
	}
	for _, tt := range tests {
		res := pipe.Compute(recs, tt.fs, render.Sort{}, 1, 0, now)
		if len(res.Filtered) != tt.want {
			t.Errorf("%+v: %d records, want %d", tt.fs, len(res.Filtered), tt.want)
		}
	}
}

func TestComputePagination(t *testing.T) {
	recs := numbered(23)
	res := feedPipeline().Compute(recs, FilterState{}, render.Sort{}, 4, 10, time.Now())
	if res.Page != 3 || res.TotalPages != 3 || len(res.Visible) != 3 {
		t.Errorf("page %d of %d, %d visible", res.Page, res.TotalPages, len(res.Visible))
	}
	if res.Visible[0].Get("n").String() != "20" {
		t.Errorf("first visible = %s", res.Visible[0].Get("n"))
	}
}

func datedPipeline() *Pipeline {
	return &Pipeline{
		Name:     "dated",
		PageSize: 2,
		Sort:     render.Sort{Column: "Time", Desc: true},
		Columns:  []render.Column{{Key: "Time", Kind: render.Date, Format: dates.ISO}},
	}
}

func datedRecords() []record.Record {
	return []record.Record{
		record.FromPairs("id", "A", "Time", "2024-03-01"),
		record.FromPairs("id", "B", "Time", "2024-03-02"),
		record.FromPairs("id", "C", "Time", "2024-03-03"),
		record.FromPairs("id", "D", "Time", "2024-03-04"),
	}
}

func TestComputeSortsBeforePaging(t *testing.T) {
	pipe := datedPipeline()
	recs := datedRecords()
	tests := []struct {
		order render.Sort
		page  int
		want  []string
	}{
		{render.Sort{}, 1, []string{"D", "C"}},
		{render.Sort{}, 2, []string{"B", "A"}},
		{render.Sort{Column: "Time"}, 1, []string{"A", "B"}},
		{render.Sort{Column: "id", Desc: true}, 2, []string{"B", "A"}},
	}
	for _, tt := range tests {
		res := pipe.Compute(recs, FilterState{}, tt.order, tt.page, pipe.PageSize, time.Now())
		if got := values(res.Visible, "id"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("order %+v page %d = %v, want %v", tt.order, tt.page, got, tt.want)
		}
	}
	if got := values(recs, "id"); !reflect.DeepEqual(got, []string{"A", "B", "C", "D"}) {
		t.Errorf("Compute reordered its input: %v", got)
	}
}

func TestDispatchSortChange(t *testing.T) {
	surf := &recordingSurface{}
	c := New(datedPipeline(), &stubSource{records: datedRecords()}, nil, surf, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := values(surf.last, "id"); !reflect.DeepEqual(got, []string{"D", "C"}) {
		t.Fatalf("first page = %v", got)
	}

	c.Dispatch(Goto(2))
	c.Dispatch(SortChange(render.Sort{Column: "Time"}))
	if got := values(surf.last, "id"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("after ascending sort = %v", got)
	}
	if c.Dataset().CurrentPage != 1 {
		t.Errorf("sort change left page %d", c.Dataset().CurrentPage)
	}
	if c.Order() != (render.Sort{Column: "Time"}) {
		t.Errorf("Order = %+v", c.Order())
	}

	c.Dispatch(Change{Kind: Reset})
	if got := values(surf.last, "id"); !reflect.DeepEqual(got, []string{"D", "C"}) {
		t.Errorf("after reset = %v", got)
	}
}
