package main

import (
	"testing"
	"time"

	"enam/internal/controller"
	"enam/internal/filter"
	"enam/internal/pages"
)

func TestNextChoice(t *testing.T) {
	opts := []string{"BS", "ET"}
	seq := []string{"BS", "ET", "", "BS"}
	cur := ""
	for i, want := range seq {
		cur = nextChoice(opts, cur)
		if cur != want {
			t.Fatalf("step %d = %q, want %q", i, cur, want)
		}
	}
	if got := nextChoice(nil, "ET"); got != "" {
		t.Errorf("no options = %q", got)
	}
}

func TestNextSize(t *testing.T) {
	sizes := []int{10, 25, 50, 100}
	tests := []struct {
		cur  int
		up   bool
		want int
	}{
		{50, true, 100},
		{100, true, 100},
		{50, false, 25},
		{10, false, 10},
		{7, true, 10},
	}
	for _, tt := range tests {
		if got := nextSize(sizes, tt.cur, tt.up); got != tt.want {
			t.Errorf("nextSize(%d, %v) = %d, want %d", tt.cur, tt.up, got, tt.want)
		}
	}
}

func TestDescribeFilters(t *testing.T) {
	cat := pages.Default()
	news, _ := cat.Lookup("news")
	if got := describeFilters(news, controller.FilterState{}); got != "no filters" {
		t.Errorf("empty = %q", got)
	}
	fs := controller.FilterState{
		Equal:  map[string]string{"Source": "ET"},
		Search: map[string]string{"Headline": "rally"},
	}
	if got := describeFilters(news, fs); got != `source=ET  q="rally"` {
		t.Errorf("news = %q", got)
	}

	ca, _ := cat.Lookup("corp-actions")
	fs = controller.FilterState{
		Range:    filter.AllTime,
		Selected: map[string][]string{"Security Name": {"TCS", "INFY"}},
		Dates:    map[string]time.Time{"Ex Date": time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC)},
	}
	if got := describeFilters(ca, fs); got != "security: 2 selected  ex_date=18 Mar 2024" {
		t.Errorf("corp actions = %q", got)
	}
}
