package fieldmap

import (
	"testing"

	"enam/internal/record"
)

func TestMapSelectsAndRenames(t *testing.T) {
	in := []record.Record{
		record.FromPairs("SYMBOL", "INFY", "DESC", "Board meeting", "ATTCH", "http://x/a.pdf"),
		record.FromPairs("SYMBOL", "TCS", "DESC", "Dividend"),
	}
	m := Mapping{{"DESC", "Subject"}, {"SYMBOL", "Stock"}, {"ATTCH", "Attachment"}}

	out := Map(in, m)
	if len(out) != 2 {
		t.Fatalf("Map returned %d records, want 2", len(out))
	}
	keys := out[0].Keys()
	if len(keys) != 3 || keys[0] != "Subject" || keys[1] != "Stock" || keys[2] != "Attachment" {
		t.Errorf("keys = %v, want [Subject Stock Attachment]", keys)
	}
	if out[0].Get("Stock").String() != "INFY" {
		t.Errorf("Stock = %q, want INFY", out[0].Get("Stock").String())
	}
	if !out[1].Get("Attachment").IsNull() {
		t.Error("missing source field should map to null")
	}
	if out[1].Has("SYMBOL") {
		t.Error("unmapped source field leaked into output")
	}

	// Inputs untouched.
	if in[0].Has("Stock") || in[0].Len() != 3 {
		t.Errorf("Map mutated its input: %v", in[0].Keys())
	}
}

func TestMapPassThrough(t *testing.T) {
	in := []record.Record{record.FromPairs("b", 1, "a", 2)}
	out := Map(in, nil)
	if len(out) != 1 || out[0].Keys()[0] != "b" {
		t.Errorf("pass-through changed records: %v", out[0].Keys())
	}
	cols := Columns(in, nil)
	if len(cols) != 2 || cols[0] != "b" || cols[1] != "a" {
		t.Errorf("Columns = %v, want [b a]", cols)
	}
}

func TestRemapSameSourceDifferently(t *testing.T) {
	in := []record.Record{record.FromPairs("sym", "INFY", "qty", 10)}
	a := Map(in, Mapping{{"sym", "Stock"}})
	b := Map(in, Mapping{{"qty", "Quantity"}, {"sym", "Symbol"}})
	if a[0].Get("Stock").String() != "INFY" || b[0].Get("Symbol").String() != "INFY" {
		t.Error("re-mapping the same source produced wrong values")
	}
	if Columns(b, Mapping{{"qty", "Quantity"}, {"sym", "Symbol"}})[0] != "Quantity" {
		t.Error("Columns should follow mapping order")
	}
}

func TestParse(t *testing.T) {
	m, err := Parse("SYMBOL=Stock, DESC = Subject ,Time")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m) != 3 {
		t.Fatalf("Parse returned %d pairs, want 3", len(m))
	}
	if m[1] != (Pair{"DESC", "Subject"}) || m[2] != (Pair{"Time", "Time"}) {
		t.Errorf("Parse = %+v", m)
	}
	if m.Display("SYMBOL") != "Stock" || m.Display("other") != "other" {
		t.Error("Display lookup wrong")
	}

	if _, err := Parse("a=X,b=X"); err == nil {
		t.Error("duplicate display names should be rejected")
	}
	if _, err := Parse("=X"); err == nil {
		t.Error("empty source should be rejected")
	}
}
