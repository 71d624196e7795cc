package source

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func newTestFetcher(baseURL, dataDir string) *Fetcher {
	return NewFetcher(baseURL, dataDir, nil)
}

func TestFetchJSONKeepsFieldOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/announcements" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol": "TCS", "time": "05-Jan-2024 10:30:00", "qty": 1200, "meta": {"a": 1}},
			{"symbol": "", "time": null},
			{"qty": 3.5, "symbol": "INFY"}
		]`))
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, "")
	recs, err := f.Fetch(context.Background(), Locator{Kind: JSON, URL: "/api/announcements"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2 (blank row dropped)", len(recs))
	}
	if got := recs[0].Keys(); !reflect.DeepEqual(got, []string{"symbol", "time", "qty", "meta"}) {
		t.Errorf("keys = %v", got)
	}
	if d, ok := recs[0].Get("qty").Decimal(); !ok || d.IntPart() != 1200 {
		t.Errorf("qty = %v", recs[0].Get("qty"))
	}
	if recs[0].Get("meta").String() != `{"a":1}` {
		t.Errorf("nested value = %q", recs[0].Get("meta").String())
	}
	if got := recs[1].Keys(); !reflect.DeepEqual(got, []string{"qty", "symbol"}) {
		t.Errorf("second record keys = %v", got)
	}
}

func TestFetchJSONEnvelopePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "ok", "data": [{"b": "2", "a": "1"}, {"a": "3"}]}`))
	}))
	defer srv.Close()

	recs, err := newTestFetcher("", "").Fetch(context.Background(), Locator{Kind: JSON, URL: srv.URL, JSONPath: "$.data"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 || recs[0].Get("b").String() != "2" || recs[1].Get("a").String() != "3" {
		t.Errorf("unexpected records: %d", len(recs))
	}
	if got := recs[0].Keys(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("envelope keys = %v", got)
	}

	_, err = newTestFetcher("", "").Fetch(context.Background(), Locator{Kind: JSON, URL: srv.URL, JSONPath: "$.status"})
	if !errors.Is(err, ErrMalformedBody) {
		t.Errorf("non-array path error = %v", err)
	}
}

func TestFetchFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/garbage":
			_, _ = w.Write([]byte(`[{"a": 1}, {"b": `))
		case "/object":
			_, _ = w.Write([]byte(`{"a": 1}`))
		}
	}))
	defer srv.Close()
	f := newTestFetcher(srv.URL, "")
	ctx := context.Background()

	tests := []struct {
		path string
		want error
	}{
		{"/down", ErrSourceUnavailable},
		{"/garbage", ErrMalformedBody},
		{"/object", ErrMalformedBody},
	}
	for _, tt := range tests {
		recs, err := f.Fetch(ctx, Locator{Kind: JSON, URL: tt.path})
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: error = %v, want %v", tt.path, err, tt.want)
		}
		if recs != nil {
			t.Errorf("%s: returned partial records", tt.path)
		}
	}

	srv.Close()
	if _, err := f.Fetch(ctx, Locator{Kind: JSON, URL: "/down"}); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("closed server error = %v", err)
	}
}

func TestDecodeDelimited(t *testing.T) {
	in := "\ufeffSymbol;Deal Date;Quantity\n" +
		"TCS;15/03/2024;1000\n" +
		"\n" +
		" ; ;\n" +
		"INFY;14/03/2024\n"
	recs, err := DecodeDelimited(strings.NewReader(in), ';')
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if got := recs[0].Keys(); !reflect.DeepEqual(got, []string{"Symbol", "Deal Date", "Quantity"}) {
		t.Errorf("header = %v", got)
	}
	short := recs[1]
	if !short.Has("Quantity") || !short.Get("Quantity").IsNull() {
		t.Error("short row should be padded with null")
	}
	if short.Get("Symbol").String() != "INFY" {
		t.Errorf("short row symbol = %q", short.Get("Symbol").String())
	}
}

func TestFetchCSVFromFileAndHTTP(t *testing.T) {
	dir := t.TempDir()
	body := "Time,Headline,Source\n2024-01-05T09:00:00,Markets rally,ET\n,,\n"
	if err := os.WriteFile(filepath.Join(dir, "news.csv"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	f := newTestFetcher("", dir)
	recs, err := f.Fetch(context.Background(), Locator{Kind: CSV, Path: "news.csv"})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Get("Headline").String() != "Markets rally" {
		t.Errorf("file csv records = %d", len(recs))
	}

	if _, err := f.Fetch(context.Background(), Locator{Kind: CSV, Path: "missing.csv"}); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing file error = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a\tb\n1\t2\n"))
	}))
	defer srv.Close()
	recs, err = f.Fetch(context.Background(), Locator{Kind: CSV, URL: srv.URL, Delimiter: `\t`})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Get("b").String() != "2" {
		t.Errorf("tsv records = %v", recs)
	}
}

type deviationRow struct {
	AvgQty  int64   `parquet:"AVG_TTL_TRD_QNTY"`
	NewQty  int64   `parquet:"NEW_TTL_TRD_QNTY"`
	Pct     float64 `parquet:"PCT_DEVIATION"`
	Symbol  string  `parquet:"SYMBOL"`
	Comment *string `parquet:"comment,optional"`
}

func TestReadParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trd_deviation.parquet")
	note := "spike"
	rows := []deviationRow{
		{AvgQty: 100, NewQty: 150, Pct: 50, Symbol: "INFY", Comment: &note},
		{AvgQty: 200, NewQty: 180, Pct: -10, Symbol: "TCS"},
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		t.Fatal(err)
	}

	f := newTestFetcher("", filepath.Dir(path))
	recs, err := f.Fetch(context.Background(), Locator{Kind: Parquet, Path: filepath.Base(path)})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Get("SYMBOL").String() != "INFY" || recs[1].Get("SYMBOL").String() != "TCS" {
		t.Errorf("symbols = %v, %v", recs[0].Get("SYMBOL"), recs[1].Get("SYMBOL"))
	}
	if d, ok := recs[0].Get("NEW_TTL_TRD_QNTY").Decimal(); !ok || d.IntPart() != 150 {
		t.Errorf("NEW_TTL_TRD_QNTY = %v", recs[0].Get("NEW_TTL_TRD_QNTY"))
	}
	if recs[0].Get("comment").String() != "spike" || !recs[1].Get("comment").IsNull() {
		t.Error("optional column not read correctly")
	}

	if _, err := ReadParquet(filepath.Join(t.TempDir(), "nope.parquet")); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing parquet error = %v", err)
	}
	bad := filepath.Join(t.TempDir(), "bad.parquet")
	_ = os.WriteFile(bad, []byte("not parquet"), 0o644)
	if _, err := ReadParquet(bad); !errors.Is(err, ErrMalformedBody) {
		t.Errorf("corrupt parquet error = %v", err)
	}
}

func TestReadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enam.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	stmts := []string{
		`CREATE TABLE insider (symbol TEXT, acquirer TEXT, shares INTEGER, price REAL)`,
		`INSERT INTO insider VALUES ('TCS', 'Promoter', 500, 3500.5)`,
		`INSERT INTO insider VALUES ('INFY', NULL, 20, NULL)`,
		`INSERT INTO insider VALUES (NULL, NULL, NULL, NULL)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	db.Close()

	f := newTestFetcher("", "")
	recs, err := f.Fetch(context.Background(), Locator{Kind: SQLite, Path: path, Table: "insider"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if got := recs[0].Keys(); !reflect.DeepEqual(got, []string{"symbol", "acquirer", "shares", "price"}) {
		t.Errorf("columns = %v", got)
	}
	if !recs[1].Get("acquirer").IsNull() {
		t.Error("NULL should map to a null value")
	}
	if d, _ := recs[0].Get("price").Decimal(); d.String() != "3500.5" {
		t.Errorf("price = %s", d)
	}

	recs, err = ReadSQLite(context.Background(), path, "", `SELECT symbol FROM insider WHERE shares > 100`)
	if err != nil || len(recs) != 1 {
		t.Errorf("query returned %d records, err %v", len(recs), err)
	}
	if _, err := ReadSQLite(context.Background(), path, "insider; DROP TABLE insider", ""); err == nil {
		t.Error("unsafe table name accepted")
	}
	if _, err := ReadSQLite(context.Background(), filepath.Join(t.TempDir(), "none.db"), "insider", ""); !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("missing db error = %v", err)
	}
}

func TestLocatorString(t *testing.T) {
	if got := (Locator{Kind: SQLite, Path: "enam.db", Table: "deals"}).String(); got != "sqlite:enam.db#deals" {
		t.Errorf("String = %q", got)
	}
}
