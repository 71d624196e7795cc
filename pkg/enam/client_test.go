package enam

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8080/")
	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("expected trimmed baseURL, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/pages/{page}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("page") != "news" || r.URL.Query().Get("source") != "ET" {
			http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"page":"news","records":[{"Headline":"Rally"}],"matched":1,"total":3,"currentPage":1,"totalPages":1}`))
	})
	mux.HandleFunc("GET /api/pages", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pages":[{"name":"news","pageSize":50,"dimensions":[{"param":"q","field":"Headline","kind":"search"}]}]}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL)
	ctx := context.Background()

	ps, err := c.Pages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ps) != 1 || ps[0].PageSize != 50 || ps[0].Dimensions[0].Kind != "search" {
		t.Errorf("pages = %+v", ps)
	}

	res, err := c.Query(ctx, "news", url.Values{"source": {"ET"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Matched != 1 || res.Records[0]["Headline"] != "Rally" {
		t.Errorf("result = %+v", res)
	}

	_, err = c.Query(ctx, "news", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("error = %v", err)
	}
}
