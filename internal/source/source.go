// Package source fetches raw record lists from remote JSON endpoints,
// delimited text, Parquet files and SQLite tables.
//
// A fetch is single-shot: there is no retry, and a failure never yields a
// partial list. Rows in which every field is blank are discarded; rows with
// missing optional fields are kept.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"enam/internal/record"
)

// Sentinel errors. Fetch wraps one of them, so callers can use errors.Is.
var (
	// ErrSourceUnavailable covers transport failures, non-2xx statuses and
	// missing files.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrMalformedBody means the payload could not be decoded.
	ErrMalformedBody = errors.New("malformed body")
)

// Kind selects a backend.
type Kind string

const (
	JSON    Kind = "json"
	CSV     Kind = "csv"
	Parquet Kind = "parquet"
	SQLite  Kind = "sqlite"
)

// Locator says where a dataset lives. URL is used for HTTP sources; Path
// for local files. Relative values resolve against the Fetcher's BaseURL
// and DataDir.
type Locator struct {
	Kind      Kind   `yaml:"kind" json:"kind"`
	URL       string `yaml:"url,omitempty" json:"url,omitempty"`
	Path      string `yaml:"path,omitempty" json:"path,omitempty"`
	JSONPath  string `yaml:"json_path,omitempty" json:"json_path,omitempty"`
	Delimiter string `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
	Table     string `yaml:"table,omitempty" json:"table,omitempty"`
	Query     string `yaml:"query,omitempty" json:"query,omitempty"`
}

func (l Locator) String() string {
	where := l.URL
	if where == "" {
		where = l.Path
	}
	if l.Table != "" {
		where += "#" + l.Table
	}
	return string(l.Kind) + ":" + where
}

// Source fetches one dataset.
type Source interface {
	Fetch(ctx context.Context, loc Locator) ([]record.Record, error)
}

// Fetcher is the Source used by every page. It dispatches on Locator.Kind.
type Fetcher struct {
	Client  *http.Client
	BaseURL string
	DataDir string
	log     *slog.Logger
}

var _ Source = (*Fetcher)(nil)

// NewFetcher creates a Fetcher. A nil logger uses slog.Default.
func NewFetcher(baseURL, dataDir string, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		BaseURL: baseURL,
		DataDir: dataDir,
		log:     log,
	}
}

// Fetch loads the dataset behind loc.
func (f *Fetcher) Fetch(ctx context.Context, loc Locator) ([]record.Record, error) {
	start := time.Now()
	recs, err := f.fetch(ctx, loc)
	if err != nil {
		f.log.Warn("fetch failed", "source", loc.String(), "error", err)
		return nil, err
	}
	f.log.Debug("fetched", "source", loc.String(), "records", len(recs), "elapsed", time.Since(start))
	return recs, nil
}

func (f *Fetcher) fetch(ctx context.Context, loc Locator) ([]record.Record, error) {
	switch loc.Kind {
	case JSON, "":
		body, err := f.open(ctx, loc)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return DecodeJSON(body, loc.JSONPath)
	case CSV:
		body, err := f.open(ctx, loc)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return DecodeDelimited(body, delimiter(loc.Delimiter))
	case Parquet:
		return ReadParquet(f.path(loc.Path))
	case SQLite:
		return ReadSQLite(ctx, f.path(loc.Path), loc.Table, loc.Query)
	}
	return nil, fmt.Errorf("unknown source kind %q", loc.Kind)
}

// open returns the raw body of an HTTP or file locator.
func (f *Fetcher) open(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	if loc.URL == "" {
		if loc.Path == "" {
			return nil, fmt.Errorf("%w: locator %s has neither url nor path", ErrSourceUnavailable, loc)
		}
		file, err := os.Open(f.path(loc.Path))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return file, nil
	}

	u, err := f.resolve(loc.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrSourceUnavailable, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrSourceUnavailable, u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrSourceUnavailable, u, resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || f.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(strings.TrimRight(f.BaseURL, "/") + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(&url.URL{Path: strings.TrimLeft(u.Path, "/"), RawQuery: u.RawQuery}).String(), nil
}

func (f *Fetcher) path(p string) string {
	if p == "" || filepath.IsAbs(p) || f.DataDir == "" {
		return p
	}
	return filepath.Join(f.DataDir, p)
}

func delimiter(s string) rune {
	switch s {
	case "", ",":
		return ','
	case `\t`, "tab":
		return '\t'
	}
	return []rune(s)[0]
}

// dropBlank removes records whose fields are all blank.
func dropBlank(recs []record.Record) []record.Record {
	out := recs[:0]
	for _, r := range recs {
		if !r.IsBlank() {
			out = append(out, r)
		}
	}
	return out
}
