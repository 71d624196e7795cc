// Package enam is a Go client for the enam-server dashboard API.
package enam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the enam-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new enam API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Dimension is one filter a page accepts.
type Dimension struct {
	Param string `json:"param"`
	Field string `json:"field"`
	Kind  string `json:"kind"`
}

// Page describes one dashboard page.
type Page struct {
	Name       string      `json:"name"`
	Title      string      `json:"title"`
	Layout     string      `json:"layout"`
	Source     string      `json:"source"`
	Portfolio  bool        `json:"portfolio"`
	PageSize   int         `json:"pageSize"`
	PageSizes  []int       `json:"pageSizes"`
	Dimensions []Dimension `json:"dimensions"`
}

// Column is one display column of a result.
type Column struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	NoWrap bool   `json:"noWrap"`
}

// Result is one filtered, paginated view of a page.
type Result struct {
	Page        string              `json:"page"`
	Title       string              `json:"title"`
	Columns     []Column            `json:"columns"`
	Records     []map[string]any    `json:"records"`
	Matched     int                 `json:"matched"`
	Total       int                 `json:"total"`
	CurrentPage int                 `json:"currentPage"`
	PageSize    int                 `json:"pageSize"`
	TotalPages  int                 `json:"totalPages"`
	Options     map[string][]string `json:"options"`
	LoadedAt    time.Time           `json:"loadedAt"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("enam: status %d: %s", e.Status, e.Message)
}

// Pages lists the server's pages.
func (c *Client) Pages(ctx context.Context) ([]Page, error) {
	var resp struct {
		Pages []Page `json:"pages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/pages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

// Query fetches one page filtered by params, which use the page's
// dimension names plus page and size.
func (c *Client) Query(ctx context.Context, page string, params url.Values) (*Result, error) {
	path := "/api/pages/" + url.PathEscape(page)
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var res Result
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh reloads a page on the server and returns its record count.
func (c *Client) Refresh(ctx context.Context, page string) (int, error) {
	var resp struct {
		Records int `json:"records"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/pages/"+url.PathEscape(page)+"/refresh", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Records, nil
}

// LastUpdated returns when each loaded page was last refreshed.
func (c *Client) LastUpdated(ctx context.Context) (map[string]time.Time, error) {
	var resp struct {
		Pages map[string]time.Time `json:"pages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/last-updated", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Pages, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
