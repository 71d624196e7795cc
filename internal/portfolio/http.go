package portfolio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"enam/internal/source"
)

// HTTPService talks to a portfolio endpoint:
//
//	GET    /api/portfolio         -> [{symbol, name}]
//	POST   /api/portfolio         {symbol, name}
//	DELETE /api/portfolio         {symbol}
//	POST   /api/portfolio/apply
type HTTPService struct {
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*HTTPService)(nil)

// NewHTTPService creates a client for the portfolio endpoint at baseURL.
func NewHTTPService(baseURL string) *HTTPService {
	return &HTTPService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPService) List(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.do(ctx, http.MethodGet, "/api/portfolio", nil, &items); err != nil {
		return nil, fmt.Errorf("listing portfolio: %w", err)
	}
	return items, nil
}

func (s *HTTPService) Add(ctx context.Context, symbol, name string) error {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(name) == "" {
		return ErrInvalid
	}
	if err := s.do(ctx, http.MethodPost, "/api/portfolio", Item{Symbol: symbol, Name: name}, nil); err != nil {
		return fmt.Errorf("adding %s: %w", symbol, err)
	}
	return nil
}

func (s *HTTPService) Remove(ctx context.Context, symbol string) error {
	if strings.TrimSpace(symbol) == "" {
		return ErrInvalid
	}
	if err := s.do(ctx, http.MethodDelete, "/api/portfolio", Item{Symbol: symbol}, nil); err != nil {
		return fmt.Errorf("removing %s: %w", symbol, err)
	}
	return nil
}

func (s *HTTPService) Apply(ctx context.Context) error {
	if err := s.do(ctx, http.MethodPost, "/api/portfolio/apply", nil, nil); err != nil {
		return fmt.Errorf("applying portfolio: %w", err)
	}
	return nil
}

func (s *HTTPService) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", source.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound && method == http.MethodDelete:
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return ErrInvalid
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: %s %s: status %d", source.ErrSourceUnavailable, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", source.ErrMalformedBody, err)
	}
	return nil
}
