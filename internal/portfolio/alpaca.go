package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
)

// watchlistClient is the subset of the Alpaca client WatchlistService uses.
type watchlistClient interface {
	GetWatchlists() ([]alpacaapi.Watchlist, error)
	GetWatchlist(watchlistID string) (*alpacaapi.Watchlist, error)
	CreateWatchlist(req alpacaapi.CreateWatchlistRequest) (*alpacaapi.Watchlist, error)
	AddSymbolToWatchlist(watchlistID string, req alpacaapi.AddSymbolToWatchlistRequest) (*alpacaapi.Watchlist, error)
	RemoveSymbolFromWatchlist(watchlistID string, req alpacaapi.RemoveSymbolFromWatchlistRequest) error
}

// WatchlistService keeps the portfolio in a named Alpaca watchlist, created
// on first use.
type WatchlistService struct {
	client watchlistClient
	name   string
	log    *slog.Logger

	mu sync.Mutex
	id string
}

var _ Service = (*WatchlistService)(nil)

// NewWatchlistService connects to Alpaca with the given credentials. An
// empty baseURL uses the client's default.
func NewWatchlistService(apiKey, apiSecret, baseURL, name string, log *slog.Logger) *WatchlistService {
	ac := alpacaapi.NewClient(alpacaapi.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newWatchlistService(ac, name, log)
}

func newWatchlistService(c watchlistClient, name string, log *slog.Logger) *WatchlistService {
	if log == nil {
		log = slog.Default()
	}
	if name == "" {
		name = "enam"
	}
	return &WatchlistService{client: c, name: name, log: log}
}

// watchlistID finds or creates the watchlist.
func (s *WatchlistService) watchlistID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id != "" {
		return s.id, nil
	}
	lists, err := s.client.GetWatchlists()
	if err != nil {
		return "", fmt.Errorf("listing watchlists: %w", err)
	}
	for _, w := range lists {
		if w.Name == s.name {
			s.id = w.ID
			s.log.Info("watchlist found", "name", s.name, "id", w.ID)
			return s.id, nil
		}
	}
	w, err := s.client.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: s.name})
	if err != nil {
		return "", fmt.Errorf("creating watchlist: %w", err)
	}
	s.id = w.ID
	s.log.Info("watchlist created", "name", s.name, "id", w.ID)
	return s.id, nil
}

func (s *WatchlistService) List(_ context.Context) ([]Item, error) {
	id, err := s.watchlistID()
	if err != nil {
		return nil, err
	}
	// GetWatchlists doesn't include assets; fetch the full watchlist.
	wl, err := s.client.GetWatchlist(id)
	if err != nil {
		return nil, fmt.Errorf("getting watchlist: %w", err)
	}
	items := make([]Item, 0, len(wl.Assets))
	for _, a := range wl.Assets {
		items = append(items, Item{Symbol: a.Symbol, Name: a.Name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Symbol < items[j].Symbol })
	return items, nil
}

func (s *WatchlistService) Add(_ context.Context, symbol, _ string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrInvalid
	}
	id, err := s.watchlistID()
	if err != nil {
		return err
	}
	if _, err := s.client.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: symbol}); err != nil {
		return fmt.Errorf("adding %s: %w", symbol, err)
	}
	return nil
}

func (s *WatchlistService) Remove(_ context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return ErrInvalid
	}
	id, err := s.watchlistID()
	if err != nil {
		return err
	}
	if err := s.client.RemoveSymbolFromWatchlist(id, alpacaapi.RemoveSymbolFromWatchlistRequest{Symbol: symbol}); err != nil {
		return fmt.Errorf("removing %s: %w", symbol, err)
	}
	return nil
}

// Apply is a no-op: watchlist edits take effect immediately.
func (s *WatchlistService) Apply(_ context.Context) error { return nil }
