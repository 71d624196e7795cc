package portfolio

import (
	"fmt"
	"log/slog"

	"enam/internal/config"
)

// Open builds the portfolio backend named by cfg.Portfolio.Backend.
func Open(cfg *config.Config, log *slog.Logger) (Service, error) {
	p := cfg.Portfolio
	switch p.Backend {
	case "", "file":
		if p.Path == "" {
			return nil, fmt.Errorf("portfolio backend file needs a path")
		}
		return NewFileService(p.Path, nil, log), nil
	case "http":
		if p.URL == "" {
			return nil, fmt.Errorf("portfolio backend http needs a url")
		}
		return NewHTTPService(p.URL), nil
	case "alpaca":
		if cfg.Alpaca.APIKey == "" {
			return nil, fmt.Errorf("portfolio backend alpaca needs an API key")
		}
		return NewWatchlistService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, p.Watchlist, log), nil
	}
	return nil, fmt.Errorf("unknown portfolio backend %q", p.Backend)
}
