package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when ENAM_CONFIG is unset.
const DefaultPath = "config/enam.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the enam dashboard.
type Config struct {
	Server    Server                  `yaml:"server"`
	Sources   Sources                 `yaml:"sources"`
	Portfolio Portfolio               `yaml:"portfolio"`
	Alpaca    Alpaca                  `yaml:"alpaca"`
	Logging   Logging                 `yaml:"logging"`
	Pages     map[string]PageOverride `yaml:"pages"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns host:port for the HTTP listener.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Sources says where page datasets live. Relative locator URLs resolve
// against BaseURL and relative paths against DataDir.
type Sources struct {
	BaseURL string `yaml:"base_url"`
	DataDir string `yaml:"data_dir"`
}

// Portfolio selects the portfolio backend.
type Portfolio struct {
	// Backend is "file" (CSV at Path, served by enam-server), "http" (URL)
	// or "alpaca" (a watchlist named Watchlist).
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	Path      string `yaml:"path"`
	Watchlist string `yaml:"watchlist"`
}

// Alpaca holds credentials for the Alpaca watchlist backend.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Dir, if set, also writes a daily log file there.
	Dir string `yaml:"dir"`
}

// PageOverride replaces parts of a built-in page definition. Zero fields
// keep the built-in value.
type PageOverride struct {
	Kind      string `yaml:"kind"`
	URL       string `yaml:"url"`
	Path      string `yaml:"path"`
	JSONPath  string `yaml:"json_path"`
	Delimiter string `yaml:"delimiter"`
	Table     string `yaml:"table"`
	Query     string `yaml:"query"`
	// Mapping is "source=Display,..." as accepted by fieldmap.Parse.
	Mapping  string `yaml:"mapping"`
	PageSize int    `yaml:"page_size"`
	SortBy   string `yaml:"sort_by"`
	// SortDesc is a pointer so an override can switch a descending
	// default to ascending.
	SortDesc *bool `yaml:"sort_desc"`
	// MatchMode is "exact" or "substring" for portfolio-scoped pages.
	MatchMode string `yaml:"match_mode"`
	// DateFormat fixes the shape of the page's date fields, e.g.
	// "dd/mm/yyyy"; "auto" tries every shape.
	DateFormat string `yaml:"date_format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server:    Server{Host: "0.0.0.0", Port: 8080, GRPCPort: 9090},
		Sources:   Sources{DataDir: "data"},
		Portfolio: Portfolio{Backend: "file", Path: "data/portfolio.csv", Watchlist: "enam"},
		Logging:   Logging{Level: "info", Format: "json"},
	}
}

// Path returns the config path from ENAM_CONFIG or DefaultPath.
func Path() string {
	if v := os.Getenv("ENAM_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over the
// defaults, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults
// (with environment overrides).
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	return cfg, err
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENAM_DATA_URL"); v != "" {
		cfg.Sources.BaseURL = v
	}
	if v := os.Getenv("ENAM_DATA_DIR"); v != "" {
		cfg.Sources.DataDir = v
	}

	if v := os.Getenv("ENAM_PORTFOLIO_URL"); v != "" {
		cfg.Portfolio.URL = v
		cfg.Portfolio.Backend = "http"
	}

	if v := os.Getenv("ENAM_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("APCA_API_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
}
