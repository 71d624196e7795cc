package portfolio

import (
	"reflect"
	"testing"

	"enam/internal/config"
)

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		want    any
		wantErr bool
	}{
		{"default file", func(*config.Config) {}, &FileService{}, false},
		{"file without path", func(c *config.Config) { c.Portfolio.Path = "" }, nil, true},
		{"http", func(c *config.Config) { c.Portfolio.Backend, c.Portfolio.URL = "http", "http://localhost:5000" }, &HTTPService{}, false},
		{"http without url", func(c *config.Config) { c.Portfolio.Backend = "http" }, nil, true},
		{"alpaca", func(c *config.Config) { c.Portfolio.Backend, c.Alpaca.APIKey = "alpaca", "key" }, &WatchlistService{}, false},
		{"alpaca without key", func(c *config.Config) { c.Portfolio.Backend = "alpaca" }, nil, true},
		{"unknown", func(c *config.Config) { c.Portfolio.Backend = "redis" }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			svc, err := Open(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %T", svc)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got, want := reflect.TypeOf(svc), reflect.TypeOf(tt.want); got != want {
				t.Errorf("backend = %v, want %v", got, want)
			}
		})
	}
}
