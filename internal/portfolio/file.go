package portfolio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Holding status values. Additions are marked New until Apply succeeds.
const (
	StatusNew = "New"
	StatusOld = "Old"
)

// FileService keeps the portfolio in a CSV file with a symbol,name,status
// header. It is the backend the server exposes over HTTP.
type FileService struct {
	path    string
	onApply func(ctx context.Context, items []Item) error
	log     *slog.Logger

	mu sync.Mutex
}

var _ Service = (*FileService)(nil)

// NewFileService stores the portfolio at path. onApply, if non-nil, runs on
// Apply with the current holdings; when it succeeds every holding is
// marked Old.
func NewFileService(path string, onApply func(context.Context, []Item) error, log *slog.Logger) *FileService {
	if log == nil {
		log = slog.Default()
	}
	return &FileService{path: path, onApply: onApply, log: log}
}

func (s *FileService) List(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// Add inserts symbol (upper-cased) or, if it is already held, marks it New.
func (s *FileService) Add(_ context.Context, symbol, name string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	name = strings.TrimSpace(name)
	if symbol == "" || name == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	found := false
	for i := range items {
		if strings.EqualFold(items[i].Symbol, symbol) {
			items[i].Status = StatusNew
			if items[i].Name == "" {
				items[i].Name = name
			}
			found = true
		}
	}
	if !found {
		items = append(items, Item{Symbol: symbol, Name: name, Status: StatusNew})
	}
	s.log.Info("portfolio add", "symbol", symbol, "existing", found)
	return s.write(items)
}

func (s *FileService) Remove(_ context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.read()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, it := range items {
		if !strings.EqualFold(it.Symbol, symbol) {
			kept = append(kept, it)
		}
	}
	if len(kept) == len(items) {
		return ErrNotFound
	}
	s.log.Info("portfolio remove", "symbol", symbol)
	return s.write(kept)
}

func (s *FileService) Apply(ctx context.Context) error {
	s.mu.Lock()
	items, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.onApply != nil {
		if err := s.onApply(ctx, items); err != nil {
			return fmt.Errorf("applying portfolio: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err = s.read()
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Status = StatusOld
	}
	return s.write(items)
}

func (s *FileService) read() ([]Item, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening portfolio: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading portfolio header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	items := []Item{}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading portfolio: %w", err)
		}
		it := Item{Symbol: get(row, "symbol"), Name: get(row, "name"), Status: get(row, "status")}
		if it.Symbol == "" {
			continue
		}
		if it.Status == "" {
			it.Status = StatusOld
		}
		items = append(items, it)
	}
	return items, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (s *FileService) write(items []Item) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating portfolio dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".portfolio-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp portfolio: %w", err)
	}
	w := csv.NewWriter(tmp)
	_ = w.Write([]string{"symbol", "name", "status"})
	for _, it := range items {
		_ = w.Write([]string{it.Symbol, it.Name, it.Status})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing portfolio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing portfolio: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing portfolio: %w", err)
	}
	return nil
}
