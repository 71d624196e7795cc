// Package fieldmap renames and selects record fields so the ingestion schema
// can differ from what a page displays.
package fieldmap

import (
	"fmt"
	"strings"

	"enam/internal/record"
)

// Pair maps one source field to its display name.
type Pair struct {
	Source  string `yaml:"source" json:"source"`
	Display string `yaml:"display" json:"display"`
}

// Mapping is an ordered list of pairs. Its order is the column order.
type Mapping []Pair

// Map returns new records holding only the mapped fields, keyed by display
// name in mapping order. Fields missing from a source record become null.
// An empty mapping returns the input slice unchanged. Inputs are never
// modified.
func Map(records []record.Record, m Mapping) []record.Record {
	if len(m) == 0 {
		return records
	}
	out := make([]record.Record, len(records))
	for i, r := range records {
		nr := record.New(len(m))
		for _, p := range m {
			nr.Set(p.Display, r.Get(p.Source))
		}
		out[i] = nr
	}
	return out
}

// Columns returns the display field order: the mapping's display names, or
// the first record's keys when there is no mapping.
func Columns(records []record.Record, m Mapping) []string {
	if len(m) > 0 {
		cols := make([]string, len(m))
		for i, p := range m {
			cols[i] = p.Display
		}
		return cols
	}
	if len(records) == 0 {
		return nil
	}
	keys := records[0].Keys()
	cols := make([]string, len(keys))
	copy(cols, keys)
	return cols
}

// Display returns the display name for source field f, or f itself when the
// mapping does not rename it.
func (m Mapping) Display(f string) string {
	for _, p := range m {
		if p.Source == f {
			return p.Display
		}
	}
	return f
}

// Parse reads "src=Display,src2=Display 2". A pair without "=" keeps its
// name.
func Parse(s string) (Mapping, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var m Mapping
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		src, disp, found := strings.Cut(part, "=")
		src = strings.TrimSpace(src)
		disp = strings.TrimSpace(disp)
		if !found {
			disp = src
		}
		if src == "" || disp == "" {
			return nil, fmt.Errorf("invalid mapping entry %q", part)
		}
		if seen[disp] {
			return nil, fmt.Errorf("duplicate display field %q", disp)
		}
		seen[disp] = true
		m = append(m, Pair{Source: src, Display: disp})
	}
	return m, nil
}
