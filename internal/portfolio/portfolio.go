// Package portfolio holds the user's stock portfolio: the immutable
// membership snapshot pages filter against, and the services that list and
// mutate it.
package portfolio

import (
	"context"
	"errors"
	"sort"
	"strings"

	"enam/internal/filter"
	"enam/internal/record"
)

// ErrNotFound is returned when removing a symbol that is not held.
var ErrNotFound = errors.New("symbol not in portfolio")

// ErrInvalid is returned for a mutation missing its symbol or name.
var ErrInvalid = errors.New("invalid portfolio item")

// Item is one holding as the portfolio endpoint returns it.
type Item struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Membership is a read-only set of normalized symbols.
type Membership struct {
	set     map[string]bool
	symbols []string
}

var _ filter.Set = Membership{}

// NewMembership builds a snapshot from portfolio items. Blank symbols are
// skipped.
func NewMembership(items []Item) Membership {
	syms := make([]string, len(items))
	for i, it := range items {
		syms[i] = it.Symbol
	}
	return FromSymbols(syms...)
}

// FromSymbols builds a snapshot from raw symbols.
func FromSymbols(symbols ...string) Membership {
	m := Membership{set: make(map[string]bool, len(symbols))}
	for _, s := range symbols {
		n := record.Normalize(s)
		if n == "" || m.set[n] {
			continue
		}
		m.set[n] = true
		m.symbols = append(m.symbols, n)
	}
	sort.Strings(m.symbols)
	return m
}

// Has reports whether the normalized symbol is held.
func (m Membership) Has(normalized string) bool { return m.set[normalized] }

// Symbols returns the normalized symbols in sorted order.
func (m Membership) Symbols() []string { return m.symbols }

// Len returns the number of symbols.
func (m Membership) Len() int { return len(m.symbols) }

// Service lists and mutates the portfolio. Apply asks the backend to act on
// pending changes, e.g. by refreshing the datasets that depend on it.
type Service interface {
	List(ctx context.Context) ([]Item, error)
	Add(ctx context.Context, symbol, name string) error
	Remove(ctx context.Context, symbol string) error
	Apply(ctx context.Context) error
}

// Fetch lists the portfolio and returns it as a membership snapshot.
func Fetch(ctx context.Context, svc Service) (Membership, error) {
	items, err := svc.List(ctx)
	if err != nil {
		return Membership{}, err
	}
	return NewMembership(items), nil
}

// Company is a searchable listed company.
type Company struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// MinQueryLen is the shortest query RankMatches answers.
const MinQueryLen = 2

// RankMatches returns the companies whose symbol or name contains query,
// best first: symbol prefix, then name prefix, then symbol substring, then
// name substring. Ties keep input order. Queries shorter than MinQueryLen
// return nothing.
func RankMatches(companies []Company, query string) []Company {
	q := record.Normalize(query)
	if len([]rune(q)) < MinQueryLen {
		return nil
	}
	type ranked struct {
		c    Company
		rank int
	}
	var hits []ranked
	for _, c := range companies {
		sym := strings.ToLower(c.Symbol)
		name := strings.ToLower(c.Name)
		rank := 0
		switch {
		case strings.HasPrefix(sym, q):
			rank = 1
		case strings.HasPrefix(name, q):
			rank = 2
		case strings.Contains(sym, q):
			rank = 3
		case strings.Contains(name, q):
			rank = 4
		default:
			continue
		}
		hits = append(hits, ranked{c, rank})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].rank < hits[j].rank })
	out := make([]Company, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

// CompaniesFrom reads companies out of records with the given symbol and
// name fields, e.g. a symbols.csv listing.
func CompaniesFrom(records []record.Record, symbolField, nameField string) []Company {
	var out []Company
	for _, r := range records {
		sym := strings.TrimSpace(r.Get(symbolField).String())
		if sym == "" {
			continue
		}
		out = append(out, Company{Symbol: sym, Name: strings.TrimSpace(r.Get(nameField).String())})
	}
	return out
}
