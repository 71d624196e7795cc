package paginate

import (
	"strings"

	"enam/internal/record"
)

// Group is a run of records sharing a key, rendered with one label spanning
// len(Records) rows.
type Group struct {
	Key     string
	Records []record.Record
}

// Span returns the number of rows the group label covers.
func (g Group) Span() int { return len(g.Records) }

// GroupBy groups records by the trimmed text of field. Groups appear in
// first-seen key order and records keep their relative order within a
// group; nothing is re-sorted.
func GroupBy(records []record.Record, field string) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, r := range records {
		k := strings.TrimSpace(r.Get(field).String())
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
