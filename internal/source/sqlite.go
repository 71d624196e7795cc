package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"enam/internal/record"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ReadSQLite reads rows from a SQLite database file. Either table names a
// table to read in full, or query is run as given. Fields follow the
// result's column order.
func ReadSQLite(ctx context.Context, path, table, query string) ([]record.Record, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if query == "" {
		if !identRe.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
		query = `SELECT * FROM "` + table + `"`
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrSourceUnavailable, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns: %v", ErrMalformedBody, err)
	}

	var recs []record.Record
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrMalformedBody, err)
		}
		rec := record.New(len(cols))
		for i, c := range cols {
			rec.Set(c, sqlValue(vals[i]))
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return dropBlank(recs), nil
}

func sqlValue(v any) record.Value {
	switch t := v.(type) {
	case time.Time:
		return record.Str(t.Format("2006-01-02T15:04:05"))
	}
	return record.ValueOf(v)
}
