package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"enam/internal/record"
)

// DecodeDelimited reads delimited text whose first row names the fields.
// Rows shorter than the header are padded with nulls; cells beyond the
// header are ignored. Blank lines and rows of only blank cells are dropped.
func DecodeDelimited(r io.Reader, comma rune) ([]record.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedBody, err)
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}

	var recs []record.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		rec := record.New(len(header))
		for i, h := range header {
			if i < len(row) {
				rec.Set(h, record.Str(row[i]))
			} else {
				rec.Set(h, record.Value{})
			}
		}
		recs = append(recs, rec)
	}
	return dropBlank(recs), nil
}
