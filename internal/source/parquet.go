package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"enam/internal/record"
)

const parquetBatch = 256

// ReadParquet reads every row of a flat Parquet file. Fields follow the
// file's column order; nested columns are named by their dotted path.
func ReadParquet(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrMalformedBody, path, err)
	}

	var names []string
	for _, col := range pf.Schema().Columns() {
		names = append(names, strings.Join(col, "."))
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	recs := make([]record.Record, 0, pf.NumRows())
	buf := make([]parquet.Row, parquetBatch)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			recs = append(recs, parquetRecord(names, row))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedBody, path, err)
		}
		if n == 0 {
			break
		}
	}
	return dropBlank(recs), nil
}

func parquetRecord(names []string, row parquet.Row) record.Record {
	rec := record.New(len(names))
	for _, name := range names {
		rec.Set(name, record.Value{})
	}
	for _, v := range row {
		c := v.Column()
		if c < 0 || c >= len(names) {
			continue
		}
		rec.Set(names[c], parquetValue(v))
	}
	return rec
}

func parquetValue(v parquet.Value) record.Value {
	if v.IsNull() {
		return record.Value{}
	}
	switch v.Kind() {
	case parquet.Boolean:
		return record.ValueOf(v.Boolean())
	case parquet.Int32:
		return record.Int(int64(v.Int32()))
	case parquet.Int64:
		return record.Int(v.Int64())
	case parquet.Float:
		return record.Float(float64(v.Float()))
	case parquet.Double:
		return record.Float(v.Double())
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return record.Str(string(v.ByteArray()))
	}
	return record.Str(v.String())
}
