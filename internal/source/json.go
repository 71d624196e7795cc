package source

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/PaesslerAG/jsonpath"

	"enam/internal/record"
)

// DecodeJSON decodes an array of flat objects. Without a path the body must
// be the array itself and field order follows the document. With a JSONPath
// expression such as "$.data" the array is selected from an envelope;
// objects reached that way have their fields in sorted order, since the
// path evaluator works on unordered maps.
func DecodeJSON(r io.Reader, path string) ([]record.Record, error) {
	if path != "" {
		return decodeEnvelope(r, path)
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	var recs []record.Record
	for dec.More() {
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}
	return dropBlank(recs), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformedBody, want, tok)
	}
	return nil
}

func decodeObject(dec *json.Decoder) (record.Record, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return record.Record{}, err
	}
	rec := record.New(8)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return record.Record{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		key, ok := tok.(string)
		if !ok {
			return record.Record{}, fmt.Errorf("%w: object key %v", ErrMalformedBody, tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return record.Record{}, fmt.Errorf("%w: field %q: %v", ErrMalformedBody, key, err)
		}
		rec.Set(key, jsonValue(v))
	}
	if err := expectDelim(dec, '}'); err != nil {
		return record.Record{}, err
	}
	return rec, nil
}

func decodeEnvelope(r io.Reader, path string) ([]record.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	sel, err := jsonpath.Get(path, doc)
	if err != nil {
		return nil, fmt.Errorf("%w: path %s: %v", ErrMalformedBody, path, err)
	}
	items, ok := sel.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: path %s does not select an array", ErrMalformedBody, path)
	}
	recs := make([]record.Record, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedBody, i)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		rec := record.New(len(keys))
		for _, k := range keys {
			rec.Set(k, jsonValue(obj[k]))
		}
		recs = append(recs, rec)
	}
	return dropBlank(recs), nil
}

// jsonValue converts a decoded JSON value. Nested objects and arrays are
// kept as their JSON text.
func jsonValue(v any) record.Value {
	switch t := v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return record.Value{}
		}
		return record.Str(string(b))
	}
	return record.ValueOf(v)
}
