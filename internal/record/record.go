// Package record defines the flat, schema-less row model shared by every
// dashboard page: an ordered mapping from field name to a string, number or
// null value.
package record

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a Value.
type Kind int

const (
	Null Kind = iota
	String
	Number
)

// Value is a single cell. The zero Value is Null.
type Value struct {
	kind Kind
	str  string
	num  decimal.Decimal
}

// Str returns a string value.
func Str(s string) Value { return Value{kind: String, str: s} }

// Num returns a numeric value.
func Num(d decimal.Decimal) Value { return Value{kind: Number, num: d} }

// Float returns a numeric value from a float64.
func Float(f float64) Value { return Num(decimal.NewFromFloat(f)) }

// Int returns a numeric value from an int64.
func Int(i int64) Value { return Num(decimal.NewFromInt(i)) }

// Kind reports the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds no value at all.
func (v Value) IsNull() bool { return v.kind == Null }

// IsBlank reports whether v is null or a string of only whitespace. Blank
// values mean "no value" to every filter and renderer.
func (v Value) IsBlank() bool {
	switch v.kind {
	case Null:
		return true
	case String:
		return strings.TrimSpace(v.str) == ""
	}
	return false
}

// String returns the display text of v; null renders as "".
func (v Value) String() string {
	switch v.kind {
	case String:
		return v.str
	case Number:
		return v.num.String()
	}
	return ""
}

// Decimal returns the numeric content of v. String values that parse as
// numbers are accepted, so delimited-text sources can be compared
// numerically.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case Number:
		return v.num, true
	case String:
		s := strings.ReplaceAll(strings.TrimSpace(v.str), ",", "")
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}

// Norm returns the trimmed, lower-cased text of v. All equality, membership
// and substring comparisons go through Norm.
func (v Value) Norm() string {
	return Normalize(v.String())
}

// Normalize trims and lower-cases s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MarshalJSON encodes null as null, numbers as JSON numbers and strings as
// JSON strings.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case String:
		return json.Marshal(v.str)
	case Number:
		return []byte(v.num.String()), nil
	}
	return []byte("null"), nil
}

// Record is one row. Field order is insertion order; it drives column order
// when no field mapping is configured.
type Record struct {
	keys   []string
	values map[string]Value
}

// New returns an empty record with room for n fields.
func New(n int) Record {
	return Record{keys: make([]string, 0, n), values: make(map[string]Value, n)}
}

// FromPairs builds a record from alternating key, value arguments. Values
// may be Value, string, int, int64, float64, decimal.Decimal or nil.
// It is mostly useful in tests.
func FromPairs(kv ...any) Record {
	r := New(len(kv) / 2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		r.Set(key, ValueOf(kv[i+1]))
	}
	return r
}

// ValueOf converts a Go value into a Value.
func ValueOf(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case string:
		return Str(t)
	case []byte:
		return Str(string(t))
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case bool:
		if t {
			return Str("true")
		}
		return Str("false")
	case decimal.Decimal:
		return Num(t)
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return Str(t.String())
		}
		return Num(d)
	}
	return Value{}
}

// Set stores v under key, appending key to the field order if it is new.
func (r *Record) Set(key string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value under key; absent fields are Null.
func (r Record) Get(key string) Value {
	return r.values[key]
}

// Has reports whether key is present (even if null).
func (r Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Keys returns the field names in insertion order. The slice must not be
// modified.
func (r Record) Keys() []string { return r.keys }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.keys) }

// IsBlank reports whether every field is blank.
func (r Record) IsBlank() bool {
	for _, k := range r.keys {
		if !r.values[k].IsBlank() {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	c := New(len(r.keys))
	for _, k := range r.keys {
		c.Set(k, r.values[k])
	}
	return c
}

// MarshalJSON encodes r as a JSON object with keys in field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := r.values[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Distinct returns the sorted distinct non-blank trimmed values of field
// across records.
func Distinct(records []Record, field string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		v := r.Get(field)
		if v.IsBlank() {
			continue
		}
		s := strings.TrimSpace(v.String())
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
