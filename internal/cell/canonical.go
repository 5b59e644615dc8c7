package cell

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"math"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"
)

// Canonical serializes c in its canonical form: fixed field order, absent
// optional fields omitted, map keys sorted, data references sorted by ref_id
// and scalar values normalized (see Normalize). Serializing the same cell
// twice yields identical bytes.
func Canonical(c *Cell) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("nil cell")
	}
	return marshal(canonicalCopy(c))
}

// canonicalCopy returns a shallow copy of c with every order-insensitive or
// loosely typed part replaced by its normalized form. c is not modified.
func canonicalCopy(c *Cell) *Cell {
	out := *c

	if c.Result != nil {
		r := *c.Result
		r.Rows = make([]map[string]any, len(c.Result.Rows))
		for i, row := range c.Result.Rows {
			r.Rows[i] = normalizeMap(row)
		}
		out.Result = &r
	}

	if c.Chart != nil {
		ch := *c.Chart
		ch.Spec = normalizeMap(c.Chart.Spec)
		out.Chart = &ch
	}

	if c.Narrative != nil {
		n := *c.Narrative
		if len(n.DataReferences) > 0 {
			refs := append(n.DataReferences[:0:0], n.DataReferences...)
			sort.SliceStable(refs, func(i, j int) bool {
				if refs[i].RefID != refs[j].RefID {
					return refs[i].RefID < refs[j].RefID
				}
				return refs[i].Text < refs[j].Text
			})
			n.DataReferences = refs
		}
		out.Narrative = &n
	}

	if c.Metadata.WhatIf != nil {
		w := *c.Metadata.WhatIf
		w.Parameters = normalizeMap(w.Parameters)
		out.Metadata.WhatIf = &w
	}

	return &out
}

// DataHash returns the hex SHA-256 of the canonical JSON array of rows, each
// row an object holding exactly the given columns.
func DataHash(columns []string, rows []map[string]any) string {
	h := NewDataHasher(columns)
	for _, row := range rows {
		h.Add(row)
	}
	return h.Sum()
}

// DataHasher computes DataHash incrementally so a caller can hash rows it
// does not retain.
type DataHasher struct {
	columns []string
	h       hash.Hash
	n       int
	sum     string
}

// NewDataHasher returns a hasher over rows with the given columns.
func NewDataHasher(columns []string) *DataHasher {
	h := sha256.New()
	h.Write([]byte{'['})
	return &DataHasher{columns: columns, h: h}
}

// Add hashes one row. Values for columns missing from row hash as null.
func (d *DataHasher) Add(row map[string]any) {
	if d.sum != "" {
		return
	}
	projected := make(map[string]any, len(d.columns))
	for _, col := range d.columns {
		projected[col] = Normalize(row[col])
	}
	b, err := marshal(projected)
	if err != nil {
		// Normalized values are always encodable; fall back to %v so a
		// surprising driver type still contributes to the hash.
		b = []byte(strconv.Quote(fmt.Sprintf("%v", projected)))
	}
	if d.n > 0 {
		d.h.Write([]byte{','})
	}
	d.h.Write(b)
	d.n++
}

// Rows returns the number of rows added so far.
func (d *DataHasher) Rows() int { return d.n }

// Sum finalizes the hash. Further calls to Add are ignored.
func (d *DataHasher) Sum() string {
	if d.sum == "" {
		d.h.Write([]byte{']'})
		d.sum = hex.EncodeToString(d.h.Sum(nil))
	}
	return d.sum
}

// Normalize converts a scanned or decoded value into its canonical form:
// integral floats become integers, non-finite floats become strings,
// []byte becomes a string, time values become RFC 3339 UTC strings and
// nested maps and slices are normalized recursively. json.Number is kept.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case json.Number:
		return x
	case float64:
		return normalizeFloat(x)
	case float32:
		return normalizeFloat(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return hex.EncodeToString(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(time.RFC3339Nano)
	case map[string]any:
		return normalizeMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeMap(e)
		}
		return out
	case []string:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out
	case interface{ Float64() float64 }:
		// Decimal types from database drivers.
		return normalizeFloat(x.Float64())
	case fmt.Stringer:
		return x.String()
	}
	return v
}

func normalizeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1<<53:
		return int64(f)
	}
	return f
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// marshal encodes v as compact JSON without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
