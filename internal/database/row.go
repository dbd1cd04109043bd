package database

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

// Row is one result row. Column order is the order the driver reported,
// and JSON encoding preserves it.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs columns with values. Both slices are retained.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names in driver order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in column order.
func (r Row) Values() []any { return r.values }

// Get returns the value of column name.
func (r Row) Get(name string) (any, bool) {
	for i, c := range r.columns {
		if c == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as an object with keys in column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(jsonValue(r.values[i]))
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// jsonValue turns driver byte slices that hold text into strings; binary
// payloads keep the default base64 encoding.
func jsonValue(v any) any {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}

// AsString renders a catalog value (string, []byte or other) as text.
func AsString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		b, _ := json.Marshal(t)
		return string(bytes.Trim(b, `"`))
	}
}

// Result is the outcome of one query: the column names and every row.
type Result struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// Len is the number of rows.
func (r *Result) Len() int { return len(r.Rows) }

// ScanRows reads all rows from the result set.
//
// The returned Rows slice is always non-nil (empty on zero rows).
// ScanRows always closes rows.
func ScanRows(rows Rows) (*Result, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &Result{Columns: columns, Rows: make([]Row, 0)}

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, err
		}
		result.Rows = append(result.Rows, NewRow(columns, dest))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
