package database

import "database/sql"

// ColumnType is the driver-reported description of one result column, as
// returned by the zero-row structure query.
type ColumnType struct {
	Name      string `json:"name"`
	DataType  string `json:"dataType"`
	Nullable  *bool  `json:"nullable,omitempty"`
	Length    *int64 `json:"length,omitempty"`
	Precision *int64 `json:"precision,omitempty"`
	Scale     *int64 `json:"scale,omitempty"`
}

// columnTypes converts database/sql column metadata, keeping only the
// properties the driver actually reports.
func columnTypes(cts []*sql.ColumnType) []ColumnType {
	out := make([]ColumnType, len(cts))
	for i, ct := range cts {
		c := ColumnType{Name: ct.Name(), DataType: ct.DatabaseTypeName()}
		if nullable, ok := ct.Nullable(); ok {
			c.Nullable = &nullable
		}
		if length, ok := ct.Length(); ok {
			c.Length = &length
		}
		if precision, scale, ok := ct.DecimalSize(); ok {
			c.Precision = &precision
			c.Scale = &scale
		}
		out[i] = c
	}
	return out
}
