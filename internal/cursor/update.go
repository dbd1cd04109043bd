package cursor

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/errs"
)

// UpdateRecord sets fields on the row identified by rowID and returns the
// number of rows affected. It runs one UPDATE on a read-committed session
// in autocommit mode. Field names must be columns of table; values must be
// JSON scalars. No matching row is not found.
func (f *Facade) UpdateRecord(ctx context.Context, table, rowID string, fields map[string]any) (n int64, err error) {
	defer func() { observe("update", err) }()

	if strings.TrimSpace(rowID) == "" {
		return 0, errs.New(errs.ErrKindInvalidInput, "row id is required")
	}
	if len(fields) == 0 {
		return 0, errs.New(errs.ErrKindInvalidInput, "no fields to update")
	}
	if _, ok := f.db.Dialect().RowID(); !ok {
		return 0, errs.Newf(errs.ErrKindUnsupported, "%s has no row identifier", f.db.Dialect().Name())
	}
	values := make(map[string]any, len(fields))
	for name, v := range fields {
		sv, err := scalar(v)
		if err != nil {
			return 0, errs.Newf(errs.ErrKindInvalidInput, "field %q: %s", name, err.Error())
		}
		values[name] = sv
	}

	s, err := f.db.OpenWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	resolved, err := f.catalog.ResolveTable(ctx, s, table)
	if err != nil {
		return 0, err
	}
	columns, err := f.catalog.Columns(ctx, s, resolved)
	if err != nil {
		return 0, err
	}

	assignments, err := resolveFields(columns, values)
	if err != nil {
		return 0, err
	}

	b := database.Update(s.Dialect(), f.db.Schema(), resolved)
	for _, a := range assignments {
		b.Set(a.column, a.value)
	}
	stmt, args, err := b.WhereRowID(rowID).Build()
	if err != nil {
		return 0, err
	}

	n, err = s.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errs.Newf(errs.ErrKindNotFound, "no row with id %q in %s", rowID, resolved)
	}
	return n, nil
}

type assignment struct {
	column string
	value  any
}

// resolveFields maps request field names onto columns (exact match first,
// then case-insensitive) and orders the result by column name.
func resolveFields(columns []string, fields map[string]any) ([]assignment, error) {
	seen := make(map[string]string, len(fields))
	out := make([]assignment, 0, len(fields))

	for name, v := range fields {
		col, ok := matchColumn(columns, name)
		if !ok {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "unknown column %q", name)
		}
		if prev, dup := seen[col]; dup {
			return nil, errs.Newf(errs.ErrKindInvalidInput, "fields %q and %q both name column %q", prev, name, col)
		}
		seen[col] = name
		out = append(out, assignment{column: col, value: v})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].column < out[j].column })
	return out, nil
}

func matchColumn(columns []string, name string) (string, bool) {
	for _, c := range columns {
		if c == name {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// scalar accepts the JSON scalar types and normalises json.Number to an
// int64 or float64.
func scalar(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, float64, int64, int:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		fv, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return fv, nil
	}
	return nil, errs.New(errs.ErrKindInvalidInput, "value must be a string, number, boolean or null")
}
