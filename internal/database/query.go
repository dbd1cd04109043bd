package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/tablegate/internal/errs"
)

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type projection struct {
	expr  string
	alias string
}

// SelectBuilder constructs a parameterized single-table SELECT using a
// fluent API. Values are never interpolated into the SQL string; the
// window bounds are bound arguments. The table name must already be
// verified against the schema catalog.
//
// Usage:
//
//	sql, args := Select(d, "PUB", "Customer").
//	    OrderByOrdinal(1, Desc).
//	    Window(0, 1).
//	    Build()
type SelectBuilder struct {
	d       Dialect
	schema  string
	table   string
	proj    []projection
	empty   bool
	ordinal int
	dir     SortDirection
	offset  int
	limit   int
	window  bool
}

// Select starts a new SelectBuilder for schema.table.
func Select(d Dialect, schema, table string) *SelectBuilder {
	return &SelectBuilder{d: d, schema: schema, table: table}
}

// Project adds a projected expression. expr is emitted verbatim, so it must
// come from the dialect, never from a request. alias is quoted.
// If not called, SELECT * is used.
func (b *SelectBuilder) Project(expr, alias string) *SelectBuilder {
	b.proj = append(b.proj, projection{expr: expr, alias: alias})
	return b
}

// Empty adds WHERE 1=0 so the statement returns column metadata only.
func (b *SelectBuilder) Empty() *SelectBuilder {
	b.empty = true
	return b
}

// OrderByOrdinal orders by the n-th (1-based) result column.
func (b *SelectBuilder) OrderByOrdinal(n int, dir SortDirection) *SelectBuilder {
	b.ordinal = n
	b.dir = dir
	return b
}

// Window restricts the result to limit rows after skipping offset.
func (b *SelectBuilder) Window(offset, limit int) *SelectBuilder {
	b.offset, b.limit, b.window = offset, limit, true
	return b
}

// Build produces the final SQL string and argument slice.
func (b *SelectBuilder) Build() (string, []any) {
	bd := &binder{d: b.d}

	cols := "*"
	if len(b.proj) > 0 {
		parts := make([]string, len(b.proj))
		for i, p := range b.proj {
			parts[i] = p.expr
			if p.alias != "" {
				parts[i] += " AS " + b.d.QuoteIdent(p.alias)
			}
		}
		cols = strings.Join(parts, ", ")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.d.QualifyTable(b.schema, b.table))

	if b.empty {
		sb.WriteString(" WHERE 1=0")
	}

	if b.ordinal > 0 {
		dir := "ASC"
		if b.dir == Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&sb, " ORDER BY %d %s", b.ordinal, dir)
	}

	if b.window {
		sb.WriteByte(' ')
		sb.WriteString(b.d.Window(bd.bind, b.offset, b.limit))
	}

	return sb.String(), bd.args
}

type assignment struct {
	column string
	value  any
}

// UpdateBuilder constructs a parameterized single-row UPDATE keyed by the
// store's row identifier. Columns must already be verified against the
// table's structure; values are always bound.
type UpdateBuilder struct {
	d      Dialect
	schema string
	table  string
	sets   []assignment
	rowID  *string
}

// Update starts a new UpdateBuilder for schema.table.
func Update(d Dialect, schema, table string) *UpdateBuilder {
	return &UpdateBuilder{d: d, schema: schema, table: table}
}

// Set appends "column = ?". Assignments are emitted in call order.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, value: value})
	return b
}

// WhereRowID restricts the update to the row with identifier id.
func (b *UpdateBuilder) WhereRowID(id string) *UpdateBuilder {
	b.rowID = &id
	return b
}

// Build produces the final SQL string and argument slice.
// It fails when there is nothing to set, no row was selected, or the
// dialect has no row identifier.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.sets) == 0 {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "no fields to update")
	}
	if b.rowID == nil {
		return "", nil, errs.New(errs.ErrKindInvalidInput, "update requires a row id")
	}
	if _, ok := b.d.RowID(); !ok {
		return "", nil, errs.Newf(errs.ErrKindUnsupported, "%s has no row identifier", b.d.Name())
	}

	bd := &binder{d: b.d}

	parts := make([]string, len(b.sets))
	for i, s := range b.sets {
		parts[i] = b.d.QuoteIdent(s.column) + " = " + bd.bind(s.value)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.d.QualifyTable(b.schema, b.table))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(parts, ", "))
	sb.WriteString(" WHERE ")
	sb.WriteString(b.d.RowIDMatch(bd.bind, *b.rowID))

	return sb.String(), bd.args, nil
}
