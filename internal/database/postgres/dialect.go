// Package postgres registers the PostgreSQL dialect. Connections go through
// pgx's database/sql driver ("pgx").
package postgres

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register "pgx" with database/sql
	"github.com/koustreak/tablegate/internal/database"
)

// Name is the dialect name used in configuration.
const Name = "postgres"

func init() {
	database.RegisterDialect(Dialect{})
}

// Dialect implements database.Dialect for PostgreSQL.
type Dialect struct{}

func (Dialect) Name() string          { return Name }
func (Dialect) DriverName() string    { return "pgx" }
func (Dialect) DefaultSchema() string { return "public" }

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Dialect) QuoteIdent(name string) string { return database.QuoteANSI(name) }

func (Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return database.QuoteANSI(table)
	}
	return database.QuoteANSI(schema) + "." + database.QuoteANSI(table)
}

func (Dialect) Window(bind database.Bind, offset, limit int) string {
	return fmt.Sprintf("OFFSET %s ROWS FETCH NEXT (%s) ROWS ONLY", bind(offset), bind(limit))
}

// RowID uses the physical tuple id. It changes when the row is updated
// or the table is vacuumed, so it only identifies a row until then.
func (Dialect) RowID() (string, bool) { return "ctid::text", true }

func (Dialect) RowIDMatch(bind database.Bind, id string) string {
	return "ctid = CAST(" + bind(id) + " AS tid)"
}

func (Dialect) SetIsolation(level database.Isolation) string {
	if level == database.ReadCommitted {
		return "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL READ COMMITTED"
	}
	return "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"
}

func (Dialect) TablesQuery(bind database.Bind, schema string) string {
	return `
		SELECT c.relname AS "name",
		       obj_description(c.oid, 'pg_class') AS "label"
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = ` + bind(schema) + `
		  AND c.relkind IN ('r', 'p', 'v')
		ORDER BY c.relname`
}

func (Dialect) FieldsQuery(bind database.Bind, schema, table string) string {
	return `
		SELECT a.attname AS "name",
		       format_type(a.atttypid, a.atttypmod) AS "type",
		       col_description(a.attrelid, a.attnum) AS "label"
		FROM pg_catalog.pg_attribute a
		JOIN pg_catalog.pg_class c     ON c.oid = a.attrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = ` + bind(schema) + `
		  AND c.relname = ` + bind(table) + `
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`
}

func (Dialect) IndexesQuery(bind database.Bind, schema, table string) string {
	return `
		SELECT i.relname      AS "name",
		       x.indisunique  AS "unique",
		       x.indisprimary AS "primary"
		FROM pg_catalog.pg_index x
		JOIN pg_catalog.pg_class i     ON i.oid = x.indexrelid
		JOIN pg_catalog.pg_class t     ON t.oid = x.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		WHERE n.nspname = ` + bind(schema) + `
		  AND t.relname = ` + bind(table) + `
		ORDER BY i.relname`
}

func (Dialect) MapError(err error, msg string) error { return mapError(err, msg) }
