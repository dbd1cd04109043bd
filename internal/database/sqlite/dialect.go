// Package sqlite registers the SQLite dialect backed by the pure-Go
// modernc.org/sqlite driver. It serves local development and the test
// suites.
package sqlite

import (
	"github.com/koustreak/tablegate/internal/database"
	_ "modernc.org/sqlite" // register "sqlite" with database/sql
)

// Name is the dialect name used in configuration.
const Name = "sqlite"

func init() {
	database.RegisterDialect(Dialect{})
}

// Dialect implements database.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Name() string          { return Name }
func (Dialect) DriverName() string    { return "sqlite" }
func (Dialect) DefaultSchema() string { return "" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) QuoteIdent(name string) string { return database.QuoteANSI(name) }

func (Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return database.QuoteANSI(table)
	}
	return database.QuoteANSI(schema) + "." + database.QuoteANSI(table)
}

func (Dialect) Window(bind database.Bind, offset, limit int) string {
	l := bind(limit)
	return "LIMIT " + l + " OFFSET " + bind(offset)
}

func (Dialect) RowID() (string, bool) { return "rowid", true }

func (Dialect) RowIDMatch(bind database.Bind, id string) string {
	return "rowid = CAST(" + bind(id) + " AS INTEGER)"
}

func (Dialect) SetIsolation(level database.Isolation) string {
	if level == database.ReadCommitted {
		return "PRAGMA read_uncommitted = 0"
	}
	return "PRAGMA read_uncommitted = 1"
}

// The catalog statements ignore schema: a SQLite connection sees the
// tables of its main database.

func (Dialect) TablesQuery(database.Bind, string) string {
	return `
		SELECT name AS "name"
		FROM sqlite_schema
		WHERE type IN ('table', 'view')
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
}

func (Dialect) FieldsQuery(bind database.Bind, _, table string) string {
	return `
		SELECT name AS "name", type AS "type"
		FROM pragma_table_info(` + bind(table) + `)
		ORDER BY cid`
}

func (Dialect) IndexesQuery(bind database.Bind, _, table string) string {
	return `
		SELECT name AS "name", "unique" AS "unique", origin = 'pk' AS "primary"
		FROM pragma_index_list(` + bind(table) + `)
		ORDER BY name`
}

func (Dialect) MapError(err error, msg string) error { return mapError(err, msg) }
