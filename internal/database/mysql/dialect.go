// Package mysql registers the MySQL dialect on top of go-sql-driver/mysql.
// MySQL has no stable row identifier, so RowIDAt and UpdateRecord report
// unsupported for it.
package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql" // register driver
	"github.com/koustreak/tablegate/internal/database"
)

// Name is the dialect name used in configuration.
const Name = "mysql"

func init() {
	database.RegisterDialect(Dialect{})
}

// Dialect implements database.Dialect for MySQL.
type Dialect struct{}

func (Dialect) Name() string       { return Name }
func (Dialect) DriverName() string { return "mysql" }

// DefaultSchema is empty: the database named in the DSN is used.
func (Dialect) DefaultSchema() string { return "" }

func (Dialect) Placeholder(int) string { return "?" }

// QuoteIdent wraps name in backticks, doubling embedded backticks.
func (Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdent(table)
	}
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

// Window binds the limit before the offset, matching LIMIT ? OFFSET ?.
func (Dialect) Window(bind database.Bind, offset, limit int) string {
	l := bind(limit)
	return "LIMIT " + l + " OFFSET " + bind(offset)
}

func (Dialect) RowID() (string, bool) { return "", false }

func (Dialect) RowIDMatch(database.Bind, string) string { return "" }

func (Dialect) SetIsolation(level database.Isolation) string {
	if level == database.ReadCommitted {
		return "SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED"
	}
	return "SET SESSION TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"
}

// schemaFilter falls back to the connection's current database.
func schemaFilter(bind database.Bind, schema string) string {
	return "COALESCE(NULLIF(" + bind(schema) + ", ''), DATABASE())"
}

func (Dialect) TablesQuery(bind database.Bind, schema string) string {
	return "SELECT table_name AS `name`, table_comment AS `label`" +
		" FROM information_schema.tables" +
		" WHERE table_schema = " + schemaFilter(bind, schema) +
		" ORDER BY table_name"
}

func (Dialect) FieldsQuery(bind database.Bind, schema, table string) string {
	return "SELECT column_name AS `name`, column_type AS `type`, column_comment AS `label`" +
		" FROM information_schema.columns" +
		" WHERE table_schema = " + schemaFilter(bind, schema) +
		"   AND table_name = " + bind(table) +
		" ORDER BY ordinal_position"
}

func (Dialect) IndexesQuery(bind database.Bind, schema, table string) string {
	return "SELECT index_name AS `name`," +
		" MAX(non_unique = 0) AS `unique`," +
		" MAX(index_name = 'PRIMARY') AS `primary`" +
		" FROM information_schema.statistics" +
		" WHERE table_schema = " + schemaFilter(bind, schema) +
		"   AND table_name = " + bind(table) +
		" GROUP BY index_name" +
		" ORDER BY index_name"
}

func (Dialect) MapError(err error, msg string) error { return mapError(err, msg) }
