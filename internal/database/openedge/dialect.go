// Package openedge registers the Progress OpenEdge SQL dialect. OpenEdge is
// reached over ODBC: link a database/sql ODBC driver into the binary and
// name it with database.driver when it is not registered as "odbc".
package openedge

import (
	"github.com/koustreak/tablegate/internal/database"
)

// Name is the dialect name used in configuration.
const Name = "openedge"

func init() {
	database.RegisterDialect(Dialect{})
}

// Dialect implements database.Dialect for OpenEdge SQL.
type Dialect struct{}

func (Dialect) Name() string          { return Name }
func (Dialect) DriverName() string    { return "odbc" }
func (Dialect) DefaultSchema() string { return "PUB" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) QuoteIdent(name string) string { return database.QuoteANSI(name) }

func (Dialect) QualifyTable(schema, table string) string {
	if schema == "" {
		return database.QuoteANSI(table)
	}
	return database.QuoteANSI(schema) + "." + database.QuoteANSI(table)
}

func (Dialect) Window(bind database.Bind, offset, limit int) string {
	o := bind(offset)
	return "OFFSET " + o + " ROWS FETCH NEXT " + bind(limit) + " ROWS ONLY"
}

func (Dialect) RowID() (string, bool) { return "ROWID", true }

func (Dialect) RowIDMatch(bind database.Bind, id string) string {
	return "ROWID = " + bind(id)
}

func (Dialect) SetIsolation(level database.Isolation) string {
	if level == database.ReadCommitted {
		return "SET TRANSACTION ISOLATION LEVEL READ COMMITTED"
	}
	return "SET TRANSACTION ISOLATION LEVEL READ UNCOMMITTED"
}

// Catalog statements read the OpenEdge metaschema tables, which always
// live in PUB whatever schema the application tables use.

func (Dialect) TablesQuery(bind database.Bind, schema string) string {
	return `
		SELECT "_File-Name" AS "name", "_Desc" AS "label"
		FROM PUB."_File"
		WHERE "_File-Number" > 0
		  AND "_Owner" = ` + bind(schema) + `
		ORDER BY "_File-Name"`
}

func (Dialect) FieldsQuery(bind database.Bind, _, table string) string {
	return `
		SELECT f."_Field-Name" AS "name", f."_Data-Type" AS "type", f."_Label" AS "label"
		FROM PUB."_Field" f
		WHERE f."_File-Recid" = (SELECT ROWID FROM PUB."_File" WHERE "_File-Name" = ` + bind(table) + `)
		ORDER BY f."_Order"`
}

func (Dialect) IndexesQuery(bind database.Bind, _, table string) string {
	return `
		SELECT i."_Index-Name" AS "name",
		       i."_Unique" AS "unique",
		       CASE WHEN i.ROWID = fi."_Prime-Index" THEN 1 ELSE 0 END AS "primary"
		FROM PUB."_Index" i, PUB."_File" fi
		WHERE fi."_File-Name" = ` + bind(table) + `
		  AND i."_File-Recid" = fi.ROWID
		ORDER BY i."_Index-Name"`
}

func (Dialect) MapError(err error, msg string) error { return mapError(err, msg) }
