package server

import (
	"net/http"
	"strings"
)

// route is one entry of the route table. The same table registers the
// chi handlers and generates the API document.
type route struct {
	Method  string
	Pattern string
	Summary string
	Tag     string
	Public  bool
	Body    string // request body description, empty when none
	Handler http.HandlerFunc
}

const (
	tagSchema  = "schema"
	tagCursor  = "cursor"
	tagRecords = "records"
	tagSession = "session"
	tagOps     = "operations"
)

func (s *Server) routes() []route {
	return []route{
		{http.MethodGet, "/table-structure/{tableName}", "Column structure reported by a zero-row query", tagSchema, false, "", s.tableStructure},
		{http.MethodGet, "/tables-list", "Tables the caller may read", tagSchema, false, "", s.tablesList},
		{http.MethodGet, "/table-fields/{tableName}", "Catalog fields of a table", tagSchema, false, "", s.tableFields},
		{http.MethodGet, "/table-indexes/{tableName}", "Indexes of a table", tagSchema, false, "", s.tableIndexes},
		{http.MethodGet, "/move-to-first/{tableName}", "First record", tagCursor, false, "", s.moveToFirst},
		{http.MethodGet, "/move-to-last/{tableName}", "Last record ordered by the first column", tagCursor, false, "", s.moveToLast},
		{http.MethodGet, "/move-to-next/{tableName}/{currentRowId}", "Record at the given offset", tagCursor, false, "", s.moveToNext},
		{http.MethodGet, "/move-to-previous/{tableName}/{currentRowId}", "Record before the given offset", tagCursor, false, "", s.moveToPrevious},
		{http.MethodGet, "/getROWID/{tableName}/{currentRowId}", "Row identifier of the record at the given offset", tagCursor, false, "", s.getRowID},
		{http.MethodPut, "/update-record/{tableName}/{rowID}", "Update one record by row identifier", tagRecords, false, "JSON object of column names to new values", s.updateRecord},
		{http.MethodGet, "/table-data/{tableName}/{page}/{pageSize}", "One page of records", tagRecords, false, "", s.tableData},
		{http.MethodDelete, "/schema-cache", "Drop the cached table and column lists", tagOps, false, "", s.dropSchemaCache},
		{http.MethodGet, "/login", "Login form", tagSession, true, "", s.loginForm},
		{http.MethodPost, "/login", "Start a session", tagSession, true, "Form fields username and password", s.loginSubmit},
		{http.MethodDelete, "/logout", "End the session", tagSession, true, "", s.logout},
		{http.MethodGet, "/healthz", "Store reachability", tagOps, true, "", s.healthz},
		{http.MethodGet, "/api-docs", "This document as JSON", tagOps, true, "", s.apiDocsJSON},
		{http.MethodGet, "/api-docs.yaml", "This document as YAML", tagOps, true, "", s.apiDocsYAML},
	}
}

// integerParams are the path parameters parsed as integers.
var integerParams = map[string]bool{
	"currentRowId": true,
	"page":         true,
	"pageSize":     true,
}

// pathParams returns the {name} segments of a chi pattern in order.
func pathParams(pattern string) []string {
	var names []string
	for _, seg := range strings.Split(pattern, "/") {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(seg, "{"), "}"))
		}
	}
	return names
}
