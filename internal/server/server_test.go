package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dbtest"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/schema"
	"github.com/koustreak/tablegate/internal/server"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// countingDB records how many sessions the handlers opened.
type countingDB struct {
	*database.Manager
	opened atomic.Int32
}

func (c *countingDB) OpenRead(ctx context.Context) (*database.Session, error) {
	c.opened.Add(1)
	return c.Manager.OpenRead(ctx)
}

func (c *countingDB) OpenWrite(ctx context.Context) (*database.Session, error) {
	c.opened.Add(1)
	return c.Manager.OpenWrite(ctx)
}

type fixture struct {
	handler http.Handler
	db      *countingDB
}

func newFixture(t *testing.T, policyFile string) *fixture {
	t.Helper()
	m := dbtest.Open(t, append(dbtest.Customers(25), dbtest.Orders(3)...)...)
	db := &countingDB{Manager: m}

	catalog, err := schema.NewCatalog(m.Schema(), 16, logger.Nop())
	require.NoError(t, err)

	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	users, err := auth.NewUsers([]auth.User{
		{Username: "alice", PasswordHash: hash("wonderland"), Role: "admin"},
		{Username: "bob", PasswordHash: hash("builder"), Role: "viewer"},
	})
	require.NoError(t, err)

	acfg := auth.DefaultConfig()
	acfg.SessionSecret = testSecret
	acfg.PolicyFile = policyFile
	gate, err := auth.NewGate(acfg, users, logger.Nop())
	require.NoError(t, err)

	cfg := server.DefaultConfig()
	cfg.StaticDir = ""
	srv := server.New(cfg, db, catalog, gate, logger.Nop())
	return &fixture{handler: srv.Handler(), db: db}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Accept", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func decodeRows(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	return rows
}

func custNums(rows []map[string]any) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i], _ = r["CustNum"].(float64)
	}
	return out
}

func TestDataRoutesRequireSession(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodGet, "/table-data/Customer/1/10", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/move-to-first/Customer", nil)
	browser := httptest.NewRecorder()
	f.handler.ServeHTTP(browser, req)
	assert.Equal(t, http.StatusSeeOther, browser.Code)
	assert.Equal(t, "/login", browser.Header().Get("Location"))

	forged := &http.Cookie{Name: "tablegate_session", Value: "not-a-token"}
	rec = f.do(t, http.MethodGet, "/tables-list", "", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Zero(t, f.db.opened.Load())
}

func TestLogin(t *testing.T) {
	f := newFixture(t, "")

	form := url.Values{"username": {"alice"}, "password": {"wrong"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?error=1", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	form = url.Values{"username": {"alice"}, "password": {"wonderland"}}
	req = httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.True(t, rec.Result().Cookies()[0].HttpOnly)
}

func TestLoginRateLimited(t *testing.T) {
	f := newFixture(t, "")
	form := url.Values{"username": {"alice"}, "password": {"wrong"}}.Encode()

	var last int
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last, "forwarding headers are ignored without a trusted proxy")
}

func TestLoginPage(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/login?error=1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<form method="post" action="/login">`)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
}

func TestLogoutEndsSession(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	rec := f.do(t, http.MethodGet, "/move-to-first/Customer", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/logout", "", cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)

	rec = f.do(t, http.MethodGet, "/move-to-first/Customer", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTableData(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	rows := decodeRows(t, f.do(t, http.MethodGet, "/table-data/Customer/2/10", "", cookie))
	assert.Equal(t, []float64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, custNums(rows))

	rows = decodeRows(t, f.do(t, http.MethodGet, "/table-data/Customer/3/10", "", cookie))
	assert.Equal(t, []float64{21, 22, 23, 24, 25}, custNums(rows))

	rec := f.do(t, http.MethodGet, "/table-data/Customer/4/10", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestTableDataRejectsBadWindows(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	tests := []struct {
		name string
		path string
	}{
		{"page zero", "/table-data/Customer/0/10"},
		{"negative page", "/table-data/Customer/-1/10"},
		{"size zero", "/table-data/Customer/1/0"},
		{"size above maximum", "/table-data/Customer/1/1000"},
		{"page offset overflows", "/table-data/Customer/1844674407370955162/10"},
		{"non-numeric page", "/table-data/Customer/one/10"},
		{"non-numeric size", "/table-data/Customer/1/ten"},
		{"non-numeric offset", "/move-to-next/Customer/x"},
		{"negative offset", "/move-to-next/Customer/-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "", cookie)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Zero(t, f.db.opened.Load())
}

func TestCursorRoutes(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	rows := decodeRows(t, f.do(t, http.MethodGet, "/move-to-first/Customer", "", cookie))
	assert.Equal(t, []float64{1}, custNums(rows))

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-last/Customer", "", cookie))
	assert.Equal(t, []float64{25}, custNums(rows))

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-next/Customer/3", "", cookie))
	assert.Equal(t, []float64{4}, custNums(rows))

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-previous/Customer/3", "", cookie))
	assert.Equal(t, []float64{3}, custNums(rows))

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-previous/Customer/0", "", cookie))
	assert.Empty(t, rows)

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-next/Customer/25", "", cookie))
	assert.Empty(t, rows)
}

func TestUnknownTable(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	rec := f.do(t, http.MethodGet, "/move-to-first/Nope", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = f.do(t, http.MethodGet, "/move-to-first/Customer%22%3BDROP%20TABLE%20%22Order", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/move-to-previous/Nope/0", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRecord(t *testing.T) {
	f := newFixture(t, "")
	admin := f.login(t, "alice", "wonderland")

	rows := decodeRows(t, f.do(t, http.MethodGet, "/getROWID/Customer/0", "", admin))
	require.Len(t, rows, 1)
	rowID := fmt.Sprint(rows[0]["ROWID"])

	const malicious = `'; DROP TABLE x; --`
	body := fmt.Sprintf(`{"Name": %q, "City": null}`, malicious)
	rec := f.do(t, http.MethodPut, "/update-record/Customer/"+rowID, body, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"Record updated successfully","rowsAffected":1}`, rec.Body.String())

	rows = decodeRows(t, f.do(t, http.MethodGet, "/move-to-first/Customer", "", admin))
	require.Len(t, rows, 1)
	assert.Equal(t, malicious, rows[0]["Name"])
	assert.Nil(t, rows[0]["City"])

	rec = f.do(t, http.MethodPut, "/update-record/Customer/99999", `{"Name":"x"}`, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRecordRejections(t *testing.T) {
	f := newFixture(t, "")
	admin := f.login(t, "alice", "wonderland")
	viewer := f.login(t, "bob", "builder")

	rec := f.do(t, http.MethodPut, "/update-record/Customer/1", `{"Name":"x"}`, viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"array body", `[1, 2]`},
		{"empty object", `{}`},
		{"unknown column", `{"Nope": 1}`},
		{"nested value", `{"Name": {"a": 1}}`},
		{"trailing data", `{"Name": "a"} {"Name": "b"}`},
		{"malformed", `{"Name": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/update-record/Customer/1", tt.body, admin)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestSchemaRoutes(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	rec := f.do(t, http.MethodGet, "/tables-list", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var tables []database.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
	names := make([]string, len(tables))
	for i, tbl := range tables {
		names[i] = tbl.Name
	}
	assert.ElementsMatch(t, []string{"Customer", "Order"}, names)

	rec = f.do(t, http.MethodGet, "/table-structure/customer", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var cols []database.ColumnType
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	require.Len(t, cols, 3)
	assert.Equal(t, "CustNum", cols[0].Name)

	rec = f.do(t, http.MethodGet, "/table-fields/Order", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var fields []database.FieldInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	require.Len(t, fields, 3)
	assert.Equal(t, "OrderNum", fields[0].Name)

	rec = f.do(t, http.MethodGet, "/table-indexes/Order", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"OrderCust"`)
}

func TestPolicyRestrictsTables(t *testing.T) {
	policy := filepath.Join(t.TempDir(), "policy.csv")
	require.NoError(t, os.WriteFile(policy, []byte("p, admin, *, read\np, admin, *, write\np, viewer, Customer, read\n"), 0600))
	f := newFixture(t, policy)
	viewer := f.login(t, "bob", "builder")

	rec := f.do(t, http.MethodGet, "/tables-list", "", viewer)
	require.Equal(t, http.StatusOK, rec.Code)
	var tables []database.TableInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
	require.Len(t, tables, 1)
	assert.Equal(t, "Customer", tables[0].Name)

	before := f.db.opened.Load()
	rec = f.do(t, http.MethodGet, "/table-data/Order/1/10", "", viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = f.do(t, http.MethodGet, "/table-fields/Order", "", viewer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, before, f.db.opened.Load())
}

func TestDropSchemaCache(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodDelete, "/schema-cache", "", f.login(t, "bob", "builder"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodDelete, "/schema-cache", "", f.login(t, "alice", "wonderland"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOperationalRoutes(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tablegate_http_requests_total")

	rec = f.do(t, http.MethodGet, "/api-docs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc struct {
		OpenAPI string                               `json:"openapi"`
		Paths   map[string]map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/table-data/{tableName}/{page}/{pageSize}")
	assert.Contains(t, doc.Paths["/update-record/{tableName}/{rowID}"], "put")
	assert.Contains(t, doc.Paths["/login"], "get")
	assert.Contains(t, doc.Paths["/login"], "post")

	rec = f.do(t, http.MethodGet, "/api-docs.yaml", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")
}

func TestConcurrentRequestsSeeOwnTable(t *testing.T) {
	f := newFixture(t, "")
	cookie := f.login(t, "bob", "builder")

	var wg sync.WaitGroup
	errs := make(chan string, 40)
	for i := 0; i < 20; i++ {
		for _, table := range []string{"Customer", "Order"} {
			wg.Add(1)
			go func(table string) {
				defer wg.Done()
				rec := f.do(t, http.MethodGet, "/table-data/"+table+"/1/3", "", cookie)
				if rec.Code != http.StatusOK {
					errs <- fmt.Sprintf("%s: status %d", table, rec.Code)
					return
				}
				var rows []map[string]any
				if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
					errs <- err.Error()
					return
				}
				key := "Name"
				if table == "Order" {
					key = "OrderNum"
				}
				if len(rows) != 3 {
					errs <- fmt.Sprintf("%s: got %d rows", table, len(rows))
				}
				for _, r := range rows {
					if _, ok := r[key]; !ok {
						errs <- fmt.Sprintf("%s: foreign row %v", table, r)
					}
				}
			}(table)
		}
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}
