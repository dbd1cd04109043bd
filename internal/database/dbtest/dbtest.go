// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/sqlite"
	"github.com/koustreak/tablegate/internal/logger"
)

// Config returns a pool configuration for a fresh database file in a
// per-test temporary directory.
func Config(t testing.TB) *database.Config {
	t.Helper()
	cfg := database.DefaultConfig("file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)")
	cfg.Dialect = sqlite.Name
	cfg.MaxConns = 4
	cfg.MaxIdleConns = 4
	cfg.ConnectTimeout = 5 * time.Second
	cfg.LoginTimeout = 5 * time.Second
	cfg.QueryTimeout = 5 * time.Second
	cfg.MaxPageSize = 100
	return cfg
}

// Open creates the database, runs setup statements on it and returns a
// Manager over it. The Manager is closed when the test ends.
func Open(t testing.TB, setup ...string) *database.Manager {
	t.Helper()
	cfg := Config(t)

	raw, err := sql.Open("sqlite", cfg.DSN)
	require.NoError(t, err)
	for _, stmt := range setup {
		_, err := raw.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	require.NoError(t, raw.Close())

	m, err := database.Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// Customers returns statements creating a "Customer" table holding n rows
// with CustNum 1..n and Name "customer-01".. in insertion order.
func Customers(n int) []string {
	stmts := []string{`CREATE TABLE "Customer" ("CustNum" INTEGER NOT NULL, "Name" TEXT, "City" TEXT)`}
	for i := 1; i <= n; i++ {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO "Customer" ("CustNum", "Name", "City") VALUES (%d, 'customer-%02d', 'city-%d')`, i, i, i%3))
	}
	return stmts
}

// Orders returns statements creating an "Order" table with n rows and a
// unique index on OrderNum.
func Orders(n int) []string {
	stmts := []string{
		`CREATE TABLE "Order" ("OrderNum" INTEGER PRIMARY KEY, "CustNum" INTEGER, "Total" REAL)`,
		`CREATE INDEX "OrderCust" ON "Order" ("CustNum")`,
	}
	for i := 1; i <= n; i++ {
		stmts = append(stmts, fmt.Sprintf(
			`INSERT INTO "Order" ("OrderNum", "CustNum", "Total") VALUES (%d, %d, %d.5)`, 1000+i, i, i))
	}
	return stmts
}
