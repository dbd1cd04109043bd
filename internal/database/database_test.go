package database_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dbtest"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*database.Config)
	}{
		{"missing dsn", func(c *database.Config) { c.DSN = "" }},
		{"zero max conns", func(c *database.Config) { c.MaxConns = 0 }},
		{"zero query timeout", func(c *database.Config) { c.QueryTimeout = 0 }},
		{"zero page size", func(c *database.Config) { c.MaxPageSize = 0 }},
		{"unknown dialect", func(c *database.Config) { c.Dialect = "db2" }},
	}

	require.NoError(t, dbtest.Config(t).Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := dbtest.Config(t)
			tt.mutate(cfg)
			assert.True(t, errs.IsInvalidInput(cfg.Validate()))
		})
	}
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := dbtest.Config(t)
	cfg.DSN = ""
	_, err := database.Open(context.Background(), cfg, logger.Nop())
	assert.True(t, errs.IsInvalidInput(err))
}

func TestOpen_KeepsOwnConfig(t *testing.T) {
	cfg := dbtest.Config(t)
	m, err := database.Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	cfg.Schema = "other"
	cfg.MaxPageSize = 1
	assert.Equal(t, "", m.Schema())
	assert.Equal(t, 100, m.MaxPageSize())
}

func TestSession_QueryPreservesColumnOrder(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(3)...)
	ctx := context.Background()

	s, err := m.OpenRead(ctx)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, database.ReadUncommitted, s.Isolation())

	res, err := s.Query(ctx, `SELECT "Name", "CustNum" FROM "Customer" WHERE "CustNum" = ?`, 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, []string{"Name", "CustNum"}, res.Columns)

	name, ok := res.Rows[0].Get("Name")
	require.True(t, ok)
	assert.Equal(t, "customer-02", name)
}

func TestSession_QueryNoRowsIsEmptyNotNil(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(1)...)
	ctx := context.Background()

	s, err := m.OpenRead(ctx)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Query(ctx, `SELECT * FROM "Customer" WHERE 1=0`)
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Equal(t, 0, res.Len())
}

func TestSession_Exec(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(5)...)
	ctx := context.Background()

	s, err := m.OpenWrite(ctx)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, database.ReadCommitted, s.Isolation())

	n, err := s.Exec(ctx, `UPDATE "Customer" SET "City" = ? WHERE "CustNum" <= ?`, "Lyon", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSession_Describe(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(2)...)
	ctx := context.Background()

	s, err := m.OpenRead(ctx)
	require.NoError(t, err)
	defer s.Close()

	cols, err := s.Describe(ctx, `SELECT * FROM "Customer" WHERE 1=0`)
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "CustNum", cols[0].Name)
	assert.Equal(t, "INTEGER", cols[0].DataType)
	assert.Equal(t, "Name", cols[1].Name)
}

func TestSession_QueryErrorsAreClassified(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(1)...)
	ctx := context.Background()

	s, err := m.OpenRead(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Query(ctx, `SELECT * FROM "Missing"`)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
}

func TestSession_NotConnected(t *testing.T) {
	ctx := context.Background()

	var never *database.Session
	_, err := never.Query(ctx, "SELECT 1")
	assert.True(t, errs.IsConnectionFailed(err))
	assert.NoError(t, never.Close())

	m := dbtest.Open(t)
	s, err := m.OpenRead(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")

	_, err = s.Query(ctx, "SELECT 1")
	assert.True(t, errs.IsConnectionFailed(err))
	assert.Contains(t, err.Error(), "not connected")

	_, err = s.Exec(ctx, "SELECT 1")
	assert.True(t, errs.IsConnectionFailed(err))

	_, err = s.Describe(ctx, "SELECT 1")
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestSession_CanceledContext(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(1)...)

	s, err := m.OpenRead(context.Background())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Query(ctx, `SELECT * FROM "Customer"`)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
}

func TestManager_ConcurrentSessions(t *testing.T) {
	m := dbtest.Open(t, dbtest.Customers(10)...)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := m.OpenRead(ctx)
			if err != nil {
				errCh <- err
				return
			}
			defer s.Close()
			if _, err := s.Query(ctx, `SELECT * FROM "Customer"`); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
}
