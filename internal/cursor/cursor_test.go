package cursor_test

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/tablegate/internal/cursor"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/database/dbtest"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/schema"
)

// countingSessions records how many sessions were opened.
type countingSessions struct {
	*database.Manager
	opened atomic.Int32
}

func (c *countingSessions) OpenRead(ctx context.Context) (*database.Session, error) {
	c.opened.Add(1)
	return c.Manager.OpenRead(ctx)
}

func (c *countingSessions) OpenWrite(ctx context.Context) (*database.Session, error) {
	c.opened.Add(1)
	return c.Manager.OpenWrite(ctx)
}

func newFacade(t *testing.T, stmts ...string) (*cursor.Facade, *countingSessions) {
	t.Helper()
	m := dbtest.Open(t, stmts...)
	catalog, err := schema.NewCatalog(m.Schema(), 16, logger.Nop())
	require.NoError(t, err)
	sessions := &countingSessions{Manager: m}
	return cursor.New(sessions, catalog), sessions
}

func custNums(t *testing.T, res *database.Result) []int64 {
	t.Helper()
	out := make([]int64, 0, res.Len())
	for _, r := range res.Rows {
		v, ok := r.Get("CustNum")
		require.True(t, ok)
		out = append(out, v.(int64))
	}
	return out
}

func seq(from, to int64) []int64 {
	out := []int64{}
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestFacade_Page(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(25)...)
	ctx := context.Background()

	tests := []struct {
		page, size int
		want       []int64
	}{
		{1, 10, seq(1, 10)},
		{2, 10, seq(11, 20)},
		{3, 10, seq(21, 25)},
		{4, 10, seq(1, 0)},
		{1, 25, seq(1, 25)},
		{7, 4, seq(25, 25)},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d size %d", tt.page, tt.size), func(t *testing.T) {
			res, err := f.Page(ctx, "Customer", tt.page, tt.size)
			require.NoError(t, err)
			assert.Equal(t, tt.want, custNums(t, res))
		})
	}
}

func TestFacade_PageRejectsBadWindowsWithoutOpeningSession(t *testing.T) {
	f, sessions := newFacade(t, dbtest.Customers(5)...)
	ctx := context.Background()

	tests := []struct {
		name       string
		page, size int
	}{
		{"page zero", 0, 10},
		{"negative page", -1, 10},
		{"size zero", 1, 0},
		{"negative size", 1, -5},
		{"size over max", 1, 101},
		{"offset overflows", 1844674407370955162, 10},
		{"last page overflows", math.MaxInt, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Page(ctx, "Customer", tt.page, tt.size)
			assert.True(t, errs.IsInvalidInput(err))
		})
	}
	assert.Equal(t, int32(0), sessions.opened.Load())
}

func TestFacade_FirstAndLast(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(25)...)
	ctx := context.Background()

	res, err := f.First(ctx, "Customer")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, custNums(t, res))

	res, err = f.Last(ctx, "customer")
	require.NoError(t, err)
	assert.Equal(t, []int64{25}, custNums(t, res))
}

func TestFacade_FirstOnEmptyTable(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(0)...)

	res, err := f.First(context.Background(), "Customer")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestFacade_NextAndPrevious(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(5)...)
	ctx := context.Background()

	res, err := f.Next(ctx, "Customer", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, custNums(t, res))

	res, err = f.Next(ctx, "Customer", 4)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, custNums(t, res))

	res, err = f.Next(ctx, "Customer", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len(), "past the end")

	res, err = f.Previous(ctx, "Customer", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, custNums(t, res))

	res, err = f.Previous(ctx, "Customer", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	_, err = f.Previous(ctx, "NoSuchTable", 0)
	assert.True(t, errs.IsInvalidInput(err), "offset 0 still checks the table")

	_, err = f.Next(ctx, "Customer", -1)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = f.Previous(ctx, "Customer", -1)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFacade_UnknownTable(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(1)...)

	_, err := f.First(context.Background(), "Nope")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestFacade_RowIDAtAndUpdate(t *testing.T) {
	f, _ := newFacade(t, dbtest.Customers(5)...)
	ctx := context.Background()

	res, err := f.RowIDAt(ctx, "Customer", 2)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, []string{cursor.RowIDColumn}, res.Columns)

	id, ok := res.Rows[0].Get(cursor.RowIDColumn)
	require.True(t, ok)
	rowID := database.AsString(id)

	const literal = "'; DROP TABLE x; --"
	n, err := f.UpdateRecord(ctx, "Customer", rowID, map[string]any{
		"name": literal,
		"City": json.Number("42"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	res, err = f.Next(ctx, "Customer", 2)
	require.NoError(t, err)
	name, _ := res.Rows[0].Get("Name")
	assert.Equal(t, literal, name)

	res, err = f.Page(ctx, "Customer", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Len(), "table untouched by the literal")
}

func TestFacade_UpdateRecordValidation(t *testing.T) {
	f, sessions := newFacade(t, dbtest.Customers(2)...)
	ctx := context.Background()

	_, err := f.UpdateRecord(ctx, "Customer", "1", map[string]any{})
	assert.True(t, errs.IsInvalidInput(err), "empty field map")

	_, err = f.UpdateRecord(ctx, "Customer", "", map[string]any{"Name": "x"})
	assert.True(t, errs.IsInvalidInput(err), "empty row id")

	_, err = f.UpdateRecord(ctx, "Customer", "1", map[string]any{"Name": map[string]any{"a": 1}})
	assert.True(t, errs.IsInvalidInput(err), "object value")

	_, err = f.UpdateRecord(ctx, "Customer", "1", map[string]any{"Name": []any{"a"}})
	assert.True(t, errs.IsInvalidInput(err), "array value")

	assert.Equal(t, int32(0), sessions.opened.Load())

	_, err = f.UpdateRecord(ctx, "Customer", "1", map[string]any{"Nope": "x"})
	assert.True(t, errs.IsInvalidInput(err), "unknown column")

	_, err = f.UpdateRecord(ctx, "Customer", "1", map[string]any{"Name": "x", "NAME": "y"})
	assert.True(t, errs.IsInvalidInput(err), "duplicate column")

	_, err = f.UpdateRecord(ctx, "Customer", "999", map[string]any{"Name": "x"})
	assert.True(t, errs.IsNotFound(err))
}

func TestFacade_ConcurrentTablesSeeOwnRows(t *testing.T) {
	f, _ := newFacade(t, append(dbtest.Customers(20), dbtest.Orders(20)...)...)
	ctx := context.Background()

	var wg sync.WaitGroup
	failures := make(chan string, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(page int) {
			defer wg.Done()
			res, err := f.Page(ctx, "Customer", page%4+1, 5)
			if err != nil || res.Len() != 5 {
				failures <- fmt.Sprintf("customer page %d: %v", page, err)
				return
			}
			if _, ok := res.Rows[0].Get("OrderNum"); ok {
				failures <- "customer page returned order columns"
			}
		}(i)
		go func(page int) {
			defer wg.Done()
			res, err := f.Page(ctx, "Order", page%4+1, 5)
			if err != nil || res.Len() != 5 {
				failures <- fmt.Sprintf("order page %d: %v", page, err)
				return
			}
			if _, ok := res.Rows[0].Get("Name"); ok {
				failures <- "order page returned customer columns"
			}
		}(i)
	}
	wg.Wait()
	close(failures)

	for msg := range failures {
		t.Error(msg)
	}
}
