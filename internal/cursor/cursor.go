// Package cursor turns record-at-a-time navigation and paged grid requests
// into single windowed statements. Positions are zero-based offsets
// supplied by the client; nothing is kept between requests.
package cursor

import (
	"context"
	"math"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/metrics"
	"github.com/koustreak/tablegate/internal/schema"
)

// RowIDColumn is the column name RowIDAt returns the identifier under.
const RowIDColumn = "ROWID"

// Sessions hands out per-request sessions. *database.Manager implements it.
type Sessions interface {
	Dialect() database.Dialect
	Schema() string
	MaxPageSize() int
	OpenRead(ctx context.Context) (*database.Session, error)
	OpenWrite(ctx context.Context) (*database.Session, error)
}

// Facade is the paged cursor. It is safe for concurrent use.
type Facade struct {
	db      Sessions
	catalog schema.Reader
}

// New returns a Facade reading through db and resolving names with catalog.
func New(db Sessions, catalog schema.Reader) *Facade {
	return &Facade{db: db, catalog: catalog}
}

// First returns the first row of table.
func (f *Facade) First(ctx context.Context, table string) (*database.Result, error) {
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.Window(0, 1)
	})
	observe("first", err)
	return res, err
}

// Last returns the row that sorts first under ORDER BY 1 DESC.
func (f *Facade) Last(ctx context.Context, table string) (*database.Result, error) {
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.OrderByOrdinal(1, database.Desc).Window(0, 1)
	})
	observe("last", err)
	return res, err
}

// Next returns the row at offset. Past the end it returns no rows.
func (f *Facade) Next(ctx context.Context, table string, offset int) (*database.Result, error) {
	if err := checkOffset(offset); err != nil {
		observe("next", err)
		return nil, err
	}
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.Window(offset, 1)
	})
	observe("next", err)
	return res, err
}

// Previous returns the row at offset-1. At offset 0 there is no previous
// row: the table is still resolved, then the result is empty and no row
// query runs.
func (f *Facade) Previous(ctx context.Context, table string, offset int) (*database.Result, error) {
	if err := checkOffset(offset); err != nil {
		observe("previous", err)
		return nil, err
	}
	if offset == 0 {
		err := f.resolve(ctx, table)
		observe("previous", err)
		if err != nil {
			return nil, err
		}
		return emptyResult(), nil
	}
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.Window(offset-1, 1)
	})
	observe("previous", err)
	return res, err
}

// RowIDAt returns the store's row identifier of the row at offset, in a
// single column named ROWID.
func (f *Facade) RowIDAt(ctx context.Context, table string, offset int) (*database.Result, error) {
	if err := checkOffset(offset); err != nil {
		observe("rowid", err)
		return nil, err
	}
	expr, ok := f.db.Dialect().RowID()
	if !ok {
		err := errs.Newf(errs.ErrKindUnsupported, "%s has no row identifier", f.db.Dialect().Name())
		observe("rowid", err)
		return nil, err
	}
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.Project(expr, RowIDColumn).Window(offset, 1)
	})
	observe("rowid", err)
	return res, err
}

// Page returns page (1-based) of size rows: the window
// [(page-1)*size, page*size). Pages past the end are empty.
func (f *Facade) Page(ctx context.Context, table string, page, size int) (*database.Result, error) {
	if err := f.checkPage(page, size); err != nil {
		observe("page", err)
		return nil, err
	}
	res, err := f.read(ctx, table, func(b *database.SelectBuilder) {
		b.Window((page-1)*size, size)
	})
	observe("page", err)
	return res, err
}

// resolve checks that table exists on a read session without selecting
// any rows.
func (f *Facade) resolve(ctx context.Context, table string) error {
	s, err := f.db.OpenRead(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = f.catalog.ResolveTable(ctx, s, table)
	return err
}

// read opens a read-uncommitted session, resolves table and runs the one
// SELECT shaped by build.
func (f *Facade) read(ctx context.Context, table string, build func(*database.SelectBuilder)) (*database.Result, error) {
	s, err := f.db.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	resolved, err := f.catalog.ResolveTable(ctx, s, table)
	if err != nil {
		return nil, err
	}

	b := database.Select(s.Dialect(), f.db.Schema(), resolved)
	build(b)
	stmt, args := b.Build()
	return s.Query(ctx, stmt, args...)
}

func checkOffset(offset int) error {
	if offset < 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "row offset must be >= 0, got %d", offset)
	}
	return nil
}

func (f *Facade) checkPage(page, size int) error {
	switch {
	case page < 1:
		return errs.Newf(errs.ErrKindInvalidInput, "page must be >= 1, got %d", page)
	case size < 1:
		return errs.Newf(errs.ErrKindInvalidInput, "page size must be >= 1, got %d", size)
	case size > f.db.MaxPageSize():
		return errs.Newf(errs.ErrKindInvalidInput, "page size must be <= %d, got %d", f.db.MaxPageSize(), size)
	case page-1 > math.MaxInt/size:
		// (page-1)*size would wrap to a negative offset.
		return errs.Newf(errs.ErrKindInvalidInput, "page %d of size %d is out of range", page, size)
	}
	return nil
}

func emptyResult() *database.Result {
	return &database.Result{Columns: []string{}, Rows: []database.Row{}}
}

func observe(op string, err error) {
	metrics.CursorOperations.WithLabelValues(op, metrics.Status(err)).Inc()
}
