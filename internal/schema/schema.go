// Package schema is the table allow-list and metadata catalog. Table and
// column names taken from requests are only ever used in SQL after being
// resolved here.
package schema

import (
	"context"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/metrics"
)

// DefaultCacheSize bounds the number of tables whose columns are cached.
const DefaultCacheSize = 256

// Reader is what the HTTP layer needs from the catalog.
type Reader interface {
	// Tables lists the store's tables and refreshes the allow-list.
	Tables(ctx context.Context, q database.Querier) ([]database.TableInfo, error)

	// ResolveTable maps a requested name to the store's spelling.
	ResolveTable(ctx context.Context, q database.Querier, name string) (string, error)

	// Structure describes the table with a zero-row statement.
	Structure(ctx context.Context, q database.Querier, table string) ([]database.ColumnType, error)

	// Columns returns the table's column names, cached.
	Columns(ctx context.Context, q database.Querier, table string) ([]string, error)

	Fields(ctx context.Context, q database.Querier, table string) ([]database.FieldInfo, error)
	Indexes(ctx context.Context, q database.Querier, table string) ([]database.IndexInfo, error)

	// Invalidate drops everything cached.
	Invalidate()
}

const tablesKey = "\x00tables"

// Catalog implements Reader. The allow-list and per-table column lists
// live in one LRU; it is safe for concurrent use.
type Catalog struct {
	schema string
	cache  *lru.Cache[string, []string]
	log    *logger.Logger
}

var _ Reader = (*Catalog)(nil)

// NewCatalog creates a catalog for tables in schema.
func NewCatalog(schema string, size int, log *logger.Logger) (*Catalog, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "invalid schema cache size", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Catalog{schema: schema, cache: cache, log: log}, nil
}

// Schema returns the schema tables are qualified with.
func (c *Catalog) Schema() string { return c.schema }

// Invalidate drops the allow-list and every cached column list.
func (c *Catalog) Invalidate() {
	c.cache.Purge()
	metrics.SchemaCacheEvents.WithLabelValues("purge").Inc()
	c.log.Info("schema cache invalidated")
}

// Tables queries the table list and stores the names as the allow-list.
func (c *Catalog) Tables(ctx context.Context, q database.Querier) ([]database.TableInfo, error) {
	d := q.Dialect()
	stmt, args := database.CatalogStatement(d, func(bind database.Bind) string {
		return d.TablesQuery(bind, c.schema)
	})
	res, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	tables := database.TablesFromResult(res)
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	c.cache.Add(tablesKey, names)
	return tables, nil
}

// ResolveTable returns the store's spelling of name: an exact match wins,
// otherwise the first case-insensitive match. Unknown names are invalid
// input.
func (c *Catalog) ResolveTable(ctx context.Context, q database.Querier, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "table name is required")
	}

	names, ok := c.cache.Get(tablesKey)
	if ok {
		metrics.SchemaCacheEvents.WithLabelValues("hit").Inc()
	} else {
		metrics.SchemaCacheEvents.WithLabelValues("miss").Inc()
		tables, err := c.Tables(ctx, q)
		if err != nil {
			return "", err
		}
		names = make([]string, len(tables))
		for i, t := range tables {
			names[i] = t.Name
		}
	}

	if resolved, ok := match(names, name); ok {
		return resolved, nil
	}
	return "", errs.Newf(errs.ErrKindInvalidInput, "unknown table %q", name)
}

// match finds name in names, exactly or else case-insensitively.
func match(names []string, name string) (string, bool) {
	for _, n := range names {
		if n == name {
			return n, true
		}
	}
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// Structure resolves table and describes it with SELECT * ... WHERE 1=0. The
// described column names refresh the table's cached column list.
func (c *Catalog) Structure(ctx context.Context, q database.Querier, table string) ([]database.ColumnType, error) {
	resolved, err := c.ResolveTable(ctx, q, table)
	if err != nil {
		return nil, err
	}
	return c.describe(ctx, q, resolved)
}

func (c *Catalog) describe(ctx context.Context, q database.Querier, resolved string) ([]database.ColumnType, error) {
	stmt, args := database.Select(q.Dialect(), c.schema, resolved).Empty().Build()
	cols, err := q.Describe(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	c.cache.Add(columnsKey(resolved), names)
	return cols, nil
}

// Columns returns the column names of table, probing on a cache miss.
// table must already be resolved.
func (c *Catalog) Columns(ctx context.Context, q database.Querier, table string) ([]string, error) {
	if names, ok := c.cache.Get(columnsKey(table)); ok {
		metrics.SchemaCacheEvents.WithLabelValues("hit").Inc()
		return names, nil
	}
	metrics.SchemaCacheEvents.WithLabelValues("miss").Inc()

	cols, err := c.describe(ctx, q, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names, nil
}

// Fields lists table's fields from the store catalog.
func (c *Catalog) Fields(ctx context.Context, q database.Querier, table string) ([]database.FieldInfo, error) {
	resolved, err := c.ResolveTable(ctx, q, table)
	if err != nil {
		return nil, err
	}
	d := q.Dialect()
	stmt, args := database.CatalogStatement(d, func(bind database.Bind) string {
		return d.FieldsQuery(bind, c.schema, resolved)
	})
	res, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return database.FieldsFromResult(res), nil
}

// Indexes lists table's indexes from the store catalog.
func (c *Catalog) Indexes(ctx context.Context, q database.Querier, table string) ([]database.IndexInfo, error) {
	resolved, err := c.ResolveTable(ctx, q, table)
	if err != nil {
		return nil, err
	}
	d := q.Dialect()
	stmt, args := database.CatalogStatement(d, func(bind database.Bind) string {
		return d.IndexesQuery(bind, c.schema, resolved)
	})
	res, err := q.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	return database.IndexesFromResult(res), nil
}

func columnsKey(table string) string { return "columns:" + table }
