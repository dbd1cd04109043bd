package database

import (
	"sort"
	"strings"
	"sync"

	"github.com/koustreak/tablegate/internal/errs"
)

// Isolation is the transaction visibility level applied to a session.
type Isolation int

const (
	ReadUncommitted Isolation = iota // used by OpenRead
	ReadCommitted                    // used by OpenWrite
)

func (i Isolation) String() string {
	if i == ReadCommitted {
		return "read_committed"
	}
	return "read_uncommitted"
}

// Bind appends v to the statement's argument list and returns the
// placeholder that refers to it.
type Bind func(v any) string

// Dialect captures everything that differs between stores: placeholder and
// quoting style, the offset/fetch window, the row identifier, session
// isolation and the catalog queries. Implementations live in the driver
// subpackages and register themselves in init.
type Dialect interface {
	Name() string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string

	// DefaultSchema qualifies tables when Config.Schema is empty.
	DefaultSchema() string

	// Placeholder returns the n-th (1-based) bind marker.
	Placeholder(n int) string

	QuoteIdent(name string) string
	QualifyTable(schema, table string) string

	// Window renders the skip/limit clause, binding both values.
	Window(bind Bind, offset, limit int) string

	// RowID returns the projection yielding the store's row identifier.
	// ok is false when the store has none.
	RowID() (expr string, ok bool)

	// RowIDMatch renders the predicate selecting one row by identifier.
	RowIDMatch(bind Bind, id string) string

	// SetIsolation returns the statement that applies level to the
	// current connection, or "" when nothing needs to run.
	SetIsolation(level Isolation) string

	// Catalog queries. Each returns one row per object with the object
	// name in the first column.
	TablesQuery(bind Bind, schema string) string
	FieldsQuery(bind Bind, schema, table string) string
	IndexesQuery(bind Bind, schema, table string) string

	// MapError translates a native driver error into *errs.Error.
	MapError(err error, msg string) error
}

// DSNNormalizer is implemented by dialects that validate or complete the
// configured DSN before the pool is opened.
type DSNNormalizer interface {
	NormalizeDSN(dsn string) (string, error)
}

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string]Dialect)
)

// RegisterDialect makes d available to LookupDialect under d.Name().
// It panics on duplicates, like database/sql.Register.
func RegisterDialect(d Dialect) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()

	name := strings.ToLower(d.Name())
	if _, dup := dialects[name]; dup {
		panic("database: RegisterDialect called twice for " + name)
	}
	dialects[name] = d
}

// LookupDialect returns the registered dialect called name.
func LookupDialect(name string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()

	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput,
			"unknown dialect %q (registered: %s)", name, strings.Join(dialectNames(), ", "))
	}
	return d, nil
}

// Dialects lists the registered dialect names in sorted order.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	return dialectNames()
}

func dialectNames() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// QuoteANSI wraps a SQL identifier in double quotes, doubling any embedded
// quote. Shared by the ANSI dialects.
func QuoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// binder accumulates bound arguments for one statement.
type binder struct {
	d    Dialect
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// CatalogStatement renders one of the dialect's catalog queries and
// returns its text with the bound arguments.
func CatalogStatement(d Dialect, render func(Bind) string) (string, []any) {
	b := &binder{d: d}
	stmt := render(b.bind)
	return stmt, b.args
}
