package database

import "context"

// Querier is what the schema catalog and the cursor facade need from an
// open session. *Session implements it.
type Querier interface {
	Dialect() Dialect

	// Query executes a statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Result, error)

	// Exec executes a statement and reports the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// Describe executes a statement and returns only its column metadata.
	Describe(ctx context.Context, sql string, args ...any) ([]ColumnType, error)
}

// Rows is an abstraction over a database result set. *sql.Rows satisfies it.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close() error

	// Err returns any error encountered during iteration.
	Err() error
}
