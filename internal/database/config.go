package database

import (
	"time"

	"github.com/koustreak/tablegate/internal/errs"
)

// Config holds all settings needed to reach and pool the remote store.
type Config struct {
	// Dialect selects SQL generation and catalog queries (e.g. "openedge").
	Dialect string

	// DriverName overrides the database/sql driver the dialect registers
	// by default. The OpenEdge dialect needs it to name the ODBC driver.
	DriverName string

	// DSN is the full data source name / connection string.
	// Example: "DSN=Sports2000;UID=app;PWD=secret"
	DSN string

	// Schema qualifies table names ("PUB" for OpenEdge, "public" for
	// Postgres). Empty means the dialect default.
	Schema string

	// Pool tuning
	MaxConns        int           // maximum open connections
	MaxIdleConns    int           // idle connections kept for reuse
	MaxConnLifetime time.Duration // maximum time a connection may be reused
	MaxConnIdleTime time.Duration // maximum time a connection may sit idle

	// Timeouts
	ConnectTimeout time.Duration // checking a connection out of the pool
	LoginTimeout   time.Duration // verifying it and applying isolation
	QueryTimeout   time.Duration // per-statement deadline

	// MaxPageSize caps the page size accepted by paged reads.
	MaxPageSize int
}

// DefaultConfig returns pool settings for dsn with the legacy 10s
// connect and login timeouts.
func DefaultConfig(dsn string) *Config {
	return &Config{
		Dialect:         "openedge",
		DSN:             dsn,
		MaxConns:        10,
		MaxIdleConns:    5,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		LoginTimeout:    10 * time.Second,
		QueryTimeout:    30 * time.Second,
		MaxPageSize:     1000,
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.DSN == "":
		return errs.New(errs.ErrKindInvalidInput, "database dsn is required")
	case c.MaxConns <= 0:
		return errs.New(errs.ErrKindInvalidInput, "database max_conns must be > 0")
	case c.ConnectTimeout <= 0 || c.LoginTimeout <= 0 || c.QueryTimeout <= 0:
		return errs.New(errs.ErrKindInvalidInput, "database timeouts must be > 0")
	case c.MaxPageSize <= 0:
		return errs.New(errs.ErrKindInvalidInput, "database max_page_size must be > 0")
	}
	if _, err := LookupDialect(c.Dialect); err != nil {
		return err
	}
	return nil
}
