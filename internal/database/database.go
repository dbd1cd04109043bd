package database

import (
	"context"
	"database/sql"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/metrics"
)

// Manager is the connection manager. It owns a bounded database/sql pool
// and hands out one Session per request. It is safe for concurrent use;
// sessions are not shared between requests.
type Manager struct {
	db      *sql.DB
	dialect Dialect
	cfg     *Config
	log     *logger.Logger
}

// Open creates the pool described by cfg and verifies the store is
// reachable within cfg.ConnectTimeout.
func Open(ctx context.Context, cfg *Config, log *logger.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := LookupDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	driverName := cfg.DriverName
	if driverName == "" {
		driverName = d.DriverName()
	}

	dsn := cfg.DSN
	if n, ok := d.(DSNNormalizer); ok {
		if dsn, err = n.NormalizeDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN or unknown driver "+driverName, err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	c := *cfg
	cfg = &c
	if cfg.Schema == "" {
		cfg.Schema = d.DefaultSchema()
	}

	m := &Manager{db: db, dialect: d, cfg: cfg, log: log}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := m.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.With().
		Str("dialect", d.Name()).
		Str("driver", driverName).
		Str("dsn", logger.MaskDSN(cfg.DSN)).
		Int("max_conns", cfg.MaxConns).
		Logger().Info("database pool ready")

	return m, nil
}

// Dialect returns the dialect the pool was opened with.
func (m *Manager) Dialect() Dialect { return m.dialect }

// Schema returns the schema used to qualify table names.
func (m *Manager) Schema() string { return m.cfg.Schema }

// MaxPageSize is the largest page a paged read may request.
func (m *Manager) MaxPageSize() int { return m.cfg.MaxPageSize }

// Ping verifies the store is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return connError(m.dialect, err, "ping failed")
	}
	return nil
}

// Close drains the pool. Call when the application shuts down.
func (m *Manager) Close() error {
	return m.db.Close()
}

// OpenRead checks out a session at read-uncommitted isolation.
func (m *Manager) OpenRead(ctx context.Context) (*Session, error) {
	return m.open(ctx, ReadUncommitted)
}

// OpenWrite checks out a session at read-committed isolation.
func (m *Manager) OpenWrite(ctx context.Context) (*Session, error) {
	return m.open(ctx, ReadCommitted)
}

// open checks a connection out within ConnectTimeout, then verifies it and
// applies level within LoginTimeout. The connection is returned to the
// pool on every failure path.
func (m *Manager) open(ctx context.Context, level Isolation) (*Session, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, m.cfg.ConnectTimeout)
	conn, err := m.db.Conn(acquireCtx)
	cancel()
	if err != nil {
		return nil, connError(m.dialect, err, "failed to acquire connection")
	}

	loginCtx, cancel := context.WithTimeout(ctx, m.cfg.LoginTimeout)
	defer cancel()

	if err := conn.PingContext(loginCtx); err != nil {
		_ = conn.Close()
		return nil, connError(m.dialect, err, "connection not usable")
	}

	if stmt := m.dialect.SetIsolation(level); stmt != "" {
		if _, err := conn.ExecContext(loginCtx, stmt); err != nil {
			_ = conn.Close()
			return nil, mapError(m.dialect, err, "failed to set isolation level "+level.String())
		}
	}

	metrics.SessionsOpen.WithLabelValues(level.String()).Inc()
	return &Session{
		conn:    conn,
		dialect: m.dialect,
		level:   level,
		timeout: m.cfg.QueryTimeout,
		log:     m.log,
	}, nil
}

// connError classifies failures that happen before any statement runs.
// Everything except a deadline is a connection failure.
func connError(d Dialect, err error, msg string) error {
	mapped := mapError(d, err, msg)
	if errs.IsTimeout(mapped) || errs.IsConnectionFailed(mapped) {
		return mapped
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
