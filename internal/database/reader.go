package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
	"github.com/koustreak/tablegate/internal/metrics"
)

// Session is one checked-out connection with its isolation level applied.
// It belongs to a single request and is not safe for concurrent use.
// The zero value and a closed session fail every call with "not connected".
type Session struct {
	conn    *sql.Conn
	dialect Dialect
	level   Isolation
	timeout time.Duration
	log     *logger.Logger
}

// Dialect returns the dialect of the pool the session came from.
func (s *Session) Dialect() Dialect { return s.dialect }

// Isolation returns the level applied when the session was opened.
func (s *Session) Isolation() Isolation { return s.level }

// Close returns the connection to the pool. Closing twice is a no-op.
func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	metrics.SessionsOpen.WithLabelValues(s.level.String()).Dec()
	return err
}

// Query executes stmt with bound args and reads every row.
func (s *Session) Query(ctx context.Context, stmt string, args ...any) (*Result, error) {
	if s == nil || s.conn == nil {
		return nil, errs.NotConnected()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.FromContext(ctx).SQL("query", stmt, len(args))
	defer observe(s.dialect, "query", time.Now())

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(s.dialect, err, "query failed")
	}
	res, err := ScanRows(rows)
	if err != nil {
		return nil, mapError(s.dialect, err, "failed to read rows")
	}
	return res, nil
}

// Exec executes stmt with bound args and returns the rows affected.
func (s *Session) Exec(ctx context.Context, stmt string, args ...any) (int64, error) {
	if s == nil || s.conn == nil {
		return 0, errs.NotConnected()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.FromContext(ctx).SQL("exec", stmt, len(args))
	defer observe(s.dialect, "exec", time.Now())

	res, err := s.conn.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, mapError(s.dialect, err, "statement failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(s.dialect, err, "rows affected unavailable")
	}
	return n, nil
}

// Describe executes stmt and returns the column metadata without reading rows.
// It is meant for zero-row statements such as "SELECT * FROM t WHERE 1=0".
func (s *Session) Describe(ctx context.Context, stmt string, args ...any) ([]ColumnType, error) {
	if s == nil || s.conn == nil {
		return nil, errs.NotConnected()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger.FromContext(ctx).SQL("describe", stmt, len(args))
	defer observe(s.dialect, "describe", time.Now())

	rows, err := s.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, mapError(s.dialect, err, "structure query failed")
	}
	defer rows.Close()

	cts, err := rows.ColumnTypes()
	if err != nil {
		return nil, mapError(s.dialect, err, "failed to read column types")
	}
	return columnTypes(cts), nil
}

func observe(d Dialect, kind string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(d.Name(), kind).Observe(time.Since(start).Seconds())
}
