package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/koustreak/tablegate/internal/errs"
)

// NormalizeDSN checks that dsn parses as a pgx connection string (URL or
// key=value form). The pool itself is owned by database/sql.
func (Dialect) NormalizeDSN(dsn string) (string, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "invalid postgres DSN", err)
	}
	return dsn, nil
}
