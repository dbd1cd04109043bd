package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/tablegate/internal/errs"
)

// PostgreSQL SQLSTATE error codes
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrQueryCanceled         = "57014"
	pgErrInsufficientPrivilege = "42501"
	pgErrInvalidText           = "22P02"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classify(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}
	if pgconn.Timeout(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %v", msg, err), err)
}

func classify(code string) errs.ErrKind {
	switch code {
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case pgErrInvalidText:
		return errs.ErrKindInvalidInput
	}
	if len(code) < 2 {
		return errs.ErrKindQueryFailed
	}
	switch code[:2] {
	case "08", "28", "53", "57": // connection, auth, resources, operator intervention
		return errs.ErrKindConnectionFailed
	case "22": // data exception
		return errs.ErrKindInvalidInput
	}
	return errs.ErrKindQueryFailed
}
