package sqlite

import (
	"errors"
	"fmt"

	"github.com/koustreak/tablegate/internal/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// mapError converts a modernc sqlite error into *errs.Error. Extended
// result codes are reduced to their primary code.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		return errs.Wrap(classify(sqlErr.Code()&0xff), fmt.Sprintf("%s: %s", msg, sqlErr.Error()), err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %v", msg, err), err)
}

func classify(code int) errs.ErrKind {
	switch code {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_INTERRUPT:
		return errs.ErrKindTimeout
	case sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG, sqlite3.SQLITE_RANGE:
		return errs.ErrKindInvalidInput
	}
	return errs.ErrKindQueryFailed
}
