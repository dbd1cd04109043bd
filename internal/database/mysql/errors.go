package mysql

import (
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/koustreak/tablegate/internal/errs"
)

// MySQL error numbers
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errAccessDenied      = 1045
	errUnknownDatabase   = 1049
	errConnRefused       = 2003
	errServerGone        = 2006
	errServerLost        = 2013
	errTableAccessDenied = 1142
	errColumnAccessDeny  = 1143
	errTruncatedValue    = 1292
	errIncorrectValue    = 1366
	errDataTooLong       = 1406
	errQueryTimeout      = 3024
)

// mapError converts a MySQL driver error into *errs.Error.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gomysql.ErrInvalidConn) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var mysqlErr *gomysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return errs.Wrap(classify(mysqlErr.Number), fmt.Sprintf("%s: %s", msg, mysqlErr.Message), err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s: %v", msg, err), err)
}

func classify(code uint16) errs.ErrKind {
	switch code {
	case errAccessDenied, errUnknownDatabase, errConnRefused, errServerGone, errServerLost:
		return errs.ErrKindConnectionFailed
	case errTableAccessDenied, errColumnAccessDeny:
		return errs.ErrKindPermissionDenied
	case errTruncatedValue, errIncorrectValue, errDataTooLong:
		return errs.ErrKindInvalidInput
	case errQueryTimeout:
		return errs.ErrKindTimeout
	}
	return errs.ErrKindQueryFailed
}
