package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/koustreak/tablegate/internal/errs"
)

// MapCommonError classifies the errors every database/sql driver shares:
// deadlines, cancellation, broken connections and closed handles. ok is
// false when err needs driver-specific treatment.
func MapCommonError(err error, msg string) (mapped *errs.Error, ok bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err), true
	case errors.Is(err, sql.ErrNoRows):
		return errs.Wrap(errs.ErrKindNotFound, msg, err), true
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err), true
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// mapError runs the dialect's translation, keeping errors that are
// already classified.
func mapError(d Dialect, err error, msg string) error {
	if err == nil {
		return nil
	}
	if mapped, ok := MapCommonError(err, msg); ok {
		return mapped
	}
	return d.MapError(err, msg)
}
