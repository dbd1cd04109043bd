package openedge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/tablegate/internal/errs"
)

// ODBC drivers report diagnostics as "{SQLSTATE} [vendor] message".
var sqlState = regexp.MustCompile(`\{([0-9A-Z]{5})\}`)

// mapError classifies an ODBC error by the SQLSTATE embedded in its text.
func mapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	kind := errs.ErrKindQueryFailed
	if m := sqlState.FindStringSubmatch(err.Error()); m != nil {
		kind = classify(m[1])
	}
	return errs.Wrap(kind, fmt.Sprintf("%s: %v", msg, err), err)
}

func classify(state string) errs.ErrKind {
	switch {
	case strings.HasPrefix(state, "HYT"):
		return errs.ErrKindTimeout
	case state == "42501":
		return errs.ErrKindPermissionDenied
	case strings.HasPrefix(state, "08"), strings.HasPrefix(state, "28"):
		return errs.ErrKindConnectionFailed
	case strings.HasPrefix(state, "22"):
		return errs.ErrKindInvalidInput
	}
	return errs.ErrKindQueryFailed
}
