package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/logger"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind errs.ErrKind) int {
	switch kind {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindUnauthenticated:
		return http.StatusUnauthorized
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindRateLimited:
		return http.StatusTooManyRequests
	case errs.ErrKindUnsupported:
		return http.StatusNotImplemented
	case errs.ErrKindConnectionFailed, errs.ErrKindQueryFailed:
		return http.StatusBadGateway
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError is the only place errors become responses. Bodies are plain
// text; server-side failures are logged with their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	if kind == errs.ErrKindUnauthenticated && !auth.WantsJSON(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	status := statusFor(kind)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).ErrorWith("request failed", err, map[string]any{
			"kind":   kind.String(),
			"status": status,
		})
		var e *errs.Error
		if errors.As(err, &e) {
			msg = e.Message
		}
	}
	http.Error(w, msg, status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
