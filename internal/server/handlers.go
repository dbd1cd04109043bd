package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/tablegate/internal/auth"
	"github.com/koustreak/tablegate/internal/database"
	"github.com/koustreak/tablegate/internal/errs"
)

// maxUpdateBody bounds the update-record request body.
const maxUpdateBody = 1 << 20

// authorize checks the session identity against the table policy. It runs
// before any session is opened.
func (s *Server) authorize(r *http.Request, table, action string) error {
	id, _ := auth.IdentityFrom(r.Context())
	return s.gate.Authorize(id, table, action)
}

// withRead authorizes a read of table, then runs fn on a read session
// that is closed when fn returns.
func (s *Server) withRead(w http.ResponseWriter, r *http.Request, table string, fn func(q database.Querier) (any, error)) {
	if err := s.authorize(r, table, auth.ActionRead); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.db.OpenRead(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sess.Close()

	out, err := fn(sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) tableStructure(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "tableName")
	s.withRead(w, r, table, func(q database.Querier) (any, error) {
		return s.catalog.Structure(r.Context(), q, table)
	})
}

func (s *Server) tableFields(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "tableName")
	s.withRead(w, r, table, func(q database.Querier) (any, error) {
		return s.catalog.Fields(r.Context(), q, table)
	})
}

func (s *Server) tableIndexes(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "tableName")
	s.withRead(w, r, table, func(q database.Querier) (any, error) {
		return s.catalog.Indexes(r.Context(), q, table)
	})
}

// tablesList returns only the tables the caller's policy lets it read.
func (s *Server) tablesList(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, r, errs.New(errs.ErrKindUnauthenticated, "no session"))
		return
	}
	sess, err := s.db.OpenRead(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer sess.Close()

	tables, err := s.catalog.Tables(r.Context(), sess)
	if err != nil {
		writeError(w, r, err)
		return
	}
	visible := make([]database.TableInfo, 0, len(tables))
	for _, t := range tables {
		if s.gate.CanRead(id, t.Name) {
			visible = append(visible, t)
		}
	}
	writeJSON(w, http.StatusOK, visible)
}

// cursorRead authorizes a read of the routed table and writes the rows
// returned by op.
func (s *Server) cursorRead(w http.ResponseWriter, r *http.Request, op func(table string) (*database.Result, error)) {
	table := chi.URLParam(r, "tableName")
	if err := s.authorize(r, table, auth.ActionRead); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := op(table)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRows(w, res)
}

func (s *Server) moveToFirst(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		return s.cursor.First(r.Context(), table)
	})
}

func (s *Server) moveToLast(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		return s.cursor.Last(r.Context(), table)
	})
}

func (s *Server) moveToNext(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		offset, err := intParam(r, "currentRowId")
		if err != nil {
			return nil, err
		}
		return s.cursor.Next(r.Context(), table, offset)
	})
}

func (s *Server) moveToPrevious(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		offset, err := intParam(r, "currentRowId")
		if err != nil {
			return nil, err
		}
		return s.cursor.Previous(r.Context(), table, offset)
	})
}

func (s *Server) getRowID(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		offset, err := intParam(r, "currentRowId")
		if err != nil {
			return nil, err
		}
		return s.cursor.RowIDAt(r.Context(), table, offset)
	})
}

func (s *Server) tableData(w http.ResponseWriter, r *http.Request) {
	s.cursorRead(w, r, func(table string) (*database.Result, error) {
		page, err := intParam(r, "page")
		if err != nil {
			return nil, err
		}
		size, err := intParam(r, "pageSize")
		if err != nil {
			return nil, err
		}
		return s.cursor.Page(r.Context(), table, page, size)
	})
}

type updateResponse struct {
	Message      string `json:"message"`
	RowsAffected int64  `json:"rowsAffected"`
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "tableName")
	rowID := chi.URLParam(r, "rowID")
	if err := s.authorize(r, table, auth.ActionWrite); err != nil {
		writeError(w, r, err)
		return
	}

	fields, err := decodeFields(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.cursor.UpdateRecord(r.Context(), table, rowID, fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateResponse{Message: "Record updated successfully", RowsAffected: n})
}

// decodeFields reads the update body: exactly one JSON object with
// numbers kept as json.Number.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, errs.Newf(errs.ErrKindInvalidInput, "request body exceeds %d bytes", maxUpdateBody)
		case errors.Is(err, io.EOF):
			return nil, errs.New(errs.ErrKindInvalidInput, "request body is empty")
		default:
			return nil, errs.Wrap(errs.ErrKindInvalidInput, "request body must be a JSON object", err)
		}
	}
	if fields == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "request body must be a JSON object")
	}
	if dec.More() {
		return nil, errs.New(errs.ErrKindInvalidInput, "request body must hold a single JSON object")
	}
	return fields, nil
}

func (s *Server) dropSchemaCache(w http.ResponseWriter, r *http.Request) {
	if err := s.authorize(r, auth.AllTables, auth.ActionWrite); err != nil {
		writeError(w, r, err)
		return
	}
	s.catalog.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeRows writes the rows of res as a JSON array, [] when empty.
func writeRows(w http.ResponseWriter, res *database.Result) {
	rows := res.Rows
	if rows == nil {
		rows = []database.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func intParam(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Newf(errs.ErrKindInvalidInput, "%s must be an integer, got %q", name, raw)
	}
	return n, nil
}
