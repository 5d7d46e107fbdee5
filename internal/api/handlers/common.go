package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/nerlude/internal/access"
	"github.com/hugh/nerlude/internal/api/dto"
	"github.com/hugh/nerlude/internal/database"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

// decodeBody parses the JSON body into v, writing 400 when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func validationFailed(w http.ResponseWriter, errs map[string]string) bool {
	if len(errs) == 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
	return true
}

// urlID parses the chi URL param name as a uuid. label names the entity in
// the 400 message.
func urlID(w http.ResponseWriter, r *http.Request, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// writeAccessError maps access check failures. Non-members see the same 404
// as a missing entity.
func writeAccessError(w http.ResponseWriter, logger *slog.Logger, err error, label string) {
	switch {
	case errors.Is(err, access.ErrNotFound):
		writeError(w, http.StatusNotFound, label+" not found")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, http.StatusForbidden, "Insufficient permissions")
	default:
		writeInternalError(w, logger, err, "Failed to check access")
	}
}

// writeDBError answers a failed write. Unique violations become 409.
func writeDBError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	if database.IsDuplicateKey(err) {
		writeError(w, http.StatusConflict, "Resource already exists")
		return
	}
	writeInternalError(w, logger, err, msg)
}

// writeInternalError logs the cause and answers 500 with msg only.
func writeInternalError(w http.ResponseWriter, logger *slog.Logger, err error, msg string) {
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func paginationFrom(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}
