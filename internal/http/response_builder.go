package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/session"
	"fintrack/internal/table"
)

// Response is the JSON envelope for every API response.
type Response struct {
	Data   any               `json:"data,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Response{Data: data}); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: msg})
}

// writeError maps err to a status and writes it. Validation failures carry
// the per-field messages.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	var fe core.FieldErrors
	if errors.As(err, &fe) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(Response{Error: "validation failed", Fields: fe})
		return
	}

	logger := applog.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "status", status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", "error", err, "status", status)
	}

	msg := err.Error()
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="fintrack"`)
		msg = "unauthorized"
	}
	writeMessage(w, status, msg)
}

// statusFor decides the HTTP status of an error. Anything unrecognised came
// from a collaborator (store, model, broker) and is reported as 502.
func statusFor(err error) int {
	var fe core.FieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrMissingToken),
		errors.Is(err, session.ErrInvalidToken),
		errors.Is(err, session.ErrSignedOut):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, table.ErrRowNotFound),
		errors.Is(err, ledger.ErrAccountIndex):
		return http.StatusNotFound
	case errors.Is(err, table.ErrNothingToExport),
		errors.Is(err, table.ErrNotEditable),
		errors.Is(err, table.ErrNoActiveEdit),
		errors.Is(err, table.ErrNoPendingDelete),
		errors.Is(err, table.ErrNothingToUndo),
		errors.Is(err, table.ErrClosed),
		errors.Is(err, ledger.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyAccountName),
		errors.Is(err, core.ErrInvalidPaymentType),
		errors.Is(err, core.ErrInvalidAccountType),
		errors.Is(err, errBadRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ai.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
