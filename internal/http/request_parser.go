package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/session"
)

const maxJSONBody = 1 << 20

var (
	errBadRequest    = errors.New("bad request")
	errNotConfigured = errors.New("feature not configured")
)

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errBadRequest)
	}
	return nil
}

// pathIndex parses a non-negative integer URL parameter.
func pathIndex(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", errBadRequest, name)
	}
	return i, nil
}

// userID returns the authenticated caller. Routes without auth never call it.
func userID(r *http.Request) string {
	u, _ := session.UserFromContext(r.Context())
	return u.ID
}

// sanitizeInput trims whitespace and strips control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
