// Package trace tags every request with an id that ends up in logs and in
// the X-Request-ID response header.
package trace

import (
	"context"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/google/uuid"
)

const HeaderRequestID = "X-Request-ID"

type ctxKey struct{}

// Incoming ids are reused only if they look harmless in a log line.
var validID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// Middleware assigns request ids and counts requests.
type Middleware struct {
	total atomic.Int64
}

func NewMiddleware() *Middleware {
	return &Middleware{}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.total.Add(1)

		id := r.Header.Get(HeaderRequestID)
		if !validID.MatchString(id) {
			id = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// TotalRequests reports how many requests passed through the middleware.
func (m *Middleware) TotalRequests() int64 {
	return m.total.Load()
}

func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// FromRequest is GetRequestID for callers holding a request.
func FromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}
