// Package http exposes the finance tracker as a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/ai"
	"fintrack/internal/cache"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
	"fintrack/internal/session"
)

// Dependencies are the collaborators the handlers call. Assistant and Voice
// may be nil; their routes then answer 503.
type Dependencies struct {
	Transactions *services.TransactionService
	Controllers  *cache.Controllers
	Sessions     *session.Manager
	Assistant    *ai.Assistant
	Voice        http.Handler
	Logger       *applog.Logger
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready             func(context.Context) error
	RequestsPerMinute int
}

type Server struct {
	http.Server
	limiter *ratelimit.Limiter
}

type handlers struct {
	deps Dependencies
	now  func() time.Time
}

// NewServer builds the HTTP server listening on addr.
func NewServer(addr string, deps Dependencies) *Server {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RequestsPerMinute})
	return &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           newRouter(deps, limiter),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		limiter: limiter,
	}
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// NewRouter returns the API handler. The caller owns the limiter's lifetime.
func NewRouter(deps Dependencies, limiter *ratelimit.Limiter) http.Handler {
	return newRouter(deps, limiter)
}

func newRouter(deps Dependencies, limiter *ratelimit.Limiter) http.Handler {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	h := &handlers{deps: deps, now: time.Now}
	detector := security.NewDetector()
	tracer := trace.NewMiddleware()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(applog.Middleware(deps.Logger, trace.FromRequest, detector.ExtractClientIP))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(detector.Middleware(func(r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request blocked",
			"path", r.URL.Path,
			"client_ip", detector.ExtractClientIP(r))
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)

	// The voice proxy does its own method check.
	r.With(limiter.Middleware(detector.ExtractClientIP, tooManyRequests)).Handle("/api/calls", h.voice())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Sessions.Middleware(writeError))
		r.Use(limiter.Middleware(userID, tooManyRequests))

		r.Get("/profile", h.getProfile)
		r.Patch("/profile", h.updateProfile)

		r.Get("/accounts", h.listAccounts)
		r.Post("/accounts", h.addAccount)
		r.Put("/accounts/{index}/balance", h.updateAccountBalance)
		r.Delete("/accounts/{index}", h.deleteAccount)

		r.Post("/expenses", h.addExpense)

		r.Get("/dashboard", h.dashboard)
		r.Get("/insights", h.insights)

		r.Post("/receipts/extract", h.extractReceipt)
		r.Post("/receipts/describe", h.describeReceipt)

		r.Route("/table", func(r chi.Router) {
			r.Get("/", h.tableView)
			r.Post("/refresh", h.tableRefresh)
			r.Put("/mode", h.tableMode)
			r.Put("/filters", h.tableFilters)
			r.Put("/page", h.tablePage)
			r.Put("/viewport", h.tableViewport)

			r.Post("/rows/{id}/edit", h.startEdit)
			r.Put("/edit", h.saveEdit)
			r.Delete("/edit", h.cancelEdit)

			r.Post("/rows/{id}/delete", h.confirmDelete)
			r.Post("/delete", h.executeDelete)
			r.Delete("/delete", h.cancelDelete)
			r.Post("/undo", h.undo)

			r.Get("/export.csv", h.exportCSV)
			r.Get("/export.pdf", h.exportPDF)
		})

		r.Post("/session/signout", h.signOut)
	})

	return r
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
			writeMessage(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *handlers) voice() http.Handler {
	if h.deps.Voice == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusServiceUnavailable, "voice calls not configured")
		})
	}
	return h.deps.Voice
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	h.deps.Sessions.SignOut(id)
	applog.FromContext(r.Context()).InfoContext(r.Context(), "User signed out", applog.FieldUserID, id)
	w.WriteHeader(http.StatusNoContent)
}
