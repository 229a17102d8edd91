// Package httpapi exposes the webhook ingress over HTTP: it parses and
// validates inbound alert payloads, hands them to the resolver, and shapes
// the response. Business-level outcomes (skipped, rejected, broker errors)
// travel in a 200 body; only transport-level failures produce non-200.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tradehook/internal/domain"
	"tradehook/internal/journal"
	"tradehook/internal/util"
)

// Resolver resolves one parsed signal into its terminal outcome.
type Resolver interface {
	Resolve(ctx context.Context, sig domain.Signal) domain.Outcome
}

// Server serves the webhook ingress and its ancillary endpoints.
type Server struct {
	resolver Resolver
	journal  journal.Journal
	token    string
	limiter  *util.RateLimiter
	log      *slog.Logger
}

// NewServer creates a Server. token enables shared-token authentication when
// non-empty; limiter enables rate limiting when non-nil; journal may be the
// Nop journal.
func NewServer(resolver Resolver, j journal.Journal, token string, limiter *util.RateLimiter, log *slog.Logger) *Server {
	return &Server{
		resolver: resolver,
		journal:  j,
		token:    token,
		limiter:  limiter,
		log:      log.With("component", "httpapi"),
	}
}

// RegisterRoutes registers all routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", s.rateLimit(s.requireToken(s.handleWebhook)))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /decisions", s.requireToken(s.handleDecisions))
}

// Handler returns the fully wired http.Handler: routes wrapped in request
// logging and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(s.recoverPanics(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("reading journal", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read decision journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": entries})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// requireToken validates the shared webhook token from the X-Webhook-Token
// header or the token query parameter. TradingView alerts cannot set
// headers, hence the query fallback. An empty configured token disables the
// check.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next(w, r)
			return
		}

		got := r.Header.Get("X-Webhook-Token")
		if got == "" {
			got = r.URL.Query().Get("token")
		}

		// Constant-time comparison to prevent timing attacks.
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
		next(w, r)
	}
}

// rateLimit sheds excess webhook traffic with 429 when a limiter is
// configured. Alerts are shed rather than queued: a delayed market order is
// worse than a dropped one.
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// recoverPanics converts any panic in the pipeline into a 500 with an
// error-shaped body; the handler never propagates to the HTTP server.
func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("panic processing request",
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(w, http.StatusInternalServerError, "Error processing webhook")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// logRequests logs every request with method, path, status, and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.wroteHeader = true
	}
	return w.ResponseWriter.Write(b)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, domain.Outcome{Status: domain.StatusFailed, Message: msg})
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
