// internal/httpserver/server.go
//
// HTTP server wiring for the MindMaster backend.
// Responsibilities:
//   - Router + middleware (request IDs, access log, CORS, timeouts, panic recovery).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Account endpoints: /auth/register, /auth/login, /auth/logout, /auth/me,
//     /auth/update-email, /auth/update-password.
//   - Puzzle + session endpoints (optional auth): mounted under /api.
//   - Leaderboard endpoints: GET/POST /leaderboard.
//
// Notes:
//   - Optional auth decorates requests with the user when a valid token is
//     present; guests can still play, they just never reach the leaderboard.
//   - Require-auth middleware enforces presence and validity of a token and
//     that the account still exists.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/mindmaster/internal/auth"
	"github.com/robalobadob/mindmaster/internal/puzzle"
	"github.com/robalobadob/mindmaster/internal/scores"
	"github.com/robalobadob/mindmaster/internal/store"
	"github.com/robalobadob/mindmaster/internal/users"
)

// PuzzleSource produces the next round.
type PuzzleSource interface {
	Next(ctx context.Context) (*puzzle.Payload, error)
}

// UserRepo is the account persistence the handlers need.
type UserRepo interface {
	Create(ctx context.Context, email, passwordHash string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id string) (*users.User, error)
	UpdateEmail(ctx context.Context, id, email string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Deps bundles the server's collaborators.
type Deps struct {
	Puzzles        PuzzleSource
	Sessions       store.Store
	Users          UserRepo
	Scores         scores.Board
	Tokens         *auth.Tokens
	AllowedOrigins []string
	SecureCookies  bool
	Now            func() time.Time
}

// Server bundles router and dependencies.
type Server struct {
	r    *chi.Mux
	deps Deps

	mu   sync.Mutex
	http *http.Server
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{r: chi.NewRouter(), deps: d}

	// --- middleware ---
	s.r.Use(chimw.RequestID)
	s.r.Use(chimw.RealIP)
	s.r.Use(hlog.NewHandler(log.Logger))
	s.r.Use(accessLog)
	s.r.Use(chimw.Recoverer)
	s.r.Use(chimw.Timeout(20 * time.Second))
	s.r.Use(jsonContentType)
	s.r.Use(cors.New(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "mindmaster",
			"endpoints": []string{"/health", "GET /api/puzzle", "POST /api/session", "/leaderboard", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Handle("/metrics", promhttp.Handler())

	s.mountAuthRoutes()
	s.r.Route("/api", func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		s.mountPuzzleRoutes(r)
	})
	s.mountLeaderboard()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found")
	})
	return s
}

// Start serves HTTP on addr until Shutdown.
func (s *Server) Start(addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request through the request-scoped logger.
var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("reqId", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("took", d).
		Msg("request")
})

// ------------------------------ helpers ------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v, rejecting bodies over 64 KiB.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10)).Decode(v)
}
