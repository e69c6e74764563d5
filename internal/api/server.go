package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sfp-labs/fellowship-portal/internal/config"
	"github.com/sfp-labs/fellowship-portal/internal/forwarder"
	"github.com/sfp-labs/fellowship-portal/internal/program"
	"github.com/sfp-labs/fellowship-portal/internal/sessions"
	"github.com/sfp-labs/fellowship-portal/internal/storage"
)

// Forwarder relays a submission body upstream.
type Forwarder interface {
	Forward(ctx context.Context, body []byte) (forwarder.Result, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Dependencies are the services the API serves.
type Dependencies struct {
	Sessions  *sessions.Registry
	Program   *program.Loader
	Forwarder Forwarder
	// Ledger is nil when no database is configured.
	Ledger storage.Repository
	// Checks run on /ready, keyed by dependency name.
	Checks map[string]Check
	Now    func() time.Time
}

// Server represents the HTTP API server
type Server struct {
	config    config.ServerConfig
	router    *chi.Mux
	sessions  *sessions.Registry
	program   *program.Loader
	forwarder Forwarder
	ledger    storage.Repository
	checks    map[string]Check
	now       func() time.Time
	adminAuth *AuthMiddleware

	tickInterval time.Duration
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	s := &Server{
		config:    cfg,
		sessions:  deps.Sessions,
		program:   deps.Program,
		forwarder: deps.Forwarder,
		ledger:    deps.Ledger,
		checks:    deps.Checks,
		now:       deps.Now,
		adminAuth: NewAuthMiddleware(cfg.AdminAPIKey),

		tickInterval: defaultTickInterval,
	}
	if s.program == nil {
		s.program = program.NewLoader()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Submission-Outcome"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Above the forwarder's hard timeout so a slow upstream still gets answered.
	timeout := middleware.Timeout(75 * time.Second)

	// Operational endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	// Submission relay, called by the form with the prepared payload
	r.With(timeout).Post("/api/submit", s.handleForwardSubmission)

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived, so outside the request timeout
		r.Get("/phase/stream", s.handlePhaseStream)

		r.Group(func(r chi.Router) {
			r.Use(timeout)

			r.Get("/phase", s.handleGetPhase)
			r.Get("/program", s.handleGetProgram)

			r.Route("/sessions/{key}", func(r chi.Router) {
				r.Use(s.sessionContext)

				r.Put("/", s.handleOpenSession)
				r.Get("/", s.handleGetSession)
				r.Patch("/fields", s.handleUpdateField)
				r.Post("/next", s.handleNext)
				r.Post("/back", s.handleBack)
				r.Post("/submit", s.handleSubmit)
				r.Post("/reset", s.handleReset)
			})

			// Ledger inspection, only when a database and an admin key exist
			if s.ledger != nil && s.adminAuth.Enabled() {
				r.Route("/admin", func(r chi.Router) {
					r.Use(s.adminAuth.Authenticate)
					r.Get("/attempts", s.handleListAttempts)
					r.Get("/attempts/{id}", s.handleGetAttempt)
				})
			}
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			level := slog.LevelInfo
			if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
				level = slog.LevelDebug
			}
			slog.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
