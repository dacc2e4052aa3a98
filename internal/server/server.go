// Package server sets up the HTTP router, its middleware, and all route
// definitions, and runs the HTTP server with graceful shutdown.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware and
// routes. It does not construct services or open connections; main.go does
// that and passes them in (the "composition root" pattern). Tests build a
// Server from fakes the same way.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/notes-app/internal/auth"
	"github.com/sakif/notes-app/internal/handler"
	"github.com/sakif/notes-app/internal/health"
	"github.com/sakif/notes-app/internal/middleware"
)

// Config holds server configuration.
type Config struct {
	Port string
	// FrontendURL makes the Google callback redirect to the frontend.
	FrontendURL        string
	CORSAllowedOrigins []string
}

// AuthService is what the router needs from the auth core: the handler
// surface, session validation for RequireAuth, and whether the Google
// routes exist at all.
type AuthService interface {
	handler.AuthService
	auth.SessionValidator
	GoogleEnabled() bool
}

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Auth   AuthService
	Notes  handler.NoteService
	Health *health.Checker
}

// Server represents the HTTP server and its router.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
}

// New wires deps into a router. It never fails on its own; every fallible
// step (opening SQLite, Redis, JWKS) happened in main before this call.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	s.setupRoutes(deps)
	return s
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                       → liveness
// GET    /readyz                        → readiness (SQLite, code store)
// POST   /api/auth/signup/email         → mail a signup code
// POST   /api/auth/verify-otp           → code → session token
// POST   /api/auth/resend-otp           → replace the pending code
// POST   /api/auth/login/email          → mail a login code
// POST   /api/auth/google/token-login   → Google ID token → session token   [Google only]
// GET    /api/auth/google/login         → consent URL                       [Google only]
// GET    /api/auth/google/callback      → redirect flow completion          [Google only]
// GET    /api/auth/me                   → session holder's account          [auth]
// POST   /api/auth/logout               → acknowledge logout
// *      /api/notes[/{id}]              → notes CRUD                        [auth]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: every later log line can carry it
//  2. RealIP: logs see the client, not the proxy
//  3. Logger and Metrics: wrap everything below, including panics
//  4. Recoverer: turns a panic into a 500
//  5. CORS: answers preflights before routing
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	healthHandler := handler.NewHealthHandler(deps.Health)
	s.router.Get("/healthz", healthHandler.HandleLiveness)
	s.router.Get("/readyz", healthHandler.HandleReadiness)

	authHandler := handler.NewAuthHandler(deps.Auth, s.config.FrontendURL, s.logger)
	noteHandler := handler.NewNoteHandler(deps.Notes, s.logger)
	requireAuth := auth.RequireAuth(deps.Auth)

	s.router.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup/email", authHandler.HandleSignupEmail)
		r.Post("/verify-otp", authHandler.HandleVerifyCode)
		r.Post("/resend-otp", authHandler.HandleResendCode)
		r.Post("/login/email", authHandler.HandleLoginEmail)
		r.Post("/logout", authHandler.HandleLogout)

		// Without credentials the Google routes do not exist (404), rather
		// than failing on every call.
		if deps.Auth.GoogleEnabled() {
			r.Post("/google/token-login", authHandler.HandleGoogleTokenLogin)
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}

		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})

	s.router.Route("/api/notes", func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/", noteHandler.HandleCreate)
		r.Get("/", noteHandler.HandleList)
		r.Get("/{id}", noteHandler.HandleGet)
		r.Put("/{id}", noteHandler.HandleUpdate)
		r.Delete("/{id}", noteHandler.HandleDelete)
	})
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests to finish
//
// Closing SQLite and Redis is main's job, after Start returns.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", "http://localhost:"+s.config.Port),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
