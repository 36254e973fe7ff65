// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer. It connects the SQLite store, services,
// handlers and middleware, and decides which routes require a signed-in user.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go creates: config → logger → TokenService (+ GitHubProvider)
//	Server.New() creates: sqlite.DB → AuthService, RestaurantService → handlers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/halal-finder/internal/auth"
	"github.com/sakif/halal-finder/internal/handler"
	"github.com/sakif/halal-finder/internal/metrics"
	"github.com/sakif/halal-finder/internal/middleware"
	sqliteRepo "github.com/sakif/halal-finder/internal/repository/sqlite"
	"github.com/sakif/halal-finder/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string
	// Seed inserts the sample restaurants when the database is empty.
	Seed bool
}

// Options are the collaborators main builds before the server.
type Options struct {
	// Tokens signs and validates access tokens. Required.
	Tokens *auth.TokenService
	// GitHub enables the OAuth routes. Nil leaves them unregistered.
	GitHub *auth.GitHubProvider
	// Passwords defaults to auth.NewPasswordService().
	Passwords *auth.PasswordService
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it when Start returns.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
}

// New opens the database, builds the service layer and registers routes.
func New(cfg Config, opts Options, logger *slog.Logger) (*Server, error) {
	if opts.Tokens == nil {
		return nil, errors.New("server: token service is required")
	}
	if opts.Passwords == nil {
		opts.Passwords = auth.NewPasswordService()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.Seed {
		n, err := db.Seed(context.Background())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("seeding database: %w", err)
		}
		if n > 0 {
			logger.Info("seeded sample restaurants", slog.Int("count", n))
		}
	}

	m, err := metrics.New(opts.Registry)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: opts.Registry,
	}
	s.setupRoutes(opts, m)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /metrics                          Prometheus scrape
//	POST   /auth/signup                      email/password sign-up
//	POST   /auth/login                       email/password sign-in
//	POST   /auth/logout                      clear the token cookie
//	POST   /auth/refresh                     new token            [auth]
//	GET    /auth/github/login                GitHub OAuth start   [if configured]
//	GET    /auth/github/callback             GitHub OAuth finish  [if configured]
//	GET    /api/restaurants                  list or view
//	POST   /api/restaurants                  add a restaurant     [auth]
//	GET    /api/restaurants/{id}             one restaurant
//	GET    /api/restaurants/{id}/reviews     reviews, newest first
//	POST   /api/restaurants/{id}/reviews     add a review         [auth]
//	GET    /api/me                           profile              [auth]
//	GET    /api/me/reviews                   my reviews           [auth]
//	GET    /api/me/favorites                 my favorite IDs      [auth]
//	PUT    /api/me/favorites/{id}            save                 [auth]
//	DELETE /api/me/favorites/{id}            unsave               [auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added.
func (s *Server) setupRoutes(opts Options, m *metrics.Metrics) {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, m))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))

	// DEPENDENCY CHAIN:
	//   s.db implements repository.Store and repository.UserRepository
	//   services receive the interfaces, handlers receive the services
	authService := service.NewAuthService(s.db, opts.Tokens, opts.Passwords, s.logger)
	authHandler := handler.NewAuthHandler(authService, opts.GitHub, opts.Tokens.TTL(), s.logger)
	restaurantService := service.NewRestaurantService(s.db, s.logger)
	restaurantHandler := handler.NewRestaurantHandler(restaurantService, s.logger)

	requireAuth := auth.RequireAuth(opts.Tokens)

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.HandleSignUp)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Post("/refresh", authHandler.HandleRefresh)

		if opts.GitHub != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		} else {
			s.logger.Info("GitHub sign-in not configured, OAuth routes disabled")
		}
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Public reads. A valid token is still recorded if one is sent.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(opts.Tokens))
			r.Get("/restaurants", restaurantHandler.HandleList)
			r.Get("/restaurants/{id}", restaurantHandler.HandleGet)
			r.Get("/restaurants/{id}/reviews", restaurantHandler.HandleListReviews)
		})

		// Mutations and per-user reads.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/restaurants", restaurantHandler.HandleCreate)
			r.Post("/restaurants/{id}/reviews", restaurantHandler.HandleCreateReview)

			r.Get("/me", authHandler.HandleMe)
			r.Get("/me/reviews", restaurantHandler.HandleMyReviews)
			r.Get("/me/favorites", restaurantHandler.HandleMyFavorites)
			r.Put("/me/favorites/{id}", restaurantHandler.HandlePutFavorite)
			r.Delete("/me/favorites/{id}", restaurantHandler.HandleDeleteFavorite)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out; tests that
// never Start call it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
