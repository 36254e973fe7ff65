// Package main is the entry point for the halal-finder record store server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration (flags, config.yaml, env vars)
//  2. Create dependencies (logger, token service, OAuth provider)
//  3. Start the server
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/halal-finder/internal/auth"
	"github.com/sakif/halal-finder/internal/config"
	"github.com/sakif/halal-finder/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to a config file (default: search for config.yaml)")
	seed := flag.Bool("seed", false, "insert the sample restaurants when the database is empty")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. AUTH CONFIGURATION ===
	// JWT_SECRET should be a long random string:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// Without one the server signs with a per-process secret, so every token
	// dies with the process.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = ephemeralSecret()
		if err != nil {
			logger.Error("failed to generate JWT secret", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Error("invalid auth configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var github *auth.GitHubProvider
	if cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(
		server.Config{
			Port:   cfg.Server.Port,
			DBPath: cfg.Database.Path,
			Seed:   *seed,
		},
		server.Options{Tokens: tokens, GitHub: github},
		logger,
	)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func ephemeralSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
