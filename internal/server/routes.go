package server

import (
	"log/slog"
	"net/http"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /dreams", h.CreateDream)
	mux.HandleFunc("POST /videos", h.CreateVideo)
	mux.HandleFunc("GET /videos/latest", h.LatestVideo)
	mux.HandleFunc("GET /videos/{filename}", h.GetVideo)
	mux.HandleFunc("GET /runs", h.ListRuns)
	mux.HandleFunc("GET /runs/{id}", h.GetRun)

	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
