// Package server provides the HTTP server and routing for StrongHodl.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/wilqq-the/stronghodl/internal/modules/prices"
	"github.com/wilqq-the/stronghodl/internal/modules/rates"
	"github.com/wilqq-the/stronghodl/internal/modules/settings"
	"github.com/wilqq-the/stronghodl/internal/modules/valuation"
	"github.com/wilqq-the/stronghodl/internal/reliability"
	"github.com/wilqq-the/stronghodl/internal/scheduler"
)

// Config holds server configuration
type Config struct {
	Port          int
	Log           zerolog.Logger
	PriceService  *prices.Service
	PriceRepo     *prices.Repository
	RateRepo      *rates.Repository
	Resolver      *rates.Resolver
	Engine        *valuation.Engine
	Triggers      *valuation.Triggers
	Settings      *settings.Service
	Scheduler     *scheduler.Scheduler
	BackupService *reliability.BackupService
	PriceStream   *PriceStream
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            Config
	systemHandlers *SystemHandlers
	startedAt      time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
		startedAt: time.Now(),
	}
	s.systemHandlers = NewSystemHandlers(cfg.Scheduler, cfg.BackupService, s.startedAt, cfg.Log)

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/price", func(r chi.Router) {
			r.Get("/current", s.handleCurrentPrice)
			r.Get("/history", s.handlePriceHistory)
			r.Get("/intraday", s.handleIntradayPrices)
			r.Get("/analytics", s.handlePriceAnalytics)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", s.handleListRates)
			r.Get("/{from}/{to}", s.handleResolveRate)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)
			r.Post("/recompute", s.handleRecompute)
		})

		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/status", s.handleSchedulerStatus)
			r.Post("/update-now", s.handleUpdateNow)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", s.handleGetSettings)
			r.Put("/", s.handleUpdateSettings)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Post("/backup", s.systemHandlers.HandleTriggerBackup)
		})
	})

	if s.cfg.PriceStream != nil {
		s.router.Get("/ws/price", s.cfg.PriceStream.HandleSubscribe)
	}

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start begins serving HTTP requests, blocking until shutdown
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
