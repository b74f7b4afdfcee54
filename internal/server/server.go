package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/handlers"
	"github.com/launchradar/launchradar/internal/interfaces"
)

// Server manages the HTTP server and routes
type Server struct {
	config *common.Config
	logger arbor.ILogger
	router *http.ServeMux
	server *http.Server

	apiHandler     *handlers.APIHandler
	companyHandler *handlers.CompanyHandler
	searchHandler  *handlers.SearchHandler
	statusHandler  *handlers.StatusHandler
	wsHandler      *handlers.WebSocketHandler
}

// New creates a new HTTP server over the given store. stats may be nil
// when no pipeline runs in this process.
func New(cfg *common.Config, store interfaces.CompanyStore, stats handlers.StatsProvider, logger arbor.ILogger) *Server {
	s := &Server{
		config:         cfg,
		logger:         logger,
		apiHandler:     handlers.NewAPIHandler(),
		companyHandler: handlers.NewCompanyHandler(store, logger),
		searchHandler:  handlers.NewSearchHandler(store, logger),
		statusHandler:  handlers.NewStatusHandler(stats, store, logger),
		wsHandler:      handlers.NewWebSocketHandler(store, logger),
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server and the websocket streamer. Blocks until
// the server is shut down.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.logger.Info().
		Str("address", addr).
		Msg("HTTP server starting")

	go s.wsHandler.StartStreamer(ctx)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
