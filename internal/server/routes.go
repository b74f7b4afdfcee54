package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.wsHandler.HandleWebSocket)

	// API routes - Companies
	mux.HandleFunc("/api/latest", s.companyHandler.LatestHandler)    // GET ?limit=
	mux.HandleFunc("/api/latest/poll", s.companyHandler.PollHandler) // GET ?last_id=&limit=
	mux.HandleFunc("/api/search", s.searchHandler.SearchHandler)     // POST - semantic/keyword/hybrid
	mux.HandleFunc("/api/status", s.statusHandler.GetStatusHandler)  // GET - application status

	// API routes - System
	mux.HandleFunc("/api/version", s.apiHandler.VersionHandler)
	mux.HandleFunc("/health", s.apiHandler.HealthHandler)
	mux.HandleFunc("/api/health", s.apiHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.apiHandler.NotFoundHandler)

	return mux
}
