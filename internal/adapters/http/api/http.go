// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// DefaultPrefix is the path prefix of the REST endpoints.
const DefaultPrefix = "/api"

// Server wires HTTP routes for the business API.
type Server struct {
	prefix            string
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	blueprintsHandler *BlueprintsHandler
}

// NewServer creates a new API server with all handlers. An empty prefix
// falls back to DefaultPrefix.
func NewServer(prefix string, blueprints *BlueprintsHandler, statsProvider StatsProvider) *Server {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = DefaultPrefix
	}
	return &Server{
		prefix:            prefix,
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		blueprintsHandler: blueprints,
	}
}

// Prefix returns the REST path prefix in use.
func (s *Server) Prefix() string {
	return s.prefix
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	collection := s.prefix + "/blueprints"
	item := collection + "/{author}/{name}"
	mux.HandleFunc("GET "+collection, MetricsMiddleware(s.blueprintsHandler.HandleList, "blueprints_list"))
	mux.HandleFunc("POST "+collection, MetricsMiddleware(s.blueprintsHandler.HandleCreate, "blueprints_create"))
	mux.HandleFunc("GET "+item, MetricsMiddleware(s.blueprintsHandler.HandleGet, "blueprints_get"))
	mux.HandleFunc("PUT "+item, MetricsMiddleware(s.blueprintsHandler.HandleUpdate, "blueprints_update"))
	mux.HandleFunc("DELETE "+item, MetricsMiddleware(s.blueprintsHandler.HandleDelete, "blueprints_delete"))
}
