// Package server wires the HTTP routes, middleware chain, and the
// Firestore-backed importer.
package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/solufin/extrato/internal/config"
	fsstore "github.com/solufin/extrato/internal/store/firestore"

	"github.com/solufin/extrato/internal/handlers"
	"github.com/solufin/extrato/internal/importer"
	"github.com/solufin/extrato/internal/middleware"
	"github.com/solufin/extrato/internal/registry"
	"github.com/solufin/extrato/internal/rules"
)

// Server is the statement import API server.
type Server struct {
	store *fsstore.Store
	mux   *http.ServeMux
	log   zerolog.Logger
}

// New creates a server instance backed by Cloud Firestore.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	st, err := fsstore.New(ctx, cfg.FirestoreProject)
	if err != nil {
		return nil, err
	}

	engine, err := rules.Load(cfg.RulesPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &Server{
		store: st,
		mux:   http.NewServeMux(),
		log:   log,
	}
	s.setupRoutes(cfg, engine)
	return s, nil
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(cfg *config.Config, engine *rules.Engine) {
	// Health check (no auth required)
	s.mux.HandleFunc("/health", handlers.HealthCheck)

	categorizer := rules.NewCategorizer(engine, rules.StoreLookup(s.store))
	imp := importer.New(s.store, registry.New(), categorizer, s.log, importer.Options{MaxRows: cfg.MaxRows})

	importHandler := handlers.NewImportHandler(imp, cfg.MaxUploadSizeByte, s.log)
	categoryHandler := handlers.NewCategoryHandler(s.store, categorizer, s.log)
	authMiddleware := middleware.NewAuthMiddleware(s.store.Auth)

	// Protected API routes
	s.mux.Handle("POST /api/import", authMiddleware.RequireAuth(http.HandlerFunc(importHandler.Import)))
	s.mux.Handle("POST /api/transactions/{id}/category", authMiddleware.RequireAuth(http.HandlerFunc(categoryHandler.SetCategory)))
}

// Handler returns the HTTP handler with the global middleware applied.
func (s *Server) Handler(cfg *config.Config) http.Handler {
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	return limiter.Limit(s.mux)
}

// Close closes the server resources.
func (s *Server) Close() error {
	return s.store.Close()
}
