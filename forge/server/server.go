// Package server exposes the orchestration pipeline and project stores over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/ideaforge/forge/config"
	"github.com/ZanzyTHEbar/ideaforge/forge/orchestrate"
	"github.com/ZanzyTHEbar/ideaforge/forge/store"
)

// Server owns the HTTP handlers and their collaborators.
type Server struct {
	cfg    config.ServerConfig
	logger zerolog.Logger

	svc      *orchestrate.Service
	projects *store.ProjectStore
	chats    *store.ChatHistoryStore
	pinger   Pinger

	mux    *http.ServeMux
	server *http.Server
}

// Pinger is the health-check view of the database handle.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// New constructs a Server and registers its routes.
func New(cfg config.ServerConfig, svc *orchestrate.Service, projects *store.ProjectStore, chats *store.ChatHistoryStore, pinger Pinger, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		svc:      svc,
		projects: projects,
		chats:    chats,
		pinger:   pinger,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.withCORS(s.withLogging(s.mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/orchestrate", s.handleOrchestrate)
	s.mux.HandleFunc("POST /api/sparring", s.handleSparring)

	s.mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)

	s.mux.HandleFunc("GET /api/projects/{id}/chat", s.handleGetChat)
	s.mux.HandleFunc("PUT /api/projects/{id}/chat", s.handleSaveChat)

	s.mux.HandleFunc("GET /api/projects/{id}/code/latest", s.handleLatestCode)
	s.mux.HandleFunc("GET /api/projects/{id}/code/history", s.handleCodeHistory)

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("shutting down http server")
		return s.server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// withCORS mirrors the permissive CORS policy of the hosted functions this
// service replaces, including the OPTIONS preflight short-circuit.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.CORSOrigin)
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
