// Package web wires the HTTP API: routing, middleware, and the embedded
// frontend.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"facegreeter/internal/config"
	"facegreeter/internal/recognition"
	"facegreeter/internal/store"
	"facegreeter/internal/web/middleware"
)

// Server is the web server hosting the API and the frontend.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server
	engine     *recognition.Engine
}

// NewServer builds a server around the recognition engine and its
// collaborators. baseCtx bounds the lifetime of background loops started
// from HTTP requests.
func NewServer(baseCtx context.Context, cfg *config.Config, st store.Store, chain *recognition.Chain, engine *recognition.Engine, frames *recognition.FrameBuffer, broadcaster *recognition.Broadcaster, host string, port int) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		router: r,
		engine: engine,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(5 * time.Minute))
	r.Use(middleware.CORS())

	s.setupRoutes(baseCtx, st, chain, frames, broadcaster)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for SSE
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server and stops the recognition loop.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.engine.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
