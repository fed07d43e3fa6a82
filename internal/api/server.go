package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/mediasnap/internal/api/handlers"
	"github.com/amaumene/mediasnap/internal/api/middleware"
	"github.com/amaumene/mediasnap/internal/config"
	"github.com/amaumene/mediasnap/internal/controllers"
	"github.com/amaumene/mediasnap/internal/services/proxy"
	"github.com/amaumene/mediasnap/internal/services/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	aggregator *sessions.Aggregator,
	captureCtrl *controllers.CaptureController,
	proxyFetcher *proxy.Fetcher,
	logger *logrus.Logger,
) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, cfg, aggregator, captureCtrl, proxyFetcher)

	s.server = &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: middleware.Logging(mux, logger),
		// Clip downloads can be large; only bound the read side
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(
	mux *http.ServeMux,
	cfg *config.Config,
	aggregator *sessions.Aggregator,
	captureCtrl *controllers.CaptureController,
	proxyFetcher *proxy.Fetcher,
) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("GET /health", healthHandler.ServeHTTP)

	sessionsHandler := handlers.NewSessionsHandler(aggregator, s.logger)
	mux.HandleFunc("GET /api/sessions", sessionsHandler.List)

	capturesHandler := handlers.NewCapturesHandler(captureCtrl, s.logger)
	mux.HandleFunc("POST /api/capture/screenshot", capturesHandler.TakeScreenshot)
	mux.HandleFunc("POST /api/capture/clip", capturesHandler.TakeClip)
	mux.HandleFunc("GET /api/captures", capturesHandler.List)
	mux.HandleFunc("GET /api/captures/{id}", capturesHandler.Get)
	mux.HandleFunc("GET /api/captures/{id}/file", capturesHandler.Download)
	mux.HandleFunc("DELETE /api/captures/{id}", capturesHandler.Delete)

	proxyHandler := handlers.NewProxyHandler(proxyFetcher, s.logger)
	mux.HandleFunc("GET /api/proxy/plex", proxyHandler.Plex)
	mux.HandleFunc("GET /api/proxy/jellyfin", proxyHandler.Jellyfin)

	// Captured files for the gallery
	mux.Handle("GET /captures/", http.StripPrefix("/captures/", http.FileServer(http.Dir(cfg.CaptureDir))))

	mux.Handle("GET /metrics", promhttp.Handler())
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
