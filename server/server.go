package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	L "mediavault/logger"
	"mediavault/vault"
)

const shutdownTimeout = 10 * time.Second

// Server is the thin HTTP surface over the vault: every route is one
// decode, one vault or log call, one encode.
type Server struct {
	httpServer *http.Server
	vault      *vault.Vault
}

func NewServer(host string, port int, v *vault.Vault) *Server {
	s := &Server{vault: v}
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(metricsMiddleware)

	router.Get("/health", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/files/info", s.handleFilesInfo)
		r.Post("/files/urls", s.handleFileUrls)
		r.Post("/thumbnails/urls", s.handleThumbnailUrls)
		r.Post("/copy", s.handleCopy)
		r.Post("/delete", s.handleDelete)
		r.Post("/tags", s.handleUpdateTags)
		r.Post("/search", s.handleSearch)
		r.Get("/list", s.handleList)
		r.Get("/history", s.handleHistory)
		r.Get("/similar", s.handleSimilar)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: router,
	}
	return s
}

// Run serves until the context is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		L.Info(fmt.Sprintf("server: listening on %s", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		L.Info("server: shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: could not shut down cleanly: %w", err)
	}
	L.Info("server: stopped")
	return nil
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}
