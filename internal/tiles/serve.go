package tiles

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves a generated tileset directory to a local viewer.
type Server struct {
	// Dir is the tileset directory (contains tileset.json).
	Dir string
	// Port to listen on.
	Port int
	// CORS enables cross-origin requests, needed when the viewer page is
	// loaded from a different origin than the tileset.
	CORS bool
	// Logger is optional.
	Logger *slog.Logger
}

// Handler returns the HTTP handler serving the tileset.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if s.CORS {
		r.Use(corsMiddleware)
	}

	fileServer := http.FileServer(http.Dir(s.Dir))
	r.Handle("/*", fileServer)
	return r
}

// corsMiddleware allows the browser viewer to fetch tiles cross-origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	addr := net.JoinHostPort("", strconv.Itoa(s.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving tileset", "dir", s.Dir, "addr", fmt.Sprintf("http://localhost:%d", s.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
