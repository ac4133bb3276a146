// Package httpapi implements the HTTP surface of spec.md section 6: a
// small net/http server routing /health, /index, and /query over a
// lifecycle.App's wired store/queue/worker/jobservice/query stack.
// Grounded on internal/daemon.Server's listen/serve/shutdown shape, but
// speaking HTTP+JSON over TCP instead of length-prefixed frames over a
// Unix socket, since spec.md section 6 is an HTTP API, not an RPC one.
// net/http's ServeMux (method- and path-parameter-aware since Go 1.22) is
// used directly: none of the example repos in this corpus import a router
// library for their own HTTP surfaces, so there is no ecosystem idiom to
// follow here beyond the standard library.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/agent-brain/brain/internal/lifecycle"
)

// Server is the HTTP front end over one lifecycle.App.
type Server struct {
	app        *lifecycle.App
	httpServer *http.Server
	startedAt  time.Time
	boundAddr  string
}

// New builds a Server bound to addr (host:port), routing every endpoint
// of spec.md section 6 against app's collaborators.
func New(app *lifecycle.App, addr string) *Server {
	s := &Server{app: app, startedAt: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/", s.handleHealth)
	mux.HandleFunc("GET /health/status", s.handleHealthStatus)
	mux.HandleFunc("GET /health/providers", s.handleHealthProviders)

	mux.HandleFunc("POST /index/", s.handleIndexCreate)
	mux.HandleFunc("POST /index/add", s.handleIndexAdd)
	mux.HandleFunc("DELETE /index/", s.handleIndexReset)
	mux.HandleFunc("GET /index/jobs/", s.handleJobsList)
	mux.HandleFunc("GET /index/jobs/{id}", s.handleJobGet)
	mux.HandleFunc("DELETE /index/jobs/{id}", s.handleJobCancel)

	mux.HandleFunc("POST /query/", s.handleQuery)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed mux for use with httptest.NewServer in tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe binds s's configured address and serves until ctx is
// cancelled, at which point it shuts the listener down gracefully.
// Mirrors daemon.Server.ListenAndServe's blocking-serve-until-cancelled
// shape, adapted to http.Server's own Shutdown method instead of a manual
// accept-loop/WaitGroup pair.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.boundAddr = listener.Addr().String()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http server shutdown error", "error", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Addr returns the address the server actually bound (set after
// ListenAndServe's listener is created); useful when the configured port
// is 0 and the OS assigns one.
func (s *Server) Addr() string {
	if s.boundAddr != "" {
		return s.boundAddr
	}
	return s.httpServer.Addr
}
