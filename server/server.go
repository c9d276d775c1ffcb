// Package server implements the bridge's small debug HTTP surface:
// runtime stats, log configuration, and the currently registered
// routes. None of it participates in the MQTT<->HTTP bridging contract.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
)

// Server serves debug endpoints on Addr. Handlers register themselves
// via Register and are also listed at "/api".
type Server struct {
	*http.Server
	*http.ServeMux

	EndPoints sync.Map
}

// NewServer returns a Server listening on addr once Start is called.
func NewServer(addr string) *Server {
	s := &Server{Server: &http.Server{Addr: addr}}
	s.ServeMux = http.NewServeMux()
	s.Server.Handler = s.ServeMux
	return s
}

// Register binds h to path, both in the ServeMux and in the EndPoints
// index returned by "/api". Re-registering an already-bound path is a
// no-op rather than an error: the first handler registered for a path is
// kept, also when several goroutines register the same path at once.
func (s *Server) Register(path string, h http.Handler) error {
	if path == "" || h == nil {
		return errors.New("server: Register requires a non-empty path and a handler")
	}
	if _, exists := s.EndPoints.LoadOrStore(path, h); exists {
		return nil
	}
	s.Handle(path, h)
	return nil
}

// Start registers "/ping" and "/api", then serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	_ = s.Register("/ping", http.HandlerFunc(ping))
	_ = s.Register("/api", http.HandlerFunc(s.listEndpoints))

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server: starting debug HTTP surface", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// EndPointCount returns the number of registered endpoints.
func (s *Server) EndPointCount() int {
	count := 0
	s.EndPoints.Range(func(k, v any) bool {
		count++
		return true
	})
	return count
}

func (s *Server) listEndpoints(w http.ResponseWriter, r *http.Request) {
	var routes []string
	s.EndPoints.Range(func(k, v any) bool {
		routes = append(routes, k.(string))
		return true
	})

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct{ Routes []string }{routes}); err != nil {
		slog.Error("server: failed to encode endpoint index", "error", err)
	}
}

// JSONHandlerFunc adapts a function returning JSON-serializable data (or
// an error) into an http.Handler, so debug endpoints backed by another
// package's state (e.g. the dispatcher's registered routes) don't
// require that package to depend on net/http.
type JSONHandlerFunc func() (any, error)

func (f JSONHandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := f()
	if err != nil {
		slog.Error("server: handler failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode response", "error", err)
	}
}
