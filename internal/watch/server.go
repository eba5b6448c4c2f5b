package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/questpack/internal/health"
	"github.com/MrWong99/questpack/internal/observe"
	"github.com/MrWong99/questpack/pkg/quest"
)

// shutdownTimeout bounds how long in-flight requests may run after the
// serving context is cancelled.
const shutdownTimeout = 5 * time.Second

// summary is the JSON body of GET /package.
type summary struct {
	Name            string             `json:"name"`
	DefaultLanguage string             `json:"default_language"`
	LoadedAt        time.Time          `json:"loaded_at"`
	Counts          map[quest.Kind]int `json:"counts"`
	Findings        []string           `json:"findings"`
}

// Handler returns the HTTP surface of w: /healthz and /readyz from
// [health.Handler], /metrics served by metrics and /package with a summary
// of the current package. Every route is wrapped in [observe.Middleware].
func Handler(w *Watcher, metrics http.Handler, m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	health.New([]health.Checker{{Name: "package", Check: w.Ready}}).Register(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	mux.HandleFunc("GET /package", func(rw http.ResponseWriter, _ *http.Request) {
		p, findings := w.Current()
		if p == nil {
			http.Error(rw, ErrNotLoaded.Error(), http.StatusServiceUnavailable)
			return
		}
		s := summary{
			Name:            p.Name,
			DefaultLanguage: p.DefaultLanguage,
			LoadedAt:        w.LoadedAt(),
			Counts:          p.Counts(),
			Findings:        make([]string, len(findings)),
		}
		for i, f := range findings {
			s.Findings[i] = f.String()
		}
		rw.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(rw).Encode(s)
	})
	return observe.Middleware(m)(mux)
}

// Serve listens on addr and serves h until ctx is cancelled, then shuts the
// server down gracefully. ready, when non-nil, receives the bound address
// once the listener is open.
func Serve(ctx context.Context, addr string, h http.Handler, log *slog.Logger, ready func(net.Addr)) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("watch: listen on %s: %w", addr, err)
	}
	if ready != nil {
		ready(listener.Addr())
	}

	server := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Info("watch: http server listening", "address", listener.Addr().String())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		if err != nil {
			return fmt.Errorf("watch: serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("watch: http server shutdown: %w", err)
	}
	log.Info("watch: http server stopped")
	return nil
}
