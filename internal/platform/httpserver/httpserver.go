// Package httpserver builds the HTTP server and its readiness probe.
package httpserver

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"signup/internal/platform/config"
	"signup/pkg/platform/httputil"
)

// New builds the server for cfg. Registration requests are small, so the
// request timeout bounds both reading the body and writing the response.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
		IdleTimeout:       4 * cfg.RequestTimeout,
		MaxHeaderBytes:    1 << 20,
	}
}

// Check reports whether a backend can serve requests.
type Check func(ctx context.Context) error

// Reporter receives every check result, typically to set a gauge.
type Reporter func(name string, healthy bool)

type readinessResponse struct {
	Status   string            `json:"status"`
	Failures map[string]string `json:"failures,omitempty"`
}

// Readiness runs every check concurrently on each request and answers 200
// when all pass or 503 listing the failures. ctx for each check is bounded
// by cfg.ReadinessTimeout.
func Readiness(cfg config.Server, checks map[string]Check, report Reporter) http.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), cfg.ReadinessTimeout)
		defer cancel()

		var (
			mu       sync.Mutex
			failures = map[string]string{}
			g        errgroup.Group
		)
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				err := check(ctx)
				if report != nil {
					report(name, err == nil)
				}
				if err != nil {
					mu.Lock()
					failures[name] = err.Error()
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if len(failures) > 0 {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, readinessResponse{Status: "unavailable", Failures: failures})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, readinessResponse{Status: "ready"})
	})
}
