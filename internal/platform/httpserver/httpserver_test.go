package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signup/internal/platform/config"
)

func TestNew_UsesConfiguredTimeouts(t *testing.T) {
	srv := New(config.Server{Addr: ":9999", ReadHeaderTimeout: time.Second, RequestTimeout: 3 * time.Second}, http.NotFoundHandler())

	assert.Equal(t, ":9999", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 3*time.Second, srv.ReadTimeout)
	assert.Equal(t, 3*time.Second, srv.WriteTimeout)
	assert.Equal(t, 12*time.Second, srv.IdleTimeout)
}

func TestReadiness(t *testing.T) {
	cfg := config.Server{ReadinessTimeout: 50 * time.Millisecond}

	t.Run("all checks pass", func(t *testing.T) {
		h := Readiness(cfg, map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return nil },
		}, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	})

	t.Run("failures are listed and reported", func(t *testing.T) {
		var (
			mu       sync.Mutex
			reported = map[string]bool{}
		)
		h := Readiness(cfg, map[string]Check{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
			"kafka": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		}, func(name string, healthy bool) {
			mu.Lock()
			defer mu.Unlock()
			reported[name] = healthy
		})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body readinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "unavailable", body.Status)
		assert.Equal(t, "connection refused", body.Failures["redis"])
		assert.Contains(t, body.Failures["kafka"], "deadline exceeded")
		assert.NotContains(t, body.Failures, "postgres")
		assert.Equal(t, map[string]bool{"postgres": true, "redis": false, "kafka": false}, reported)
	})

	t.Run("no checks is ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Readiness(cfg, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
