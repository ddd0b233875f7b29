package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMeters(t *testing.T) {
	t.Run("initializes meters successfully", func(t *testing.T) {
		cfg := testServerConfig()

		err := initMeters(t.Context(), cfg)
		assert.NoError(t, err)
	})
}

func TestOperationMiddleware(t *testing.T) {
	t.Run("wraps handler function correctly", func(t *testing.T) {
		cfg := testServerConfig()
		require.NoError(t, initMeters(t.Context(), cfg))

		handlerCalled := false
		wrapped := operationMiddleware(cfg, "TestOperation", func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
			w.WriteHeader(http.StatusNoContent)
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("User-Agent", "test-agent")
		w := httptest.NewRecorder()

		wrapped(w, req)

		assert.True(t, handlerCalled)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("extracts parent trace context from headers", func(t *testing.T) {
		cfg := testServerConfig()
		require.NoError(t, initMeters(t.Context(), cfg))

		handlerCalled := false
		wrapped := operationMiddleware(cfg, "TraceOperation", func(w http.ResponseWriter, r *http.Request) {
			handlerCalled = true
		})

		req := httptest.NewRequest(http.MethodGet, "/trace-test", nil)
		req.Header.Set("Traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
		w := httptest.NewRecorder()

		wrapped(w, req)

		assert.True(t, handlerCalled)
	})

	t.Run("handles multiple sequential requests", func(t *testing.T) {
		cfg := testServerConfig()
		require.NoError(t, initMeters(t.Context(), cfg))

		callCount := 0
		wrapped := operationMiddleware(cfg, "SequentialOperation", func(w http.ResponseWriter, r *http.Request) {
			callCount++
		})

		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()

			wrapped(w, req)
		}

		assert.Equal(t, 3, callCount)
	})
}
