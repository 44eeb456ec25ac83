// ABOUTME: Tests for the Idempotency-Key middleware
// ABOUTME: Covers in-flight conflicts, released server errors and safe-method passthrough

package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/dedupe"
)

func newReplayCache(t *testing.T) *dedupe.Cache[*recordedResponse] {
	t.Helper()
	c := dedupe.New[*recordedResponse](time.Hour, 100)
	t.Cleanup(c.Close)
	return c
}

func keyedRequest(method, key string) *http.Request {
	req := httptest.NewRequest(method, "/api/transactions", nil)
	req.Header.Set(IdempotencyHeader, key)
	return req.WithContext(auth.WithPrincipal(req.Context(), "p-1"))
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	cache := newReplayCache(t)
	calls := 0
	h := idempotencyMiddleware(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"result":"success"}`))
		}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, keyedRequest(http.MethodPost, "k"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, keyedRequest(http.MethodPost, "k"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(ReplayedHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, keyedRequest(http.MethodPost, "k"))
	assert.Equal(t, "true", rec.Header().Get(ReplayedHeader))
	assert.Equal(t, `{"result":"success"}`, rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestIdempotency_InFlightConflict(t *testing.T) {
	cache := newReplayCache(t)
	h := idempotencyMiddleware(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run for an in-flight key")
		}))

	req := keyedRequest(http.MethodPost, "k")
	_, status := cache.Reserve(idempotencyKey(req, "k"))
	require.Equal(t, dedupe.Reserved, status)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotency_SafeMethodsPassThrough(t *testing.T) {
	cache := newReplayCache(t)
	calls := 0
	h := idempotencyMiddleware(cache, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodGet, "k"))
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, cache.Len())
}
