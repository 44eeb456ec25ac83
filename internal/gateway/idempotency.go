// ABOUTME: Idempotency-Key middleware that replays the first response to a retried mutation
// ABOUTME: Keys are scoped per principal; concurrent duplicates are rejected with 409

package gateway

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/dedupe"
)

// IdempotencyHeader carries the client-chosen key of a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses served from the replay cache.
const ReplayedHeader = "Idempotent-Replayed"

// recordedResponse is the stored first response for an idempotency key.
type recordedResponse struct {
	status      int
	contentType string
	body        []byte
}

// responseRecorder tees a handler's response into a buffer.
type responseRecorder struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

// idempotencyKey scopes the client key to the caller and route so that two
// principals, or two endpoints, never share a replay.
func idempotencyKey(r *http.Request, key string) string {
	principal := ""
	if ac := auth.FromContext(r.Context()); ac != nil {
		principal = ac.PrincipalID
	}
	return principal + "\x00" + r.Method + " " + r.URL.Path + "\x00" + key
}

// idempotencyMiddleware replays the stored response when a mutating request
// repeats an Idempotency-Key. Requests without the header, and safe methods,
// pass straight through. Server errors release the key so a retry runs again.
// Must be used after HTTPAuthMiddleware.
func idempotencyMiddleware(cache *dedupe.Cache[*recordedResponse], logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyHeader)
			if header == "" || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := idempotencyKey(r, header)
			stored, status := cache.Reserve(key)
			switch status {
			case dedupe.Done:
				logger.Debug("replaying idempotent response", "method", r.Method, "path", r.URL.Path)
				w.Header().Set(ReplayedHeader, "true")
				if stored.contentType != "" {
					w.Header().Set("Content-Type", stored.contentType)
				}
				w.WriteHeader(stored.status)
				_, _ = w.Write(stored.body)
				return
			case dedupe.InFlight:
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"request with this idempotency key is in progress"}`))
				return
			case dedupe.Reserved:
			}

			rec := &responseRecorder{ResponseWriter: w}
			defer func() {
				if rec.status == 0 || rec.status >= http.StatusInternalServerError {
					cache.Release(key)
					return
				}
				cache.Complete(key, &recordedResponse{
					status:      rec.status,
					contentType: rec.Header().Get("Content-Type"),
					body:        rec.buf.Bytes(),
				})
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
