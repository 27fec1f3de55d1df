package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"storefront/pkg/idempotency"
	"storefront/pkg/otel"
)

const requestIDHeader = "X-Request-ID"

// recorder captures the status code, and the body when capture is set.
type recorder struct {
	http.ResponseWriter
	status  int
	capture bool
	body    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.capture {
		r.body.Write(b)
	}
	return r.ResponseWriter.Write(b)
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.InjectTracing(r.Context(), h.tracer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *handlers) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Header.Get(requestIDHeader),
		)
	})
}

// idempotent replays the recorded response for a repeated Idempotency-Key.
// The key is bound to a hash of the request body; reusing it with another
// body is rejected. Only successful responses are recorded; anything else
// releases the key.
func (h *handlers) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotency.Header)
		if h.idem == nil || key == "" {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)
		fingerprint := hex.EncodeToString(sum[:])

		ctx := r.Context()
		resp, claimed, err := h.idem.Claim(ctx, key, fingerprint)
		switch {
		case errors.Is(err, idempotency.ErrInProgress), errors.Is(err, idempotency.ErrKeyReused):
			respondError(w, err)
			return
		case err != nil:
			h.log.Error(ctx, "claim idempotency key", "error", err)
			respondError(w, err)
			return
		case !claimed:
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Body)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK, capture: true}
		next.ServeHTTP(rec, r)

		// The outcome must be stored even if the client has gone away.
		ctx = context.WithoutCancel(ctx)
		if rec.status >= 200 && rec.status < 300 {
			err = h.idem.Complete(ctx, key, idempotency.Response{
				Fingerprint: fingerprint,
				Status:      rec.status,
				Body:        rec.body.Bytes(),
			})
		} else {
			err = h.idem.Release(ctx, key)
		}
		if err != nil {
			h.log.Error(ctx, "record idempotency key", "error", err)
		}
	})
}
