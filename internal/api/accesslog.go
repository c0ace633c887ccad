package api

import (
	"net/http"
	"time"

	"github.com/Ap3pp3rs94/kvrelay/internal/telemetry"
)

// statusRecorder captures the status code a handler wrote, since
// net/http gives no way to read it back after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped writer so streaming handlers such as
// /kv/watch still see an http.Flusher through the access-log wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withAccessLog stamps each request with a correlation id and emits one
// structured line per request on completion, the way Chartly2.0's
// gateway logs every proxied call.
func withAccessLog(log *telemetry.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqID := withRequestID(r.Context())
		r = r.WithContext(ctx)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.Info(ctx, "request", map[string]any{
			"request_id": reqID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	})
}
