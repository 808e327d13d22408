package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/pilgi/logger"
)

const slowRequest = 500 * time.Millisecond

// RequestLogger logs each finished request at a level chosen by its
// status: error for 5xx, warn for 4xx, debug otherwise. Health paths are
// not logged. An event stream is logged when it closes, so its duration is
// the stream's lifetime and it is never marked slow.
func RequestLogger(log *logger.Logger) Middleware {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			began, rec := time.Now(), record(w)
			next.ServeHTTP(rec, r)
			took := time.Since(began)

			fields := logger.MergeWithDuration(logger.Fields(
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status(),
			), took)
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields[logger.FieldRequestID] = id
			}
			stream := strings.HasPrefix(rec.Header().Get("Content-Type"), "text/event-stream")
			if took > slowRequest && !stream {
				fields["slow"] = true
			}

			emit := log.Debug
			switch s := rec.status(); {
			case s >= 500:
				emit = log.Error
			case s >= 400:
				emit = log.Warn
			}
			emit("Request completed", fields)
		})
	}
}

func isHealthPath(path string) bool {
	switch strings.TrimPrefix(path, "/api") {
	case "/health", "/ready", "/version":
		return true
	}
	return false
}
