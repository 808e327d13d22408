package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kbukum/pilgi/observability"
)

// RequestMetrics counts requests in flight and finished ones by method and
// status. Health paths are skipped; nil metrics returns next unchanged.
func RequestMetrics(metrics *observability.Metrics, service string) Middleware {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ctx, began, rec := r.Context(), time.Now(), record(w)
			metrics.RecordRequestStart(ctx)
			defer func() {
				metrics.RecordRequestEnd(ctx, service, r.Method, strconv.Itoa(rec.status()), time.Since(began))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
