package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
)

// Recovery turns a handler panic into a logged stack and, if the response
// has not started, a 500 carrying the INTERNAL_ERROR envelope. An
// http.ErrAbortHandler panic is passed on.
func Recovery(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := record(w)
			defer func() {
				v := recover()
				switch {
				case v == nil:
					return
				case v == http.ErrAbortHandler:
					panic(v)
				}
				log.Error("Panic recovered", logger.Fields(
					logger.FieldError, fmt.Sprint(v),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				))
				if rec.committed() {
					return
				}
				body := apperrors.Internal(fmt.Errorf("panic: %v", v)).ToResponse()
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
