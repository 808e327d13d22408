package endpoint

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether the service can take work; a non-nil
// error means not ready and its message is returned to the caller.
type ReadinessCheck func(ctx context.Context) error

// Readiness returns a handler for readiness checks. A nil check is always ready.
func Readiness(serviceName string, check ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status":    "ready",
			"service":   serviceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				body["status"] = "not_ready"
				body["reason"] = err.Error()
				c.JSON(http.StatusServiceUnavailable, body)
				return
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
