package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck is one dependency reported by the health endpoint
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// healthHandler reports ok only when every check passes
func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status := http.StatusOK
		results := make(gin.H, len(checks))
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[hc.Name] = err.Error()
				continue
			}
			results[hc.Name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		body := gin.H{"status": overall, "timestamp": time.Now().UTC()}
		if len(results) > 0 {
			body["checks"] = results
		}
		c.JSON(status, body)
	}
}
