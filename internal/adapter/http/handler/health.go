package handler

import (
	"net/http"

	"social-custody-gateway/internal/adapter/http/dto"
	"social-custody-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health by probing every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := dto.HealthResponse{Status: "healthy", Checks: make(map[string]dto.HealthStatus, len(checkers))}
		httpCode := http.StatusOK

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				resp.Checks[checker.Name()] = dto.HealthStatus{Status: "unhealthy", Error: err.Error()}
				resp.Status = "degraded"
				httpCode = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[checker.Name()] = dto.HealthStatus{Status: "healthy"}
		}

		c.JSON(httpCode, resp)
	}
}
