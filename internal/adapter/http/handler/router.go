package handler

import (
	"social-custody-gateway/config"
	"social-custody-gateway/internal/adapter/http/middleware"
	redisStore "social-custody-gateway/internal/adapter/storage/redis"
	"social-custody-gateway/internal/core/ports"
	"social-custody-gateway/internal/dispatch"
	"social-custody-gateway/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Dispatcher     *dispatch.Dispatcher
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimit      config.RateLimitConfig
	HealthCheckers []ports.HealthChecker
	Metrics        *observability.Metrics
	Gatherer       prometheus.Gatherer // nil = no /metrics endpoint
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(observability.Handler(deps.Gatherer)))
	}

	var rl gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.RateLimitStore != nil && deps.RateLimit.ToolCalls > 0 {
		rule := middleware.RateLimitRule{Limit: deps.RateLimit.ToolCalls, Window: deps.RateLimit.Window}
		rl = middleware.RateLimiter(deps.RateLimitStore, "tools_call", rule, deps.Logger)
	}

	tools := NewToolHandler(deps.Dispatcher, deps.Logger)
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))
	{
		v1.GET("/tools", tools.List)
		v1.POST("/tools/call", rl, tools.Call)
	}

	return r
}
