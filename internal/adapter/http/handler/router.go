package handler

import (
	"shipment-confirmation-service/internal/adapter/http/middleware"
	redisStore "shipment-confirmation-service/internal/adapter/storage/redis"
	"shipment-confirmation-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ConfirmationSvc ports.ConfirmationService
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	confirmationHandler := NewConfirmationHandler(deps.ConfirmationSvc)
	confirmations := v1.Group("/confirmations")
	{
		confirmations.POST("", rl("confirmations_create"), confirmationHandler.Create)
		// Static list routes precede the :id route so "pending" and
		// "completed" are never parsed as IDs.
		confirmations.GET("/pending", rl("confirmations_read"), confirmationHandler.ListPending)
		confirmations.GET("/completed", rl("confirmations_read"), confirmationHandler.ListCompleted)
		confirmations.GET("/:id", rl("confirmations_read"), confirmationHandler.Get)
		confirmations.PUT("/:id/confirm", rl("confirmations_act"), confirmationHandler.Confirm)
		confirmations.PUT("/:id/cancel", rl("confirmations_act"), confirmationHandler.Cancel)
	}

	return r
}
