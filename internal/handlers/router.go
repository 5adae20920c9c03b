package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"image-transform-backend/internal/middleware"
	"image-transform-backend/internal/services"
)

type RouterConfig struct {
	Coordinator *services.Coordinator
	Verifier    *middleware.JWTVerifier
	Logger      *zap.Logger
	// RateLimitPerMinute bounds payment-session and generation calls per user. Zero disables it.
	RateLimitPerMinute int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics())
	if cfg.Logger != nil {
		router.Use(middleware.RequestLogger(cfg.Logger))
	}

	// Health check and metrics (no auth)
	router.GET("/health", HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	projectsHandler := NewProjectsHandler(cfg.Coordinator)
	statusHandler := NewStatusHandler(cfg.Coordinator)
	paymentsHandler := NewPaymentsHandler(cfg.Coordinator)
	generationsHandler := NewGenerationsHandler(cfg.Coordinator)
	pricingHandler := NewPricingHandler(cfg.Coordinator)
	webhookHandler := NewWebhookHandler(cfg.Coordinator)

	// Webhook (no bearer, Stripe signature)
	router.POST("/api/v1/payment-webhook", webhookHandler.HandleStripeWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.Verifier))

	// Project routes
	api.POST("/projects", projectsHandler.CreateProject)
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.GET("/projects/:project_id/status", statusHandler.GetStatus)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	api.GET("/pricing", pricingHandler.GetPricing)

	// Paid operations
	paid := api.Group("")
	if cfg.RateLimitPerMinute > 0 {
		paid.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	}
	paid.POST("/payment-sessions", paymentsHandler.CreatePaymentSession)
	paid.POST("/generations", generationsHandler.Generate)

	return router
}
