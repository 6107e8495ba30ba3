// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"txscope/internal/domain/member"
	"txscope/internal/domain/order"
	"txscope/internal/infrastructure/http/v1/handlers"
	"txscope/internal/infrastructure/http/v1/middleware"
	"txscope/internal/infrastructure/metrics"
	"txscope/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	MemberService *member.Service
	OrderService  *order.Service

	// Journal lists finished transactions; nil disables /v1/transactions.
	Journal handlers.JournalReader

	// Pinger checks the database for readiness; nil for the in-memory backend.
	Pinger handlers.Pinger

	// Backend names the storage backend in health checks.
	Backend string

	// Metrics enables request metrics and GET /metrics when set.
	Metrics *metrics.Metrics
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorHandler())
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	backend := cfg.Backend
	if backend == "" {
		backend = "storage"
	}
	healthHandler := handlers.NewHealthHandler(cfg.Pinger, backend)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/v1")
	baseHandler := handlers.NewBaseHandler()

	if cfg.MemberService != nil {
		h := handlers.NewMemberHandler(baseHandler, cfg.MemberService)
		members := v1.Group("/members")
		members.POST("", h.Join)
		members.GET("/:username", h.Get)
	}

	if cfg.OrderService != nil {
		h := handlers.NewOrderHandler(baseHandler, cfg.OrderService)
		orders := v1.Group("/orders")
		orders.POST("", h.Place)
		orders.GET("/:id", h.Get)
	}

	if cfg.Journal != nil {
		h := handlers.NewJournalHandler(baseHandler, cfg.Journal)
		v1.GET("/transactions", h.List)
	}

	return router
}
