// Package router contains routing for the API delivery.
package router

import (
	"onboarding/internal/delivery/api/router/handler"
	"onboarding/internal/delivery/middleware"
	"onboarding/internal/domain/entity"
	"onboarding/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	MerchantHandler *handler.MerchantHandler
	SetupHandler    *handler.SetupHandler
	DocumentHandler *handler.DocumentHandler
	BulkHandler     *handler.BulkHandler
	AuthMiddleware  *middleware.AuthMiddleware
	Metrics         *metrics.Metrics
}

// router holds all the handlers that need to be registered.
type router struct {
	merchantHandler *handler.MerchantHandler
	setupHandler    *handler.SetupHandler
	documentHandler *handler.DocumentHandler
	bulkHandler     *handler.BulkHandler
	authMiddleware  *middleware.AuthMiddleware
	metrics         *metrics.Metrics
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		merchantHandler: params.MerchantHandler,
		setupHandler:    params.SetupHandler,
		documentHandler: params.DocumentHandler,
		bulkHandler:     params.BulkHandler,
		authMiddleware:  params.AuthMiddleware,
		metrics:         params.Metrics,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(r.metrics.Handler()))

	apiV1 := e.Group("/api/v1")

	// Setup links are public; the token is the credential.
	setupGroup := apiV1.Group("/setup")
	{
		setupGroup.GET("", r.setupHandler.ValidateToken)
		setupGroup.POST("", r.setupHandler.CompleteSetup)
	}

	adminGroup := apiV1.Group("/admin")
	adminGroup.Use(r.authMiddleware.Authenticate)
	adminGroup.Use(r.authMiddleware.RequireRole(entity.RoleAdmin))
	{
		adminGroup.POST("/merchants", r.merchantHandler.CreateMerchant)
		adminGroup.GET("/merchants/:id", r.merchantHandler.GetMerchant)
		adminGroup.POST("/merchants/:id/documents", r.documentHandler.SubmitForMerchant)
		adminGroup.GET("/merchants/:id/documents", r.documentHandler.ListForMerchant)
		adminGroup.PUT("/documents/:id/review", r.documentHandler.Review)
		adminGroup.POST("/merchants/bulk-actions", r.bulkHandler.ApplyBulkAction)
	}

	merchantGroup := apiV1.Group("/merchant")
	merchantGroup.Use(r.authMiddleware.Authenticate)
	merchantGroup.Use(r.authMiddleware.RequireRole(entity.RoleMerchant))
	{
		merchantGroup.POST("/documents", r.documentHandler.SubmitOwn)
		merchantGroup.GET("/documents", r.documentHandler.ListOwn)
	}
}
