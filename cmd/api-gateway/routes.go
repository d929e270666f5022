package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/badger-tutors-api/internal/handler"
	"github.com/noah-isme/badger-tutors-api/internal/middleware"
	"github.com/noah-isme/badger-tutors-api/internal/models"
	"github.com/noah-isme/badger-tutors-api/internal/service"
	"github.com/noah-isme/badger-tutors-api/pkg/config"
	"github.com/noah-isme/badger-tutors-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/badger-tutors-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/badger-tutors-api/pkg/middleware/requestid"
)

type routeDeps struct {
	metrics  *service.MetricsService
	registry *service.RegistryService
	sessions *handler.SessionHandler
	admin    *handler.AdminHandler
	reviews  *handler.ReviewHandler
	receipts *handler.ReceiptHandler
	health   *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.health.Health)
	r.GET("/ready", deps.health.Ready)
	r.GET("/metrics", deps.health.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())

	registryHandler := handler.NewRegistryHandler(deps.registry)
	registry := api.Group("/registry")
	registry.POST("/register", registryHandler.Register)
	registry.POST("/login", registryHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.registry))

	sessions := authed.Group("/sessions")
	sessions.POST("", middleware.RequireRoles(models.RegistryRoleStudent), deps.sessions.Book)
	sessions.GET("", deps.sessions.List)
	sessions.GET("/:id", deps.sessions.Get)
	sessions.GET("/:id/history", deps.sessions.History)
	sessions.POST("/:id/confirm", deps.sessions.Confirm)
	sessions.POST("/:id/report", deps.sessions.Report)
	sessions.POST("/:id/cancel", deps.sessions.Cancel)
	sessions.GET("/:id/receipt", deps.receipts.Download)
	sessions.POST("/:id/receipt/link", deps.receipts.ShareLink)

	api.GET("/receipts/:token", deps.receipts.Open)

	tutors := api.Group("/tutors/:tutorId")
	tutors.GET("/reviews", deps.reviews.List)
	tutors.GET("/rating", deps.reviews.Rating)
	tutors.GET("/reviews/export", deps.reviews.Export)
	tutors.GET("/reviews/eligibility", middleware.JWT(deps.registry), deps.reviews.Eligibility)
	tutors.POST("/reviews", middleware.JWT(deps.registry), middleware.RequireRoles(models.RegistryRoleStudent), deps.reviews.Submit)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKey(cfg.Admin.KeyHash))
	admin.GET("/sessions/:id", deps.admin.Session)
	admin.POST("/sessions/:id/release", middleware.Audit(logr, "escrow.release"), deps.admin.Release)
	admin.POST("/escrow/sweep", middleware.Audit(logr, "escrow.sweep"), deps.admin.Sweep)

	return r
}
