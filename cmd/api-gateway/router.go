package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/seating-api/internal/handler"
	"github.com/noah-isme/seating-api/internal/middleware"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/service"
	"github.com/noah-isme/seating-api/pkg/config"
	"github.com/noah-isme/seating-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/seating-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/seating-api/pkg/middleware/requestid"
)

type routeDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	metricsSvc *service.MetricsService
	metrics    *handler.MetricsHandler
	tokens     *service.TokenService
	seating    *handler.SeatingHandler
	// exports is nil when no database is configured.
	exports *handler.SeatingExportHandler
}

func newRouter(deps routeDeps) *gin.Engine {
	cfg := deps.cfg
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", deps.metrics.Summary)
	if deps.exports != nil {
		// The signed token authorises the download on its own.
		api.GET("/seating/exports/download", deps.exports.Download)
	}

	seating := api.Group("/seating")
	if cfg.Seating.AuthEnabled {
		seating.Use(middleware.JWT(deps.tokens), middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))
	} else {
		seating.Use(middleware.OptionalJWT(deps.tokens))
	}

	seating.POST("/generate", deps.seating.Generate)
	seating.GET("/proposals/:id", deps.seating.GetProposal)
	seating.POST("/proposals/:id/regenerate", deps.seating.Regenerate)
	seating.POST("/roster/import", deps.seating.ImportRoster)

	if deps.exports == nil {
		return r
	}
	seating.GET("/plans", deps.seating.ListPlans)
	seating.POST("/plans", middleware.Audit(deps.logger, "seating_plan.save"), deps.seating.SavePlan)
	seating.GET("/plans/:id", deps.seating.GetPlan)
	seating.DELETE("/plans/:id", middleware.Audit(deps.logger, "seating_plan.delete"), deps.seating.DeletePlan)
	seating.POST("/plans/:id/exports", middleware.Audit(deps.logger, "seating_export.create"), deps.exports.CreateExport)
	seating.GET("/exports/:id", deps.exports.ExportStatus)

	return r
}
