package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/handler"
	"github.com/rox-lucas-sh/image-scan-vision/internal/api/middleware"
)

const healthPath = "/health"

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	entryHandler *handler.EntryHandler,
	authHandler *handler.AuthHandler,
	checks []HealthCheck,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger, healthPath))

	v1 := r.Group("/api/v1")
	{
		entries := v1.Group("/entries")
		{
			entries.POST("", entryHandler.Create)
			entries.GET("", entryHandler.List)
			entries.GET("/:id", entryHandler.GetByID)
			entries.GET("/:id/image", entryHandler.GetImage)
			entries.POST("/:id/retry-ocr", entryHandler.RetryOCR)
			entries.POST("/:id/retry-points", entryHandler.RetryPoints)
			entries.POST("/:id/cancel", entryHandler.Cancel)
			entries.DELETE("/:id", entryHandler.Delete)
		}

		selection := v1.Group("/selection")
		{
			selection.PUT("", entryHandler.Select)
			selection.GET("", entryHandler.GetSelected)
			selection.DELETE("", entryHandler.ClearSelection)
		}

		token := v1.Group("/auth/token")
		{
			token.PUT("", authHandler.SetToken)
			token.GET("", authHandler.GetStatus)
			token.DELETE("", authHandler.ClearToken)
		}
	}

	r.GET(healthPath, healthHandler(checks))
}
