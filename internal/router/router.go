package router

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bananaslides/internal/handler"
	"bananaslides/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	log zerolog.Logger,
	allowedOrigins []string,
	conversionH *handler.ConversionHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	conversions := v1.Group("/conversions")
	conversions.POST("", conversionH.Create)
	conversions.GET("/:id", conversionH.GetByID)
	conversions.POST("/:id/confirm", conversionH.Confirm)
	conversions.GET("/:id/artifact", conversionH.DownloadArtifact)

	verification := conversions.Group("/:id/verification")
	verification.GET("", conversionH.Verification)
	verification.POST("/toggle", conversionH.Toggle)
	verification.POST("/bulk", conversionH.BulkSet)
	verification.POST("/reset", conversionH.Reset)

	v1.GET("/artifacts/*ref", conversionH.Artifact)

	return r
}
