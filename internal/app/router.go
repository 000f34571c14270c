package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"roam/internal/handler"
	"roam/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler     *handler.TripHandler
	TrackingHandler *handler.TrackingHandler
	RedisClient     *redis.Client
	NewRelicApp     *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.Register)
			trips.GET("/:id", deps.TripHandler.Get)
			trips.GET("/:id/statuses", deps.TripHandler.GetStatuses)
			trips.GET("/:id/positions", deps.TripHandler.GetPositions)
		}

		// Tracking session routes.
		tracking := v1.Group("/tracking")
		{
			tracking.POST("/start", deps.TrackingHandler.Start)
			tracking.POST("/stop", deps.TrackingHandler.Stop)
			tracking.POST("/position", deps.TrackingHandler.Tick)
			tracking.GET("/session", deps.TrackingHandler.Session)
			tracking.GET("/route", deps.TrackingHandler.Route)
			tracking.GET("/history", deps.TrackingHandler.History)
			tracking.GET("/viewport", deps.TrackingHandler.Viewport)
			tracking.POST("/viewport/gesture", deps.TrackingHandler.Gesture)
			tracking.POST("/viewport/recenter", deps.TrackingHandler.Recenter)
		}

		// Traveler geo queries.
		travelers := v1.Group("/travelers")
		{
			travelers.GET("/nearby", deps.TrackingHandler.NearbyTravelers)
		}
	}

	return router
}
