package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"waka/internal/handler"
	"waka/internal/metrics"
	"waka/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler  *handler.TripHandler
	RouteHandler *handler.RouteHandler
	WSHandler    *handler.WSHandler
	RedisClient  *redis.Client
	NewRelicApp  *newrelic.Application
	Collector    *metrics.Collector
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

	// Prometheus metrics.
	if deps.Collector != nil {
		router.GET("/metrics", gin.WrapH(deps.Collector.Handler()))
	}

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		// Route registration (route planner boundary).
		routes := v1.Group("/routes")
		{
			routes.POST("", deps.RouteHandler.RegisterRoute)
			routes.GET("/:id", deps.RouteHandler.GetRoute)
		}

		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.POST("", deps.TripHandler.StartTrip)
			trips.GET("/nearby", deps.TripHandler.NearbyTrips)
			trips.GET("/:id", deps.TripHandler.GetTrip)
			trips.PATCH("/:id/location", deps.TripHandler.UpdateLocation)
			trips.POST("/:id/complete", deps.TripHandler.CompleteTrip)
			trips.POST("/:id/end", deps.TripHandler.EndTrip)
			trips.POST("/:id/cancel", deps.TripHandler.CancelTrip)
			trips.GET("/:id/stream", deps.WSHandler.StreamTrip)
		}

		// User routes.
		users := v1.Group("/users")
		{
			users.GET("/:id/trip", deps.TripHandler.GetActiveTrip)
			users.GET("/:id/trips", deps.TripHandler.GetTripHistory)
		}
	}

	return router
}
