package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"waka/internal/app"
	"waka/internal/config"
	"waka/internal/handler"
	"waka/internal/hub"
	"waka/internal/metrics"
	"waka/internal/progress"
	"waka/internal/publisher"
	internalRedis "waka/internal/redis"
	"waka/internal/repository/postgres"
	"waka/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s (with DB instrumentation)", cfg.NewRelic.AppName)
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	// Metrics registry.
	collector := metrics.NewCollector()

	// Optional NATS alert publication.
	var alertPublisher *publisher.NATSPublisher
	if cfg.NATS.Enabled {
		alertPublisher, err = publisher.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, collector)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer alertPublisher.Close()
		log.Println("Connected to NATS")
	}

	// Progress hub for websocket subscribers.
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	progressHub := hub.NewHub()
	go progressHub.Run(hubCtx)

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, cfg, collector, alertPublisher, progressHub)

	// Start server in goroutine.
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	cfg *config.Config,
	collector *metrics.Collector,
	alertPublisher *publisher.NATSPublisher,
	progressHub *hub.Hub,
) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	tripRepo := postgres.NewTripSessionRepository(db)
	routeRepo := postgres.NewRouteRepository(db)

	// Initialize the progress core.
	evaluator := progress.NewEvaluator(progress.Thresholds{
		WalkArrivalRadiusM:        cfg.Tracking.WalkArrivalRadiusM,
		VehicleArrivalRadiusM:     cfg.Tracking.VehicleArrivalRadiusM,
		TransferAlertDistanceM:    cfg.Tracking.TransferAlertDistanceM,
		TransferAlertTime:         cfg.Tracking.TransferAlertTime,
		TransferImminentDistanceM: cfg.Tracking.TransferImminentDistanceM,
		TransferImminentTime:      cfg.Tracking.TransferImminentTime,
		DestinationAlertDistanceM: cfg.Tracking.DestinationAlertDistanceM,
		AccuracyCeilingM:          cfg.Tracking.AccuracyCeilingM,
	})

	// Initialize services.
	notificationService := service.NewNotificationService()

	var alertSink service.AlertPublisher
	if alertPublisher != nil {
		alertSink = alertPublisher
	}
	dispatcher := service.NewAlertDispatcher(notificationService, alertSink)

	routeService := service.NewRouteService(routeRepo, cacheStore)
	tripService := service.NewTripService(
		tripRepo, routeRepo, evaluator, dispatcher, notificationService,
		locationStore, lockStore, cacheStore, progressHub, collector,
	)

	// Initialize handlers.
	tripHandler := handler.NewTripHandler(tripService)
	routeHandler := handler.NewRouteHandler(routeService)
	wsHandler := handler.NewWSHandler(progressHub)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:  tripHandler,
		RouteHandler: routeHandler,
		WSHandler:    wsHandler,
		RedisClient:  redisClient,
		NewRelicApp:  nrApp,
		Collector:    collector,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
