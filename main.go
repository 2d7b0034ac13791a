package main

import (
	"log"
	"time"

	"github.com/fenilmodi00/ipo-lifecycle/config"
	"github.com/fenilmodi00/ipo-lifecycle/database"
	"github.com/fenilmodi00/ipo-lifecycle/handlers"
	"github.com/fenilmodi00/ipo-lifecycle/jobs"
	"github.com/fenilmodi00/ipo-lifecycle/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}

	store := database.NewStore(database.DB)

	// Push gateway transport; falls back to a log-only emitter for local
	// runs without a gateway configured.
	var emitter services.Emitter = services.LogEmitter{}
	if cfg.PushGatewayURL != "" {
		emitter = services.NewPushEmitter(cfg.PushGatewayURL, cfg.PushAPIKey, cfg.EmitTimeout)
	} else {
		log.Println("PUSH_GATEWAY_URL not set, notifications will be logged only")
	}

	// Core services
	offeringService := services.NewOfferingService(store)
	tracker := services.NewPriceLimitTracker(store, store)
	coordinator := services.NewNotificationCoordinator(store, store, emitter, cfg.EmitTimeout)
	machine := services.NewLifecycleMachine(store, services.LifecycleConfig{
		StalenessWindow:  cfg.StalenessWindow(),
		RetirementWindow: cfg.RetirementWindow(),
	})

	log.Println("IPO lifecycle services initialized:")
	log.Printf("  - Price limit tracker (thresholds: +%.1f%% / %.1f%%)",
		services.CeilingThresholdPct, services.FloorThresholdPct)
	log.Printf("  - Notification coordinator (emit timeout: %v)", cfg.EmitTimeout)
	log.Printf("  - Lifecycle machine (staleness: %dd, retirement: %dd)",
		cfg.StalenessWindowDays, cfg.RetirementWindowDays)

	// Background jobs
	reconcileJob := jobs.NewLifecycleReconcileJob(machine)
	trackingJob := jobs.NewDailyTrackingJob(store, store, coordinator, cfg.TrackingDayBudget)
	archiverJob := jobs.NewArchiverJob(machine)

	// Handlers
	offeringHandler := handlers.NewOfferingHandler(offeringService, store, store)
	sampleHandler := handlers.NewSampleHandler(tracker, coordinator)
	adminHandler := handlers.NewAdminHandler(reconcileJob, trackingJob, archiverJob, cfg.AdminToken)
	systemHandler := handlers.NewSystemHandler(database.DB, tracker, coordinator, machine, offeringService)

	// Start background jobs
	go func() {
		// Run a reconcile pass immediately so restarts self-heal missed
		// transitions without waiting for the first tick.
		go reconcileJob.Run()

		reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
		trackingTicker := time.NewTicker(cfg.TrackingSweepInterval)
		archiveTicker := time.NewTicker(cfg.ArchiveInterval)

		for {
			select {
			case <-reconcileTicker.C:
				reconcileJob.Run()
			case <-trackingTicker.C:
				trackingJob.Run()
			case <-archiveTicker.C:
				archiverJob.Run()
			}
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health and metrics
	app.Get("/health", systemHandler.Health)
	app.Get("/metrics", systemHandler.GetMetrics)

	// Routes
	api := app.Group("/api/v1")

	// Offering Routes
	api.Post("/offerings/facts", offeringHandler.IngestFacts)
	api.Get("/offerings", offeringHandler.GetOfferings)
	api.Get("/offerings/:id/days", offeringHandler.GetOfferingDays)
	api.Get("/offerings/:id", offeringHandler.GetOfferingByID)
	api.Post("/offerings/:id/samples", sampleHandler.IngestSample)

	// Admin Routes
	admin := api.Group("/admin", adminHandler.RequireToken)
	admin.Post("/reconcile", adminHandler.TriggerReconcile)
	admin.Post("/tracking-sweep", adminHandler.TriggerTrackingSweep)
	admin.Post("/archive", adminHandler.TriggerArchive)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
