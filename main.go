package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"clariphish/config"
	"clariphish/middleware"
	"clariphish/routes"
	"clariphish/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Sentry when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the report inbox worker when a mailbox is configured
	if config.AppConfig.ReportInbox.Enabled {
		reportWorker := worker.NewReportWorker(config.DB, log.New(os.Stdout, "REPORT: ", log.LstdFlags))
		go reportWorker.Start(ctx)
	}

	// Launch scheduled campaigns when their time arrives
	scheduleWorker := worker.NewScheduleWorker(config.DB, log.New(os.Stdout, "SCHEDULE: ", log.LstdFlags))
	go scheduleWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB)

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
