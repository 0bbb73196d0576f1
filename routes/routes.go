package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	controller "leadomation/controllers"
	"leadomation/metrics"
	"leadomation/middleware"
)

// Options carries what the HTTP surface needs from main
type Options struct {
	DB        *gorm.DB
	Sequences controller.Runner
	Lifecycle controller.Runner

	CronSecret        string
	SupabaseJWTSecret string
	AppURL            string
	RateLimit         int
	LimiterStorage    fiber.Storage // nil keeps limiter counters in memory
	JobTimeout        time.Duration
	Version           string
}

func SetupJobRoutes(app *fiber.App, opts Options) {
	jobController := controller.NewJobController(opts.Sequences, opts.Lifecycle, opts.JobTimeout)

	guard := []fiber.Handler{
		middleware.AllowMethods(fiber.MethodPost),
		middleware.CronAuth(opts.CronSecret, opts.SupabaseJWTSecret),
		middleware.TriggerRateLimiter(opts.RateLimit, opts.LimiterStorage),
	}

	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	api.All("/execute-sequences", append(guard, jobController.ExecuteSequences)...)
	api.All("/cron/daily-emails", append(guard, jobController.SendDailyEmails)...)
}

func SetupTrackingRoutes(app *fiber.App, db *gorm.DB) {
	trackingController := controller.NewTrackingController(db)
	app.Get("/track/open/:trackingID", trackingController.HandleOpenTracking)
}

func SetupRoutes(app *fiber.App, opts Options) {
	app.Use(metrics.Middleware())
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(opts.AppURL)))

	healthController := controller.NewHealthController(opts.DB, opts.Version)
	app.Get("/health", healthController.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupJobRoutes(app, opts)
	SetupTrackingRoutes(app, opts.DB)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	logrus.Info("Routes initialized successfully")
}
