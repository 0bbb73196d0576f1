package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"leadomation/config"
	"leadomation/middleware"
	"leadomation/routes"
	"leadomation/utils"
	"leadomation/worker"
)

const version = "1.0.0"

func main() {
	if err := config.LoadConfig(); err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	utils.InitLogger(cfg.LogLevel, cfg.Environment)
	if err := utils.InitSentry(cfg.SentryDSN, cfg.Environment, version); err != nil {
		logrus.WithError(err).Warn("⚠️  Sentry initialization failed, continuing without it")
	}
	defer sentry.Flush(2 * time.Second)

	if err := config.ConnectDB(); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	redisClient, err := config.ConnectRedis(context.Background())
	if err != nil {
		logrus.Fatalf("Failed to connect to redis: %v", err)
	}

	var (
		locker         utils.Locker = utils.NewLocalLocker()
		limiterStorage fiber.Storage
	)
	if redisClient != nil {
		defer redisClient.Close()
		locker = utils.NewRedisLocker(redisClient)
		limiterStorage = middleware.NewRedisStorage(redisClient)
	}

	mailer := utils.NewMailer(cfg.MailerConfig())

	executor := worker.NewSequenceExecutor(config.DB, mailer, locker, worker.ExecutorConfig{
		BatchSize:   cfg.SequenceBatchSize,
		ClaimTTL:    cfg.SequenceClaimTTL,
		LockTTL:     cfg.JobTimeout,
		Sender:      cfg.SenderIdentity(),
		TrackingURL: cfg.TrackingURL,
	})
	lifecycle := worker.NewLifecycleMailer(config.DB, mailer, locker, cfg.SenderIdentity(), cfg.LifecycleCatchupDays)

	app := fiber.New(fiber.Config{
		AppName:               "leadomation",
		DisableStartupMessage: cfg.Environment == "production",
	})
	routes.SetupRoutes(app, routes.Options{
		DB:                config.DB,
		Sequences:         executor,
		Lifecycle:         lifecycle,
		CronSecret:        cfg.CronSecret,
		SupabaseJWTSecret: cfg.SupabaseJWTSecret,
		AppURL:            cfg.AppURL,
		RateLimit:         cfg.RateLimitTrigger,
		LimiterStorage:    limiterStorage,
		JobTimeout:        cfg.JobTimeout,
		Version:           version,
	})

	if err := serve(app, cfg, executor, lifecycle); err != nil {
		logrus.WithError(err).Error("Service stopped with error")
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	logrus.Info("👋 Service stopped")
}

func serve(app *fiber.App, cfg config.Config, executor, lifecycle worker.Job) error {
	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				logrus.Info("Termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				logrus.Infof("🚀 Server starting on port %s", cfg.ServerPort)
				if err := app.Listen(":" + cfg.ServerPort); err != nil {
					return fmt.Errorf("http server failed: %w", err)
				}
				return nil
			},
			func(_ error) {
				if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
					logrus.WithError(err).Warn("HTTP shutdown incomplete")
				}
			},
		)
	}

	// Scheduler.
	if cfg.SchedulerEnabled {
		scheduler := worker.NewScheduler(cfg.JobTimeout)
		if err := scheduler.Register(worker.SequenceJobName, cfg.SequenceCron, executor); err != nil {
			return err
		}
		if err := scheduler.Register(worker.LifecycleJobName, cfg.LifecycleCron, lifecycle); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		g.Add(
			func() error {
				return scheduler.Start(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	} else {
		logrus.Info("Scheduler disabled, jobs run only when triggered over HTTP")
	}

	return g.Run()
}
