package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/rachid-J/Asssurance-sub001/internal/cache"
	"github.com/rachid-J/Asssurance-sub001/internal/config"
	"github.com/rachid-J/Asssurance-sub001/internal/database/postgres"
	"github.com/rachid-J/Asssurance-sub001/internal/database/redis"
	"github.com/rachid-J/Asssurance-sub001/internal/event"
	"github.com/rachid-J/Asssurance-sub001/internal/handlers"
	"github.com/rachid-J/Asssurance-sub001/internal/repository"
	"github.com/rachid-J/Asssurance-sub001/internal/services"
	"github.com/rachid-J/Asssurance-sub001/internal/worker"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/assurance", "log", "policy_service")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(file, nil)))
	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()

	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		// Block until the database is reachable; the repositories below
		// must never be built over a dead handle.
		slog.Error("error connecting to database, retrying until available", "error", err)
		postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	policyRepo := repository.NewPolicyRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)

	// The summary cache is a projection only; the service runs without it.
	var projector services.SummaryProjector
	redisClient, err := redis.NewRedisClient(cfg.RedisCfg)
	if err != nil {
		slog.Warn("redis unavailable, payment summary projection disabled", "error", err)
	} else {
		defer redisClient.Close()
		projector = cache.NewSummaryCache(redisClient.GetClient(), 24*time.Hour)
	}

	policyService := services.NewPolicyService(policyRepo, paymentRepo, referenceRepo)
	renewalService := services.NewRenewalService(policyRepo, referenceRepo)
	cancellationService := services.NewCancellationService(policyRepo, paymentRepo, projector)
	paymentService := services.NewPaymentService(policyRepo, paymentRepo, projector)
	expirationService := services.NewExpirationService(policyRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := worker.NewJobScheduler("policy-expiration", cfg.SweeperCfg.Interval)
	scheduler.AddJob(expirationService.Job())
	go scheduler.Run(ctx)
	defer scheduler.Stop()

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Warn("rabbitmq unavailable, payment events will not be consumed", "error", err)
	} else {
		defer rabbitConn.Close()
		consumer := event.NewPaymentConsumer(rabbitConn, paymentService)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("failed to start payment consumer", "error", err)
		}
	}

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Policy service is healthy")
	})

	handlers.NewPolicyHandler(policyService, renewalService, cancellationService, expirationService).Register(app)
	handlers.NewPaymentHandler(paymentService).Register(app)

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	}()

	slog.Info("policy service listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
	}
}
