package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/ujian-go-api/internal/config"
	"github.com/noah-isme/ujian-go-api/internal/database"
	"github.com/noah-isme/ujian-go-api/internal/handler"
	"github.com/noah-isme/ujian-go-api/internal/middleware"
	"github.com/noah-isme/ujian-go-api/internal/observability"
	"github.com/noah-isme/ujian-go-api/internal/repository"
	"github.com/noah-isme/ujian-go-api/internal/router"
	"github.com/noah-isme/ujian-go-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	observability.RegisterMetrics()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	defer natsConn.Drain()

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	courseUserRepo := repository.NewCourseUserRepository(db)
	pointsRepo := repository.NewExperiencePointsRepository(db)
	taskRepo := repository.NewGradingTaskRepository(db)

	notifier := service.NewNATSSubmissionNotifier(natsConn, cfg.NotificationSubject, logger)
	autogradeService := service.NewAutogradeService(taskRepo, submissionRepo, natsConn, cfg.GradingSubject, redisClient, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assessmentRepo, courseUserRepo, notifier, validate, logger)
	workflowService := service.NewWorkflowService(submissionRepo, pointsRepo, autogradeService, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	if err := autogradeService.Start(workerCtx); err != nil {
		log.Fatalf("failed to start grading worker: %v", err)
	}
	// Re-publish outbox rows left behind by a crash between commit and dispatch.
	autogradeService.FlushPending(workerCtx)

	submissionHandler := handler.NewSubmissionHandler(submissionService, workflowService, autogradeService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
