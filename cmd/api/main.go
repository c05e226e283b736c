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
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/config"
	"github.com/autoeval/autoeval-go-api/internal/database"
	"github.com/autoeval/autoeval-go-api/internal/handler"
	"github.com/autoeval/autoeval-go-api/internal/jobs"
	"github.com/autoeval/autoeval-go-api/internal/middleware"
	"github.com/autoeval/autoeval-go-api/internal/notify"
	"github.com/autoeval/autoeval-go-api/internal/ocr"
	"github.com/autoeval/autoeval-go-api/internal/ratelimit"
	"github.com/autoeval/autoeval-go-api/internal/repository"
	"github.com/autoeval/autoeval-go-api/internal/router"
	"github.com/autoeval/autoeval-go-api/internal/scoring"
	"github.com/autoeval/autoeval-go-api/internal/service"
	cloud "github.com/autoeval/autoeval-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

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

	redisOpt, err := database.AsynqRedisOpt(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to derive asynq settings: %v", err)
	}

	publisherOpts := notify.Options{Redis: redisClient}
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
		publisherOpts.NATS = natsConn
	}

	var storage service.FileStorage
	if cfg.CloudinaryCloudName != "" {
		cloudStorage, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = cloudStorage
	} else {
		logger.Warn().Msg("no archive storage configured, original scans are discarded after OCR")
	}

	scorer, err := scoring.NewClient(scoring.Config{
		URL:     cfg.ScoringAPIURL,
		Timeout: cfg.ScoringTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create scoring client: %v", err)
	}

	extractor, err := ocr.NewClient(ocr.Config{
		BaseURL: cfg.OCRBaseURL,
		Timeout: cfg.OCRTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to create ocr client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	paperRepo := repository.NewQuestionPaperRepository(db)
	enrolmentRepo := repository.NewEnrolmentRepository(db)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := notify.NewPublisher(publisherOpts, logger)
	publisher.Start(runCtx)

	evaluationService := service.NewEvaluationService(studentRepo, courseRepo, paperRepo, enrolmentRepo, scorer, publisher, validate, logger)
	uploadService := service.NewUploadService(studentRepo, courseRepo, paperRepo, enrolmentRepo, extractor, storage, publisher, validate, cfg.MaxUploadSizeMB, logger)

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()
	enqueuer := jobs.NewEnqueuer(asynqClient, logger)

	worker := jobs.NewWorker(evaluationService, uploadService, logger)
	srv := jobs.NewServer(redisOpt, cfg.WorkerConcurrency, logger)
	go func() {
		if err := srv.Run(worker.Mux()); err != nil {
			log.Fatalf("task server stopped: %v", err)
		}
	}()

	evaluateLimiter := ratelimit.New(cfg.EvaluateCooldown, logger)
	go evaluateLimiter.Run(runCtx)
	uploadLimiter := ratelimit.New(cfg.UploadCooldown, logger)
	go uploadLimiter.Run(runCtx)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, enqueuer, evaluateLimiter, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, enqueuer, uploadLimiter, cfg.MaxArchiveSizeMB, logger)
	notificationHandler := handler.NewNotificationHandler(publisher, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxArchiveSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler:   evaluationHandler,
		UploadHandler:       uploadHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, srv)
}

func waitForShutdown(app *fiber.App, srv *asynq.Server) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	srv.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
