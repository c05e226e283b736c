package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/autoeval/autoeval-go-api/internal/config"
	"github.com/autoeval/autoeval-go-api/internal/handler"
	"github.com/autoeval/autoeval-go-api/internal/middleware"
	"github.com/autoeval/autoeval-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler   *handler.EvaluationHandler
	UploadHandler       *handler.UploadHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		evaluations := api.Group("/evaluations", jwtMiddleware)
		deps.EvaluationHandler.Register(evaluations)
	}

	if deps.UploadHandler != nil {
		// Raw request throttling on top of the per-task cooldown; uploads carry
		// large bodies.
		uploads := api.Group("/uploads", jwtMiddleware, middleware.RateLimit("uploads", 30, time.Minute))
		deps.UploadHandler.Register(uploads)
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		deps.NotificationHandler.Register(notifications)
	}
}
