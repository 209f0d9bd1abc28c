package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/ujian-go-api/internal/config"
	"github.com/noah-isme/ujian-go-api/internal/handler"
	"github.com/noah-isme/ujian-go-api/internal/middleware"
	"github.com/noah-isme/ujian-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		assessments := app.Group("/api/v2/assessments", jwtMiddleware)
		deps.SubmissionHandler.RegisterAssessmentRoutes(assessments)

		// Answer saves arrive in bursts while learners work; keep them sane.
		submissions := app.Group("/api/v2/submissions", jwtMiddleware, middleware.RateLimit("submissions", 60, time.Minute))
		deps.SubmissionHandler.Register(submissions)

		tasks := app.Group("/api/v2/grading-tasks", jwtMiddleware)
		deps.SubmissionHandler.RegisterTaskRoutes(tasks)
	}
}
