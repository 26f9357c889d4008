package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"github.com/melih/containerpilot/internal/core/domain"
)

const requestIDKey = "requestid"

// NewApp wires the API routes. Listings are cached in views for cacheTTL and
// dropped whenever a mutation revalidates them.
func NewApp(h *ContainerHandler, views *ViewStore, cacheTTL time.Duration, logger zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "containerpilot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New(requestid.Config{ContextKey: requestIDKey}))
	app.Use(accessLog(logger.With().Str("component", "http").Logger()))
	app.Use(recover.New())

	api := app.Group("/api")
	v1 := api.Group("/v1")

	containers := v1.Group("/containers")
	containers.Get("/", viewCache(views, domain.ViewContainers, cacheTTL), h.ListContainers)
	containers.Post("/", h.CreateContainer)
	containers.Delete("/:id", h.DeleteContainer)
	containers.Get("/:id/logs", h.GetContainerLogs)

	images := v1.Group("/images")
	images.Get("/", viewCache(views, domain.ViewImages, cacheTTL), h.ListImages)
	images.Post("/build", h.BuildImage)
	images.Delete("/:id", h.DeleteImage)

	v1.Post("/docker/install", h.InstallDocker)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// accessLog logs one line per request once the response status is known.
func accessLog(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		ev := logger.Info()
		if status >= fiber.StatusInternalServerError {
			ev = logger.Warn()
		}
		ev.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Interface("request_id", c.Locals(requestIDKey)).
			Str("cache", string(c.Response().Header.Peek("X-Cache"))).
			Msg("request")
		return nil
	}
}
