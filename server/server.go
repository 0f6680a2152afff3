// Package server exposes a small read-only HTTP API next to the bot: a
// health check for uptime monitors and a view of pending applications.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/korjavin/intakebot/errx"
	"github.com/korjavin/intakebot/models"
)

// Applications is the read side of the review workflow
type Applications interface {
	Pending(ctx context.Context, guildID string) ([]models.Application, error)
	Get(ctx context.Context, guildID, applicationID string) (models.Application, error)
}

// Pinger reports whether the document store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sessions reports how many interviews are in progress
type Sessions interface {
	Len() int
}

// Server wraps the fiber app
type Server struct {
	app     *fiber.App
	apps    Applications
	store   Pinger
	live    Sessions
	started time.Time
}

// New builds the app. The /api routes are only registered when apiKey is set.
func New(apps Applications, store Pinger, live Sessions, apiKey string) *Server {
	s := &Server{
		apps:    apps,
		store:   store,
		live:    live,
		started: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "intakebot",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	s.app.Get("/", s.root)
	s.app.Get("/health", s.health)

	if apiKey != "" {
		api := s.app.Group("/api", requireKey(apiKey))
		api.Get("/guilds/:guildID/applications/pending", s.pending)
		api.Get("/guilds/:guildID/applications/:id", s.application)
	}
	return s
}

// App exposes the fiber app for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on addr until Shutdown is called
func (s *Server) Listen(addr string) error {
	slog.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) root(c *fiber.Ctx) error {
	return c.SendString("Bot is running")
}

// health answers 200 while the store is reachable and 503 otherwise
func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, code := "ok", fiber.StatusOK
	storeOK := s.store.Ping(ctx) == nil
	if !storeOK {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"store":    storeOK,
		"sessions": s.live.Len(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}

type pendingEntry struct {
	models.Application
	Link string `json:"link,omitempty"`
}

func (s *Server) pending(c *fiber.Ctx) error {
	guildID := c.Params("guildID")
	apps, err := s.apps.Pending(c.UserContext(), guildID)
	if err != nil {
		return err
	}
	out := make([]pendingEntry, 0, len(apps))
	for _, app := range apps {
		out = append(out, pendingEntry{Application: app, Link: app.Message.Link(guildID)})
	}
	return c.JSON(fiber.Map{
		"total":        len(out),
		"applications": out,
	})
}

func (s *Server) application(c *fiber.Ctx) error {
	app, err := s.apps.Get(c.UserContext(), c.Params("guildID"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(app)
}

// requireKey checks the X-API-Key header against key
func requireKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-API-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "Missing or invalid API key")
		}
		return c.Next()
	}
}

// errorHandler converts errors to JSON responses
func errorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
			"code":  e.Code,
		})
	}

	if e, ok := errx.As(err); ok {
		if e.HTTPStatus() >= fiber.StatusInternalServerError {
			slog.Error("request failed", "path", c.Path(), "err", err)
		}
		return c.Status(e.HTTPStatus()).JSON(e.ToHTTPResponse())
	}

	slog.Error("internal server error", "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"type":    errx.TypeInternal,
		"code":    "INTERNAL_ERROR",
		"message": "An unexpected error occurred",
	})
}
