package api

import (
	"chatdigest/app/config"
	"chatdigest/app/service/conversation"
	"chatdigest/app/service/gateway"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const shutdownTimeout = 5 * time.Second

type Store interface {
	Snapshot() []conversation.Conversation
	Get(id string) (conversation.Conversation, bool)
	Summaries() []conversation.SummaryRecord
}

type Sender interface {
	Send(ctx context.Context, conversationID, text string) error
	Status() map[string]bool
}

type Service struct {
	listen   string
	store    Store
	sender   Sender
	validate *validator.Validate
	app      *fiber.App
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	store := do.MustInvoke[*conversation.Service](di)
	gw := do.MustInvoke[*gateway.Service](di)

	return NewServer(cfg.HTTP, store, gw), nil
}

func NewServer(cfg config.HTTP, store Store, sender Sender) *Service {
	s := &Service{
		listen:   cfg.Listen,
		store:    store,
		sender:   sender,
		validate: newValidator(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "chatdigest",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())

	api := app.Group("/api")
	api.Get("/conversations", s.listConversations)
	api.Get("/conversations/:id", s.getConversation)
	api.Get("/summaries", s.listSummaries)
	api.Get("/status", s.status)
	api.Post("/send", s.send)

	mcpServer := server.NewStreamableHTTPServer(s.newMCPServer(), server.WithStateLess(true))
	app.All("/mcp", adaptor.HTTPHandler(mcpServer))

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app

	return s
}

// Run serves until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
	}()

	slog.Info("HTTP server listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}

	return nil
}

func (s *Service) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	return validate
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("HTTP request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
