// Package server exposes the chat completion orchestrator over an OpenAI-style HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/localchat/chatbot/pkg/completion"
	"github.com/localchat/chatbot/pkg/guard"
	"github.com/localchat/chatbot/pkg/llm"
)

const defaultShutdownTimeout = 10 * time.Second

// Server is a stateless HTTP front for one loaded model. Requests are handled
// independently; nothing about a completion outlives its request.
type Server struct {
	config    Config
	guard     *guard.Guard
	completer *completion.Orchestrator
	logger    *zap.Logger
	app       *fiber.App
	started   time.Time
}

// New creates a new Server and registers its routes.
func New(config Config, g *guard.Guard, completer *completion.Orchestrator, logger *zap.Logger) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		config:    config,
		guard:     g,
		completer: completer,
		logger:    logger,
		started:   time.Now(),
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	app.Use(s.logRequests)
	app.Use(recover.New())

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Get("/api/v1/models", s.handleModels)
	app.Post("/api/v1/chat", s.handleChat)

	s.app = app
	return s
}

// App returns the underlying fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting chat server",
		zap.String("listen", ln.Addr().String()),
		zap.String("model", s.config.ServedModelID),
		zap.Bool("model_loaded", s.completer.ModelLoaded()),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down chat server")
	if err := s.Shutdown(); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting connections and waits for in-flight requests,
// up to the configured shutdown timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "OpenAI Compatible Chat API",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(llm.HealthStatus{
		Status:      "healthy",
		ModelLoaded: s.completer.ModelLoaded(),
		Timestamp:   time.Now().Unix(),
	})
}

func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(llm.ModelList{
		Object: "list",
		Data: []llm.ModelCard{{
			ID:      s.config.ServedModelID,
			Object:  "model",
			Created: s.started.Unix(),
			OwnedBy: "local",
		}},
	})
}

// handleChat authorizes, validates and runs one chat completion.
func (s *Server) handleChat(c *fiber.Ctx) error {
	if err := s.guard.Authorize(c.Get(fiber.HeaderOrigin), c.Get(fiber.HeaderAuthorization)); err != nil {
		return err
	}

	req, err := llm.DecodeChatCompletionRequest(c.Body())
	if err != nil {
		return err
	}

	s.logger.Debug("received chat request",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
		zap.Bool("stream", req.Stream != nil && *req.Stream),
	)

	result, err := s.completer.Complete(c.UserContext(), completion.Request{
		Model:    req.Model,
		Messages: req.Messages,
		Config:   req.GenerationConfig(),
	})
	if err != nil {
		return err
	}

	return c.JSON(result.Response())
}

// handleError maps errors returned by handlers and middleware onto status codes
// and a {"detail": ...} body.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, detail := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(llm.ErrorResponse{Detail: detail})
}

func classify(err error) (int, string) {
	var (
		authErr  *guard.AuthorizationError
		valErr   *llm.ValidationError
		genErr   *completion.GenerationError
		fiberErr *fiber.Error
	)

	switch {
	case errors.As(err, &authErr):
		return fiber.StatusUnauthorized, authErr.Error()
	case errors.As(err, &valErr):
		return fiber.StatusUnprocessableEntity, valErr.Error()
	case errors.Is(err, completion.ErrModelUnavailable):
		return fiber.StatusInternalServerError, completion.ErrModelUnavailable.Error()
	case errors.As(err, &genErr):
		return fiber.StatusInternalServerError, genErr.Error()
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	default:
		return fiber.StatusInternalServerError, "internal server error: " + err.Error()
	}
}

// logRequests logs every request once it has been answered, including
// requests that failed, so the logged status is the one the client sees.
func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}

	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
