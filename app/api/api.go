package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"

	"awsbot/app/config"
	"awsbot/app/service/engine"
	"awsbot/app/service/metrics"
	"awsbot/app/service/workflow"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

type TurnHandler interface {
	HandleTurn(ctx context.Context, conversationID, text string) (*workflow.State, error)
	Conversation(ctx context.Context, conversationID string) (*workflow.State, error)
}

type messageRequest struct {
	Text string `json:"text" validate:"required,max=8000"`
}

type messageResponse struct {
	ResponseType workflow.ResponseType `json:"response_type"`
	Text         string                `json:"text"`
	// Audio is encoded as base64 by encoding/json.
	Audio   []byte `json:"audio,omitempty"`
	Summary string `json:"summary,omitempty"`
}

type conversationResponse struct {
	Messages []workflow.Message `json:"messages"`
	Summary  string             `json:"summary,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	addr     string
	app      *fiber.App
	turns    TurnHandler
	validate *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP.Addr,
		cfg.HTTP.Token,
		do.MustInvoke[*engine.Service](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

// NewServer builds the API. A non-empty token protects the conversation routes with bearer auth.
func NewServer(addr, token string, turns TurnHandler, metricsSvc *metrics.Service) *Server {
	s := &Server{
		addr:     addr,
		turns:    turns,
		validate: validator.New(),
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
	}

	s.app.Use(recover.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(metricsSvc.Handler()))

	conversations := s.app.Group("/api/conversations")
	if token != "" {
		conversations.Use(keyauth.New(keyauth.Config{
			KeyLookup:  "header:" + fiber.HeaderAuthorization,
			AuthScheme: "Bearer",
			Validator: func(_ *fiber.Ctx, key string) (bool, error) {
				if subtle.ConstantTimeCompare([]byte(key), []byte(token)) != 1 {
					return false, keyauth.ErrMissingOrMalformedAPIKey
				}
				return true, nil
			},
		}))
	} else {
		slog.Warn("HTTP API has no token, conversation routes are open", "addr", addr)
	}

	conversations.Get("/:id", s.getConversation)
	conversations.Post("/:id/messages", s.postMessage)

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(s.addr)
	}()

	slog.Info("HTTP server started", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	id := c.Params("id")

	var req messageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: "invalid request body"})
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}

	state, err := s.turns.HandleTurn(c.UserContext(), id, req.Text)
	if errors.Is(err, workflow.ErrEmptyMessage) {
		return c.Status(fiber.StatusBadRequest).JSON(errorResponse{Error: err.Error()})
	}
	if err != nil {
		slog.Error("API turn failed",
			"conversation_id", id,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to process message"})
	}

	resp := messageResponse{
		ResponseType: state.ResponseType,
		Audio:        state.AudioBuffer,
		Summary:      state.Summary,
	}
	if reply, ok := state.LastAssistantMessage(); ok {
		resp.Text = reply.Content
	}

	return c.JSON(resp)
}

func (s *Server) getConversation(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))

	state, err := s.turns.Conversation(c.UserContext(), id)
	if err != nil {
		slog.Error("Failed to load conversation",
			"conversation_id", id,
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "failed to load conversation"})
	}

	messages := state.Messages
	if messages == nil {
		messages = []workflow.Message{}
	}

	return c.JSON(conversationResponse{
		Messages: messages,
		Summary:  state.Summary,
	})
}
