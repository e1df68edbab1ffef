package api

import (
	"chatdigest/app/service/gateway"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type sendRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Text           string `json:"text" validate:"required"`
}

func (s *Service) listConversations(c *fiber.Ctx) error {
	return c.JSON(s.store.Snapshot())
}

func (s *Service) getConversation(c *fiber.Ctx) error {
	id := c.Params("id")

	conv, ok := s.store.Get(id)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("conversation %q not found", id))
	}

	return c.JSON(conv)
}

func (s *Service) listSummaries(c *fiber.Ctx) error {
	return c.JSON(s.store.Summaries())
}

func (s *Service) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"sources": s.sender.Status(),
	})
}

func (s *Service) send(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := s.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "missing field: "+validationErrs[0].Field())
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	err := s.sender.Send(c.UserContext(), req.ConversationID, req.Text)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, gateway.ErrMissingField):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrNotConnected):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		slog.Warn("Failed to send message", "conversation_id", req.ConversationID, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
}
