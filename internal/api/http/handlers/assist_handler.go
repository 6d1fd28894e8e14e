package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/assist"
)

// AssistHandler exposes the LLM helpers.
type AssistHandler struct {
	assistant *assist.Assistant
}

// NewAssistHandler constructs handler.
func NewAssistHandler(assistant *assist.Assistant) *AssistHandler {
	return &AssistHandler{assistant: assistant}
}

// Suggest POST /api/ai/suggest.
func (h *AssistHandler) Suggest(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.SuggestRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	suggestion, err := h.assistant.Suggest(c.UserContext(), caller, req.Title, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(suggestion)
}

// Ask POST /api/ai/tickets/:id/ask.
func (h *AssistHandler) Ask(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.AskRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	answer, err := h.assistant.Ask(c.UserContext(), caller, c.Params("id"), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(answer)
}
