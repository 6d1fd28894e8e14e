package handlers

import (
	"math"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/service"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), caller, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketList(tickets))
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), caller, service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    domain.TicketCategory(req.Category),
		Priority:    domain.TicketPriority(req.Priority),
		Status:      domain.TicketStatus(req.Status),
		AssigneeID:  req.Assignee,
		DueDate:     req.DueDate,
		Tags:        req.Tags,
		Attachments: dto.ToAttachments(req.Attachments),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// Stats GET /api/tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), caller)
	if err != nil {
		return err
	}
	resp := dto.TicketStatsResponse{ByStatus: make(map[string]int, len(stats.ByStatus)), Total: stats.Total}
	for status, n := range stats.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	return c.JSON(resp)
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	comments := make([]dto.CommentResponse, 0, len(detail.Comments))
	for i := range detail.Comments {
		comments = append(comments, dto.NewCommentResponse(&detail.Comments[i]))
	}
	return c.JSON(dto.TicketDetailResponse{Ticket: dto.NewTicketResponse(detail.Ticket), Comments: comments})
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	input := service.TicketUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    (*domain.TicketCategory)(req.Category),
		Priority:    (*domain.TicketPriority)(req.Priority),
		Status:      (*domain.TicketStatus)(req.Status),
		Tags:        req.Tags,
	}
	if req.Assignee.Set {
		assignee := ""
		if req.Assignee.Value != nil {
			assignee = *req.Assignee.Value
		}
		input.AssigneeID = &assignee
	}
	if req.DueDate.Set {
		input.DueDate = req.DueDate.Value
		input.ClearDueDate = req.DueDate.Value == nil
	}
	if req.Attachments != nil {
		attachments := dto.ToAttachments(*req.Attachments)
		input.Attachments = &attachments
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), caller, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// ChangeStatus PATCH /api/tickets/:id/status.
func (h *TicketsHandler) ChangeStatus(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ChangeStatus(c.UserContext(), caller, c.Params("id"), domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.service.AddComment(c.UserContext(), caller, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"comment": dto.NewCommentResponse(comment)})
}

// DeleteComment DELETE /api/tickets/:id/comments/:commentId.
func (h *TicketsHandler) DeleteComment(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteComment(c.UserContext(), caller, c.Params("id"), c.Params("commentId")); err != nil {
		return err
	}
	return message(c, "comment deleted")
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return message(c, "ticket deleted")
}

// parseTicketQuery reads status, priority and category as comma separated
// lists plus assignee, createdBy, search, page and limit.
func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	filter := service.TicketListFilter{
		AssigneeID: optionalQuery(c, "assignee"),
		CreatedBy:  optionalQuery(c, "createdBy"),
		SearchTerm: optionalQuery(c, "search"),
	}
	fields := map[string]string{}

	for _, part := range splitList(c.Query("status")) {
		status := domain.TicketStatus(part)
		if !status.Valid() {
			fields["status"] = "oneof"
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, part := range splitList(c.Query("priority")) {
		priority := domain.TicketPriority(part)
		if !priority.Valid() {
			fields["priority"] = "oneof"
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	for _, part := range splitList(c.Query("category")) {
		category := domain.TicketCategory(part)
		if !category.Valid() {
			fields["category"] = "oneof"
		}
		filter.Categories = append(filter.Categories, category)
	}
	if len(fields) > 0 {
		return filter, apperrors.NewValidationError("invalid query", map[string]any{"fields": fields})
	}

	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(c.Query("page"), 1)
	if page > math.MaxInt32/limit {
		return filter, apperrors.NewFieldError("page", "max")
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	return filter, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
