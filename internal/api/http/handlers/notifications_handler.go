package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/service"
)

// NotificationsHandler serves the caller's inbox.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /api/notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	list, err := h.service.List(c.UserContext(), caller, c.QueryBool("unread"), limit)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewNotificationList(list))
}

// UnreadCount GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	count, err := h.service.UnreadCount(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkRead PATCH /api/notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	notification, err := h.service.MarkRead(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewNotificationResponse(notification))
}

// MarkAllRead PATCH /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllRead(c.UserContext(), caller)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// Delete DELETE /api/notifications/:id.
func (h *NotificationsHandler) Delete(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return message(c, "notification deleted")
}
