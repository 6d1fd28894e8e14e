package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
	"github.com/tadbeer/helpdesk/internal/service"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// UsersHandler manages the account directory.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users *service.UserService) *UsersHandler {
	return &UsersHandler{users: users}
}

// List GET /api/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var filter repository.UserFilter
	if v := c.Query("role"); v != "" {
		role := domain.Role(v)
		if !role.Valid() {
			return apperrors.NewFieldError("role", "oneof")
		}
		filter.Role = &role
	}
	if v := c.Query("status"); v != "" {
		status := domain.UserStatus(v)
		if status != domain.UserStatusActive && status != domain.UserStatusInactive {
			return apperrors.NewFieldError("status", "oneof")
		}
		filter.Status = &status
	}
	filter.DepartmentID = optionalQuery(c, "departmentId")

	users, err := h.users.List(c.UserContext(), caller, filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserList(users))
}

// Get GET /api/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Create POST /api/users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.Create(c.UserContext(), caller, service.UserCreateInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         domain.Role(req.Role),
		Status:       domain.UserStatus(req.Status),
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewUserResponse(user))
}

// Update PUT /api/users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.UserContext(), caller, c.Params("id"), service.UserUpdateInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         (*domain.Role)(req.Role),
		Status:       (*domain.UserStatus)(req.Status),
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Delete DELETE /api/users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return message(c, "user deleted")
}
