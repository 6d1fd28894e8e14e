package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/service"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and the caller's own account.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(authResponse(session))
}

// Login POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	session, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(session))
}

// Me GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return c.JSON(dto.NewUserResponse(user))
}

// ChangePassword PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ChangePassword(c.UserContext(), caller, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return message(c, "password updated")
}

func authResponse(session *service.AuthSession) dto.AuthResponse {
	return dto.AuthResponse{
		User:      dto.NewUserResponse(session.User),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
}
