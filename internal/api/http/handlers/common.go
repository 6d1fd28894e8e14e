package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/domain"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// principal returns the authenticated caller set by the auth middleware.
func principal(c *fiber.Ctx) (domain.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Principal{}, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

// parseBody decodes the JSON body into req and runs struct validation.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func message(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{"message": msg})
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}
