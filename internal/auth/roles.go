package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/domain"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// RequireRoles ensures the caller holds one of the allowed roles.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return RequireRoles()
}
