package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	userKey      = "auth_user"
)

// AuthMiddleware validates bearer tokens and loads the calling user.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes. The role always comes
// from the stored user, so a role change takes effect before the token expires.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Active() {
		return apperrors.NewUnauthorized("account inactive")
	}

	c.Locals(principalKey, domain.PrincipalFor(user))
	c.Locals(userKey, user)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}

// UserFromContext returns the user record loaded by the middleware.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	user, ok := c.Locals(userKey).(*domain.User)
	return user, ok
}
