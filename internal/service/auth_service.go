package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/config"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const minPasswordLength = 8

// AuthSession is returned by register and login.
type AuthSession struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	// dummyHash is compared on unknown emails so login time does not reveal
	// which addresses are registered.
	dummyHash string
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	dummy, _ := auth.HashPassword("tadbeer-unknown-account", cfg.BcryptCost)
	return &AuthService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		dummyHash:  dummy,
	}
}

// Register creates an active account with the plain user role.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthSession, error) {
	user, err := s.createAccount(ctx, name, email, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthSession, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			auth.CheckPassword(s.dummyHash, password)
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active() {
		return nil, apperrors.NewUnauthorized("account inactive")
	}
	return s.issue(user)
}

// ChangePassword verifies the current password before storing the new hash.
func (s *AuthService) ChangePassword(ctx context.Context, caller domain.Principal, currentPassword, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return apperrors.NewFieldError("newPassword", "min")
	}
	user, err := s.users.GetByID(ctx, caller.UserID)
	if err != nil {
		return storeError("user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, currentPassword) {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return storeError("user", s.users.Update(ctx, user))
}

// EnsureAdmin creates an admin account unless the email is already taken.
// It reports whether a new account was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}
	if _, err := s.createAccount(ctx, name, email, password, domain.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) createAccount(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	fields := map[string]string{}
	if name == "" {
		fields["name"] = "required"
	}
	if email == "" {
		fields["email"] = "required"
	} else if !strings.Contains(email, "@") {
		fields["email"] = "email"
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		fields["password"] = "min"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthSession, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthSession{User: user, Token: token, ExpiresAt: exp}, nil
}
