package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/tadbeer/helpdesk/internal/access"
	"github.com/tadbeer/helpdesk/internal/auth"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// UserService manages the account directory.
type UserService struct {
	store      repository.Store
	bcryptCost int
}

// NewUserService constructs the service.
func NewUserService(store repository.Store, bcryptCost int) *UserService {
	return &UserService{store: store, bcryptCost: bcryptCost}
}

// UserCreateInput describes an account created by an admin.
type UserCreateInput struct {
	Name         string
	Email        string
	Password     string
	Role         domain.Role
	Status       domain.UserStatus
	DepartmentID *string
}

// UserUpdateInput is a partial update. An empty DepartmentID detaches the user.
type UserUpdateInput struct {
	Name         *string
	Email        *string
	Password     *string
	Role         *domain.Role
	Status       *domain.UserStatus
	DepartmentID *string
}

// List returns users matching the filter, sorted by name.
func (s *UserService) List(ctx context.Context, caller domain.Principal, filter repository.UserFilter) ([]domain.User, error) {
	if !access.CanViewUsers(caller.Role) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	return s.store.Users().List(ctx, filter)
}

// Get returns one user. Anyone may read their own record.
func (s *UserService) Get(ctx context.Context, caller domain.Principal, id string) (*domain.User, error) {
	if caller.UserID != id && !access.CanViewUsers(caller.Role) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, storeError("user", err)
	}
	return user, nil
}

// Create adds an account.
func (s *UserService) Create(ctx context.Context, caller domain.Principal, input UserCreateInput) (*domain.User, error) {
	if !access.CanManageDirectory(caller.Role) {
		return nil, apperrors.NewForbidden("admin role required")
	}

	user := &domain.User{
		Name:   strings.TrimSpace(input.Name),
		Email:  strings.ToLower(strings.TrimSpace(input.Email)),
		Role:   input.Role,
		Status: input.Status,
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	if err := validateUser(user, &input.Password); err != nil {
		return nil, err
	}
	if err := s.attachDepartment(ctx, user, input.DepartmentID); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, emailConflict(err)
	}
	return user, nil
}

// Update changes an account. Demoting a manager or moving them out of their
// department clears that department's manager in the same transaction.
func (s *UserService) Update(ctx context.Context, caller domain.Principal, id string, input UserUpdateInput) (*domain.User, error) {
	if !access.CanManageDirectory(caller.Role) {
		return nil, apperrors.NewForbidden("admin role required")
	}
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, storeError("user", err)
	}

	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.Status != nil {
		user.Status = *input.Status
	}
	if err := validateUser(user, input.Password); err != nil {
		return nil, err
	}
	if input.DepartmentID != nil {
		if err := s.attachDepartment(ctx, user, input.DepartmentID); err != nil {
			return nil, err
		}
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Update(ctx, user); err != nil {
			return emailConflict(err)
		}
		return releaseStaleManagement(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes an account and clears any department it managed, atomically.
func (s *UserService) Delete(ctx context.Context, caller domain.Principal, id string) error {
	if !access.CanManageDirectory(caller.Role) {
		return apperrors.NewForbidden("admin role required")
	}
	if caller.UserID == id {
		return apperrors.NewConflict("cannot delete your own account", nil)
	}
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, id); err != nil {
			return storeError("user", err)
		}
		departments, err := tx.Departments().List(ctx)
		if err != nil {
			return err
		}
		for i := range departments {
			dept := departments[i]
			if dept.ManagerID == nil || *dept.ManagerID != id {
				continue
			}
			dept.ManagerID = nil
			if err := tx.Departments().Update(ctx, &dept); err != nil {
				return storeError("department", err)
			}
		}
		return storeError("user", tx.Users().Delete(ctx, id))
	})
}

func (s *UserService) attachDepartment(ctx context.Context, user *domain.User, departmentID *string) error {
	if departmentID == nil || strings.TrimSpace(*departmentID) == "" {
		user.DepartmentID = nil
		return nil
	}
	id := strings.TrimSpace(*departmentID)
	if _, err := s.store.Departments().GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewFieldError("departmentId", "exists")
		}
		return err
	}
	user.DepartmentID = &id
	return nil
}

func validateUser(user *domain.User, password *string) error {
	fields := map[string]string{}
	if user.Name == "" {
		fields["name"] = "required"
	}
	if user.Email == "" {
		fields["email"] = "required"
	} else if !strings.Contains(user.Email, "@") {
		fields["email"] = "email"
	}
	if !user.Role.Valid() {
		fields["role"] = "oneof"
	}
	if user.Status != domain.UserStatusActive && user.Status != domain.UserStatusInactive {
		fields["status"] = "oneof"
	}
	if password != nil && utf8.RuneCountInString(*password) < minPasswordLength {
		fields["password"] = "min"
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
	}
	return nil
}

func emailConflict(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("email already registered", map[string]any{"field": "email"})
	}
	return storeError("user", err)
}
