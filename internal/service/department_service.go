package service

import (
	"context"
	"errors"
	"strings"

	"github.com/tadbeer/helpdesk/internal/access"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// DepartmentService manages departments and keeps the manager linkage
// consistent: the department row and the manager's user row change together.
type DepartmentService struct {
	store repository.Store
}

// NewDepartmentService constructs the service.
func NewDepartmentService(store repository.Store) *DepartmentService {
	return &DepartmentService{store: store}
}

// DepartmentInput is used for create and partial update. An empty ManagerID
// on update removes the manager.
type DepartmentInput struct {
	Name        *string
	Description *string
	ManagerID   *string
}

// List returns every department.
func (s *DepartmentService) List(ctx context.Context) ([]domain.Department, error) {
	return s.store.Departments().List(ctx)
}

// Get returns one department or NOT_FOUND.
func (s *DepartmentService) Get(ctx context.Context, id string) (*domain.Department, error) {
	dept, err := s.store.Departments().GetByID(ctx, id)
	if err != nil {
		return nil, storeError("department", err)
	}
	return dept, nil
}

// Create inserts the department and, when a manager is named, promotes that
// user inside the same transaction.
func (s *DepartmentService) Create(ctx context.Context, caller domain.Principal, input DepartmentInput) (*domain.Department, error) {
	if !access.CanManageDirectory(caller.Role) {
		return nil, apperrors.NewForbidden("admin role required")
	}
	dept := &domain.Department{}
	if input.Name != nil {
		dept.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		dept.Description = strings.TrimSpace(*input.Description)
	}
	if dept.Name == "" {
		return nil, apperrors.NewFieldError("name", "required")
	}
	managerID := trimmed(input.ManagerID)

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Departments().Create(ctx, dept); err != nil {
			return nameConflict(err)
		}
		if managerID == "" {
			return nil
		}
		return linkManager(ctx, tx, dept, managerID)
	})
	if err != nil {
		return nil, err
	}
	return dept, nil
}

// Update changes the department. A new manager is promoted and attached in the
// same transaction as the department write.
func (s *DepartmentService) Update(ctx context.Context, caller domain.Principal, id string, input DepartmentInput) (*domain.Department, error) {
	if !access.CanManageDirectory(caller.Role) {
		return nil, apperrors.NewForbidden("admin role required")
	}

	var result *domain.Department
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		dept, err := tx.Departments().GetByID(ctx, id)
		if err != nil {
			return storeError("department", err)
		}
		if input.Name != nil {
			dept.Name = strings.TrimSpace(*input.Name)
			if dept.Name == "" {
				return apperrors.NewFieldError("name", "required")
			}
		}
		if input.Description != nil {
			dept.Description = strings.TrimSpace(*input.Description)
		}

		if input.ManagerID == nil {
			if err := tx.Departments().Update(ctx, dept); err != nil {
				return nameConflict(err)
			}
			result = dept
			return nil
		}

		managerID := trimmed(input.ManagerID)
		if managerID == "" {
			dept.ManagerID = nil
			if err := tx.Departments().Update(ctx, dept); err != nil {
				return nameConflict(err)
			}
			result = dept
			return nil
		}
		if err := linkManager(ctx, tx, dept, managerID); err != nil {
			return err
		}
		result = dept
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the department and detaches its members in one transaction.
func (s *DepartmentService) Delete(ctx context.Context, caller domain.Principal, id string) error {
	if !access.CanManageDirectory(caller.Role) {
		return apperrors.NewForbidden("admin role required")
	}
	return s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Departments().GetByID(ctx, id); err != nil {
			return storeError("department", err)
		}
		if err := tx.Users().ClearDepartment(ctx, id); err != nil {
			return err
		}
		return storeError("department", tx.Departments().Delete(ctx, id))
	})
}

// linkManager sets dept.ManagerID, writes the department, then forces the
// user's role to manager and moves them into the department.
func linkManager(ctx context.Context, tx repository.Store, dept *domain.Department, managerID string) error {
	manager, err := tx.Users().GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewFieldError("managerId", "exists")
		}
		return err
	}

	dept.ManagerID = &managerID
	if err := tx.Departments().Update(ctx, dept); err != nil {
		return nameConflict(err)
	}

	manager.Role = domain.RoleManager
	deptID := dept.ID
	manager.DepartmentID = &deptID
	if err := tx.Users().Update(ctx, manager); err != nil {
		return storeError("user", err)
	}
	return releaseStaleManagement(ctx, tx, manager)
}

// releaseStaleManagement clears managerId on every department the user still
// points at but no longer leads, after a demotion or a move elsewhere.
func releaseStaleManagement(ctx context.Context, tx repository.Store, user *domain.User) error {
	departments, err := tx.Departments().List(ctx)
	if err != nil {
		return err
	}
	for i := range departments {
		dept := departments[i]
		if dept.ManagerID == nil || *dept.ManagerID != user.ID {
			continue
		}
		if user.Role == domain.RoleManager && user.DepartmentID != nil && *user.DepartmentID == dept.ID {
			continue
		}
		dept.ManagerID = nil
		if err := tx.Departments().Update(ctx, &dept); err != nil {
			return storeError("department", err)
		}
	}
	return nil
}

func nameConflict(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return apperrors.NewConflict("department name already exists", map[string]any{"field": "name"})
	}
	return storeError("department", err)
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
