package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role         *domain.Role
	DepartmentID *string
	Status       *domain.UserStatus
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
	// ClearDepartment detaches every member of a department.
	ClearDepartment(ctx context.Context, departmentID string) error
}

const userColumns = `id, name, email, password_hash, role, status, department_id, created_at, updated_at`

type userRepository struct {
	q queryer
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO users (id, name, email, password_hash, role, status, department_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at`

	err := r.q.QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		user.Status,
		nullString(user.DepartmentID),
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	return mapWriteError(err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, email=$2, password_hash=$3, role=$4, status=$5, department_id=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`

	err := r.q.QueryRowContext(ctx, query,
		user.Name,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		user.Status,
		nullString(user.DepartmentID),
		user.ID,
	).Scan(&user.UpdatedAt)
	return mapReadError(mapWriteError(err))
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, strings.ToLower(email)))
	if err != nil {
		return nil, mapReadError(err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("department_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY name ASC`, userColumns, strings.Join(clauses, " AND "))
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *userRepository) ClearDepartment(ctx context.Context, departmentID string) error {
	_, err := r.q.ExecContext(ctx, `UPDATE users SET department_id=NULL, updated_at=NOW() WHERE department_id=$1`, departmentID)
	return err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user       domain.User
		department sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Status,
		&department,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.DepartmentID = stringPtr(department)
	return &user, nil
}
