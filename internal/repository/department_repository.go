package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// DepartmentRepository manages department persistence.
type DepartmentRepository interface {
	Create(ctx context.Context, dept *domain.Department) error
	Update(ctx context.Context, dept *domain.Department) error
	GetByID(ctx context.Context, id string) (*domain.Department, error)
	List(ctx context.Context) ([]domain.Department, error)
	Delete(ctx context.Context, id string) error
}

const departmentColumns = `id, name, description, manager_id, created_at, updated_at`

type departmentRepository struct {
	q queryer
}

func (r *departmentRepository) Create(ctx context.Context, dept *domain.Department) error {
	if dept.ID == "" {
		dept.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO departments (id, name, description, manager_id)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		dept.ID,
		dept.Name,
		dept.Description,
		nullString(dept.ManagerID),
	).Scan(&dept.CreatedAt, &dept.UpdatedAt)
	return mapWriteError(err)
}

func (r *departmentRepository) Update(ctx context.Context, dept *domain.Department) error {
	const query = `
        UPDATE departments SET name=$1, description=$2, manager_id=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`
	err := r.q.QueryRowContext(ctx, query,
		dept.Name,
		dept.Description,
		nullString(dept.ManagerID),
		dept.ID,
	).Scan(&dept.UpdatedAt)
	return mapReadError(mapWriteError(err))
}

func (r *departmentRepository) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	dept, err := scanDepartment(r.q.QueryRowContext(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id=$1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return dept, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Department{}
	for rows.Next() {
		dept, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dept)
	}
	return result, rows.Err()
}

func (r *departmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM departments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanDepartment(row rowScanner) (*domain.Department, error) {
	var (
		dept    domain.Department
		manager sql.NullString
	)
	if err := row.Scan(&dept.ID, &dept.Name, &dept.Description, &manager, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
		return nil, err
	}
	dept.ManagerID = stringPtr(manager)
	return &dept, nil
}
