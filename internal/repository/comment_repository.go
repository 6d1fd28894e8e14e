package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// CommentRepository persists ticket comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	// ListByTicket returns non-deleted comments oldest first.
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

const commentColumns = `id, ticket_id, user_id, content, deleted_at, created_at, updated_at`

type commentRepository struct {
	q queryer
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO comments (id, ticket_id, user_id, content)
        VALUES ($1,$2,$3,$4)
        RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		comment.ID,
		comment.TicketID,
		comment.UserID,
		comment.Content,
	).Scan(&comment.CreatedAt, &comment.UpdatedAt)
	return mapWriteError(err)
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	comment, err := scanComment(r.q.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return comment, nil
}

func (r *commentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments
        WHERE ticket_id=$1 AND deleted_at IS NULL
        ORDER BY created_at ASC`
	rows, err := r.q.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *comment)
	}
	return result, rows.Err()
}

func (r *commentRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE comments SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanComment(row rowScanner) (*domain.Comment, error) {
	var (
		comment domain.Comment
		deleted sql.NullTime
	)
	if err := row.Scan(
		&comment.ID,
		&comment.TicketID,
		&comment.UserID,
		&comment.Content,
		&deleted,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	comment.DeletedAt = timePtr(deleted)
	return &comment, nil
}
