package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// NotificationRepository persists recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	// ListByUser returns the newest notifications first.
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	Delete(ctx context.Context, id string) error
}

const notificationColumns = `id, user_id, type, title, message, link, is_read, read_at, created_at`

type notificationRepository struct {
	q queryer
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	const query = `
        INSERT INTO notifications (id, user_id, type, title, message, link)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	err := r.q.QueryRowContext(ctx, query,
		n.ID,
		n.UserID,
		n.Type,
		n.Title,
		n.Message,
		n.Link,
	).Scan(&n.CreatedAt)
	return mapWriteError(err)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := scanNotification(r.q.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=$1`, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id=$1 AND is_read = FALSE`, userID).Scan(&count)
	return count, err
}

// MarkRead keeps the first read timestamp when called twice.
func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $1) WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE user_id=$2 AND is_read = FALSE`, at, userID)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

func (r *notificationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM notifications WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n      domain.Notification
		readAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Link, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ReadAt = timePtr(readAt)
	return &n, nil
}
