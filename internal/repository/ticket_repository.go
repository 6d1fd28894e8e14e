package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	AssigneeID *string
	CreatedBy  *string
	// ParticipantID restricts results to tickets the user created or is assigned to.
	ParticipantID *string
	SearchTerm    *string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error)
	MarkOverdueNotified(ctx context.Context, id string, at time.Time) error
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

const ticketColumns = `id, title, description, category, priority, status, created_by, assignee_id,
               due_date, tags, attachments, overdue_notified_at, created_at, updated_at`

type ticketRepository struct {
	q queryer
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	tags, attachments, err := encodeTicketLists(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, title, description, category, priority, status, created_by, assignee_id, due_date, tags, attachments)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb)
        RETURNING created_at, updated_at`
	err = r.q.QueryRowContext(ctx, query,
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		ticket.CreatedBy,
		nullString(ticket.AssigneeID),
		nullTime(ticket.DueDate),
		tags,
		attachments,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	return mapWriteError(err)
}

// Update rewrites the mutable columns. created_by is never touched, and
// overdue_notified_at is only reset when the due date actually changes, so a
// concurrent overdue scan is not undone.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	tags, attachments, err := encodeTicketLists(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET title=$1, description=$2, category=$3, priority=$4, status=$5,
            assignee_id=$6, due_date=$7, tags=$8::jsonb, attachments=$9::jsonb,
            overdue_notified_at = CASE WHEN due_date IS DISTINCT FROM $7 THEN NULL ELSE overdue_notified_at END,
            updated_at=NOW()
        WHERE id=$10
        RETURNING overdue_notified_at, updated_at`
	var overdueAt sql.NullTime
	err = r.q.QueryRowContext(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Category,
		ticket.Priority,
		ticket.Status,
		nullString(ticket.AssigneeID),
		nullTime(ticket.DueDate),
		tags,
		attachments,
		ticket.ID,
	).Scan(&overdueAt, &ticket.UpdatedAt)
	if err != nil {
		return mapReadError(mapWriteError(err))
	}
	ticket.OverdueNotifiedAt = timePtr(overdueAt)
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapReadError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByStatus(ctx context.Context, filter TicketFilter) (map[domain.TicketStatus]int, error) {
	where, args := buildTicketWhere(filter)
	query := fmt.Sprintf(`SELECT status, COUNT(*) FROM tickets WHERE %s GROUP BY status`, where)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.TicketStatus]int, len(domain.TicketStatuses))
	for rows.Next() {
		var status domain.TicketStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *ticketRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE due_date IS NOT NULL AND due_date < $1
          AND overdue_notified_at IS NULL
          AND status NOT IN ('resolved', 'closed')
        ORDER BY due_date ASC
        LIMIT $2`
	rows, err := r.q.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) MarkOverdueNotified(ctx context.Context, id string, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE tickets SET overdue_notified_at=$1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, cat := range filter.Categories {
			args = append(args, cat)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}
	if filter.ParticipantID != nil {
		args = append(args, *filter.ParticipantID)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(created_by=%s OR assignee_id=%s)", placeholder, placeholder))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		assignee    sql.NullString
		dueDate     sql.NullTime
		overdueAt   sql.NullTime
		tags        []byte
		attachments []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Category,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedBy,
		&assignee,
		&dueDate,
		&tags,
		&attachments,
		&overdueAt,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.AssigneeID = stringPtr(assignee)
	ticket.DueDate = timePtr(dueDate)
	ticket.OverdueNotifiedAt = timePtr(overdueAt)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &ticket.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &ticket.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments: %w", err)
		}
	}
	if ticket.Tags == nil {
		ticket.Tags = []string{}
	}
	if ticket.Attachments == nil {
		ticket.Attachments = []domain.Attachment{}
	}
	return &ticket, nil
}

func encodeTicketLists(ticket *domain.Ticket) (string, string, error) {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := ticket.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	encodedTags, err := jsonColumn(tags)
	if err != nil {
		return "", "", fmt.Errorf("encode tags: %w", err)
	}
	encodedAttachments, err := jsonColumn(attachments)
	if err != nil {
		return "", "", fmt.Errorf("encode attachments: %w", err)
	}
	return encodedTags, encodedAttachments, nil
}
