package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/access"
	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/events"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

const (
	maxTitleLength   = 200
	maxCommentLength = 5000
	previewLength    = 140
)

// TicketService coordinates ticket workflows: validate, authorize, persist,
// then publish events for the notification emitter.
type TicketService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	Status      domain.TicketStatus
	AssigneeID  *string
	DueDate     *time.Time
	Tags        []string
	Attachments []domain.Attachment
}

// TicketUpdateInput carries a partial update. Nil fields are left unchanged;
// an empty AssigneeID unassigns the ticket.
type TicketUpdateInput struct {
	Title        *string
	Description  *string
	Category     *domain.TicketCategory
	Priority     *domain.TicketPriority
	Status       *domain.TicketStatus
	AssigneeID   *string
	DueDate      *time.Time
	ClearDueDate bool
	Tags         *[]string
	Attachments  *[]domain.Attachment
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	AssigneeID *string
	CreatedBy  *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketDetail is a ticket with its visible comment thread.
type TicketDetail struct {
	Ticket   *domain.Ticket
	Comments []domain.Comment
}

// TicketStats summarizes the tickets a caller can see.
type TicketStats struct {
	ByStatus map[domain.TicketStatus]int
	Total    int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateTicket opens a ticket on behalf of the caller.
func (s *TicketService) CreateTicket(ctx context.Context, caller domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	if !access.CanCreateTicket(caller.Role) {
		return nil, apperrors.NewForbidden("role cannot create tickets")
	}

	ticket := &domain.Ticket{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Category:    input.Category,
		Priority:    input.Priority,
		Status:      input.Status,
		CreatedBy:   caller.UserID,
		DueDate:     input.DueDate,
		Tags:        normalizeTags(input.Tags),
		Attachments: input.Attachments,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}

	if input.AssigneeID != nil && strings.TrimSpace(*input.AssigneeID) != "" {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if err := s.ensureUserExists(ctx, "assignee", assignee); err != nil {
			return nil, err
		}
		ticket.AssigneeID = &assignee
	}

	if err := s.store.Tickets().Create(ctx, ticket); err != nil {
		return nil, storeError("ticket", err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  caller.UserID,
		Payload: events.TicketCreatedPayload{
			Title:      ticket.Title,
			CreatedBy:  ticket.CreatedBy,
			AssigneeID: ticket.Assignee(),
		},
	})
	return ticket, nil
}

// ListTickets returns tickets visible to the caller, newest first.
func (s *TicketService) ListTickets(ctx context.Context, caller domain.Principal, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := access.ListScope(caller, repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		AssigneeID: filter.AssigneeID,
		CreatedBy:  filter.CreatedBy,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	return s.store.Tickets().List(ctx, repoFilter)
}

// Stats counts visible tickets per status. Every status is present in the map.
func (s *TicketService) Stats(ctx context.Context, caller domain.Principal) (*TicketStats, error) {
	counts, err := s.store.Tickets().CountByStatus(ctx, access.ListScope(caller, repository.TicketFilter{}))
	if err != nil {
		return nil, err
	}
	stats := &TicketStats{ByStatus: make(map[domain.TicketStatus]int, len(domain.TicketStatuses))}
	for _, status := range domain.TicketStatuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

// GetTicket returns the ticket and its non-deleted comments, oldest first.
func (s *TicketService) GetTicket(ctx context.Context, caller domain.Principal, ticketID string) (*TicketDetail, error) {
	ticket, err := s.loadAccessible(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.Comments().ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	return &TicketDetail{Ticket: ticket, Comments: comments}, nil
}

// UpdateTicket applies a partial update. Only a change to a new non-empty
// assignee produces a notification.
func (s *TicketService) UpdateTicket(ctx context.Context, caller domain.Principal, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.loadAccessible(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	previousAssignee := ticket.Assignee()

	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Category != nil {
		ticket.Category = *input.Category
	}
	if input.Priority != nil {
		ticket.Priority = *input.Priority
	}
	if input.Status != nil {
		ticket.Status = *input.Status
	}
	if input.ClearDueDate {
		ticket.DueDate = nil
	} else if input.DueDate != nil {
		due := *input.DueDate
		ticket.DueDate = &due
	}
	if input.Tags != nil {
		ticket.Tags = normalizeTags(*input.Tags)
	}
	if input.Attachments != nil {
		ticket.Attachments = *input.Attachments
	}
	if err := validateTicket(ticket); err != nil {
		return nil, err
	}

	if input.AssigneeID != nil {
		assignee := strings.TrimSpace(*input.AssigneeID)
		if assignee == "" {
			ticket.AssigneeID = nil
		} else {
			if assignee != previousAssignee {
				if err := s.ensureUserExists(ctx, "assignee", assignee); err != nil {
					return nil, err
				}
			}
			ticket.AssigneeID = &assignee
		}
	}

	if err := s.store.Tickets().Update(ctx, ticket); err != nil {
		return nil, storeError("ticket", err)
	}

	if current := ticket.Assignee(); current != "" && current != previousAssignee {
		s.publish(ctx, events.Event{
			Type:     events.EventTicketAssigned,
			TicketID: ticket.ID,
			ActorID:  caller.UserID,
			Payload: events.TicketAssignedPayload{
				Title:            ticket.Title,
				PreviousAssignee: previousAssignee,
				AssigneeID:       current,
			},
		})
	}
	return ticket, nil
}

// ChangeStatus moves the ticket to any valid status. Setting the current
// status again is a no-op.
func (s *TicketService) ChangeStatus(ctx context.Context, caller domain.Principal, ticketID string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewFieldError("status", "oneof")
	}
	ticket, err := s.loadAccessible(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status {
		return ticket, nil
	}
	ticket.Status = status
	if err := s.store.Tickets().Update(ctx, ticket); err != nil {
		return nil, storeError("ticket", err)
	}
	return ticket, nil
}

// AddComment appends to the ticket thread and notifies the other participants.
func (s *TicketService) AddComment(ctx context.Context, caller domain.Principal, ticketID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewFieldError("text", "required")
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return nil, apperrors.NewFieldError("text", "max")
	}

	ticket, err := s.loadAccessible(ctx, caller, ticketID)
	if err != nil {
		return nil, err
	}

	comment := &domain.Comment{
		TicketID: ticket.ID,
		UserID:   caller.UserID,
		Content:  content,
	}
	if err := s.store.Comments().Create(ctx, comment); err != nil {
		return nil, storeError("comment", err)
	}

	s.publish(ctx, events.Event{
		Type:     events.EventCommentAdded,
		TicketID: ticket.ID,
		ActorID:  caller.UserID,
		Payload: events.CommentAddedPayload{
			CommentID:  comment.ID,
			Title:      ticket.Title,
			AuthorID:   caller.UserID,
			CreatedBy:  ticket.CreatedBy,
			AssigneeID: ticket.Assignee(),
			Preview:    truncate(content, previewLength),
		},
	})
	return comment, nil
}

// DeleteComment soft deletes a comment. Authors may remove their own comments;
// managers and admins may remove any.
func (s *TicketService) DeleteComment(ctx context.Context, caller domain.Principal, ticketID, commentID string) error {
	ticket, err := s.loadAccessible(ctx, caller, ticketID)
	if err != nil {
		return err
	}
	comment, err := s.store.Comments().GetByID(ctx, commentID)
	if err != nil {
		return storeError("comment", err)
	}
	if comment.TicketID != ticket.ID || comment.Deleted() {
		return apperrors.NewNotFound("comment", nil)
	}
	if !access.CanDeleteComment(caller, comment) {
		return apperrors.NewForbidden("only the author can delete this comment")
	}
	return storeError("comment", s.store.Comments().SoftDelete(ctx, comment.ID, s.now().UTC()))
}

// DeleteTicket hard deletes the ticket. Comments and notifications stay behind.
func (s *TicketService) DeleteTicket(ctx context.Context, caller domain.Principal, ticketID string) error {
	if !access.CanDeleteTicket(caller.Role) {
		return apperrors.NewForbidden("role cannot delete tickets")
	}
	return storeError("ticket", s.store.Tickets().Delete(ctx, ticketID))
}

// loadAccessible fetches the ticket and applies the access policy. Missing
// tickets are reported before denials.
func (s *TicketService) loadAccessible(ctx context.Context, caller domain.Principal, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, storeError("ticket", err)
	}
	if !access.CanAccessTicket(caller, ticket) {
		return nil, apperrors.NewForbidden("you do not have access to this ticket")
	}
	return ticket, nil
}

func (s *TicketService) ensureUserExists(ctx context.Context, field, userID string) error {
	_, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewFieldError(field, "exists")
	}
	return err
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, event)
}

func validateTicket(t *domain.Ticket) error {
	fields := map[string]string{}
	if t.Title == "" {
		fields["title"] = "required"
	} else if utf8.RuneCountInString(t.Title) > maxTitleLength {
		fields["title"] = "max"
	}
	if t.Category == "" {
		fields["category"] = "required"
	} else if !t.Category.Valid() {
		fields["category"] = "oneof"
	}
	if !t.Priority.Valid() {
		fields["priority"] = "oneof"
	}
	if !t.Status.Valid() {
		fields["status"] = "oneof"
	}
	for _, a := range t.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			fields["attachments"] = "url"
			break
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
	}
	return nil
}

// normalizeTags trims, drops empties and removes duplicates, keeping order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
