package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tadbeer/helpdesk/internal/domain"
	"github.com/tadbeer/helpdesk/internal/events"
	"github.com/tadbeer/helpdesk/internal/observability"
	"github.com/tadbeer/helpdesk/internal/repository"
	apperrors "github.com/tadbeer/helpdesk/pkg/util/errorutil"
)

// Sender delivers a copy of a stored notification somewhere outside the
// database, such as a chat webhook.
type Sender interface {
	Send(ctx context.Context, n *domain.Notification) error
}

// NotificationService turns domain events into notification records and
// serves the recipient's inbox.
type NotificationService struct {
	store   repository.Store
	sender  Sender
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	Store   repository.Store
	Sender  Sender
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		store:   deps.Store,
		sender:  deps.Sender,
		logger:  logger,
		metrics: deps.Metrics,
		now:     time.Now,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	dispatcher.Subscribe(events.EventCommentAdded, n.handleCommentAdded)
	dispatcher.Subscribe(events.EventTicketOverdue, n.handleTicketOverdue)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.AssigneeID == "" {
		return nil
	}
	return n.emit(ctx, &domain.Notification{
		UserID:  payload.AssigneeID,
		Type:    domain.NotificationTicketAssigned,
		Title:   "New ticket assigned",
		Message: fmt.Sprintf("You have been assigned to ticket %q", payload.Title),
		Link:    ticketLink(event.TicketID),
	})
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if payload.AssigneeID == "" {
		return nil
	}
	return n.emit(ctx, &domain.Notification{
		UserID:  payload.AssigneeID,
		Type:    domain.NotificationTicketAssigned,
		Title:   "Ticket assigned",
		Message: fmt.Sprintf("You have been assigned to ticket %q", payload.Title),
		Link:    ticketLink(event.TicketID),
	})
}

func (n *NotificationService) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CommentAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}

	var firstErr error
	for _, recipient := range CommentRecipients(payload.AssigneeID, payload.CreatedBy, payload.AuthorID) {
		err := n.emit(ctx, &domain.Notification{
			UserID:  recipient,
			Type:    domain.NotificationCommentAdded,
			Title:   "New comment",
			Message: fmt.Sprintf("New comment on ticket %q: %s", payload.Title, payload.Preview),
			Link:    ticketLink(event.TicketID),
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (n *NotificationService) handleTicketOverdue(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketOverduePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	recipient := payload.AssigneeID
	if recipient == "" {
		recipient = payload.CreatedBy
	}
	if recipient == "" {
		return nil
	}
	return n.emit(ctx, &domain.Notification{
		UserID:  recipient,
		Type:    domain.NotificationTicketOverdue,
		Title:   "Ticket overdue",
		Message: fmt.Sprintf("Ticket %q passed its due date %s", payload.Title, payload.DueDate.Format(time.RFC3339)),
		Link:    ticketLink(event.TicketID),
	})
}

// CommentRecipients returns {assignee, creator} minus the author, without
// duplicates or blanks.
func CommentRecipients(assignee, creator, author string) []string {
	var out []string
	for _, candidate := range []string{assignee, creator} {
		if candidate == "" || candidate == author {
			continue
		}
		if len(out) == 1 && out[0] == candidate {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// emit stores the notification and forwards a copy to the sender. Sender
// failures are logged only.
func (n *NotificationService) emit(ctx context.Context, notification *domain.Notification) error {
	if err := n.store.Notifications().Create(ctx, notification); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	n.metrics.NotificationEmitted(string(notification.Type))

	if n.sender != nil {
		if err := n.sender.Send(ctx, notification); err != nil {
			n.logger.Warn("notification webhook failed",
				zap.String("notification_id", notification.ID),
				zap.String("user_id", notification.UserID),
				zap.Error(err))
		}
	}
	return nil
}

func ticketLink(ticketID string) string {
	return "/tickets/" + ticketID
}

// List returns the caller's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, caller domain.Principal, unreadOnly bool, limit int) ([]domain.Notification, error) {
	list, err := n.store.Notifications().ListByUser(ctx, caller.UserID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// UnreadCount returns how many notifications the caller has not read.
func (n *NotificationService) UnreadCount(ctx context.Context, caller domain.Principal) (int, error) {
	return n.store.Notifications().CountUnread(ctx, caller.UserID)
}

// MarkRead marks one of the caller's notifications as read.
func (n *NotificationService) MarkRead(ctx context.Context, caller domain.Principal, id string) (*domain.Notification, error) {
	if _, err := n.owned(ctx, caller, id); err != nil {
		return nil, err
	}
	if err := n.store.Notifications().MarkRead(ctx, id, n.now().UTC()); err != nil {
		return nil, storeError("notification", err)
	}
	updated, err := n.store.Notifications().GetByID(ctx, id)
	if err != nil {
		return nil, storeError("notification", err)
	}
	return updated, nil
}

// MarkAllRead marks every unread notification of the caller and reports how many changed.
func (n *NotificationService) MarkAllRead(ctx context.Context, caller domain.Principal) (int, error) {
	return n.store.Notifications().MarkAllRead(ctx, caller.UserID, n.now().UTC())
}

// Delete removes one of the caller's notifications.
func (n *NotificationService) Delete(ctx context.Context, caller domain.Principal, id string) error {
	if _, err := n.owned(ctx, caller, id); err != nil {
		return err
	}
	return storeError("notification", n.store.Notifications().Delete(ctx, id))
}

// owned hides other users' notifications behind a 404.
func (n *NotificationService) owned(ctx context.Context, caller domain.Principal, id string) (*domain.Notification, error) {
	notification, err := n.store.Notifications().GetByID(ctx, id)
	if err != nil {
		return nil, storeError("notification", err)
	}
	if notification.UserID != caller.UserID {
		return nil, apperrors.NewNotFound("notification", nil)
	}
	return notification, nil
}
