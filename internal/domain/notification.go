package domain

import "time"

// NotificationType tags the reason a notification was created.
type NotificationType string

const (
	NotificationTicketAssigned NotificationType = "ticket_assigned"
	// NotificationTicketUpdated is part of the taxonomy but no workflow emits it yet.
	NotificationTicketUpdated NotificationType = "ticket_updated"
	NotificationCommentAdded  NotificationType = "comment_added"
	NotificationTicketOverdue NotificationType = "ticket_overdue"
	NotificationSystem        NotificationType = "system"
)

// Notification is a recipient-facing alert.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	Link      string
	IsRead    bool
	ReadAt    *time.Time
	CreatedAt time.Time
}
