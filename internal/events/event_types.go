package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated  EventType = "ticket_created"
	EventTicketAssigned EventType = "ticket_assigned"
	EventCommentAdded   EventType = "comment_added"
	EventTicketOverdue  EventType = "ticket_overdue"
)

// Event represents a domain event emitted by services after a write commits.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticketId"`
	ActorID   string    `json:"actorId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string `json:"title"`
	CreatedBy  string `json:"createdBy"`
	AssigneeID string `json:"assignee,omitempty"`
}

// TicketAssignedPayload is published when an update moves the ticket to a new assignee.
type TicketAssignedPayload struct {
	Title            string `json:"title"`
	PreviousAssignee string `json:"previousAssignee,omitempty"`
	AssigneeID       string `json:"assignee"`
}

// CommentAddedPayload carries the ticket participants so handlers need no lookup.
type CommentAddedPayload struct {
	CommentID  string `json:"commentId"`
	Title      string `json:"title"`
	AuthorID   string `json:"authorId"`
	CreatedBy  string `json:"createdBy"`
	AssigneeID string `json:"assignee,omitempty"`
	Preview    string `json:"preview"`
}

// TicketOverduePayload payload.
type TicketOverduePayload struct {
	Title      string    `json:"title"`
	CreatedBy  string    `json:"createdBy"`
	AssigneeID string    `json:"assignee,omitempty"`
	DueDate    time.Time `json:"dueDate"`
}
