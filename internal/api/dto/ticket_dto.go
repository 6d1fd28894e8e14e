package dto

import (
	"time"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"max=10000"`
	Category    string              `json:"category" validate:"required,oneof=Technical Security Feature Account Bug"`
	Priority    string              `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      string              `json:"status" validate:"omitempty,oneof=open in-progress pending resolved closed"`
	Assignee    *string             `json:"assignee"`
	DueDate     *time.Time          `json:"dueDate"`
	Tags        []string            `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Attachments []AttachmentRequest `json:"attachments" validate:"omitempty,max=10,dive"`
}

// UpdateTicketRequest is a partial update. assignee and dueDate accept null
// to clear the value.
type UpdateTicketRequest struct {
	Title       *string              `json:"title" validate:"omitempty,max=200"`
	Description *string              `json:"description" validate:"omitempty,max=10000"`
	Category    *string              `json:"category" validate:"omitempty,oneof=Technical Security Feature Account Bug"`
	Priority    *string              `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Status      *string              `json:"status" validate:"omitempty,oneof=open in-progress pending resolved closed"`
	Assignee    Optional[string]     `json:"assignee"`
	DueDate     Optional[time.Time]  `json:"dueDate"`
	Tags        *[]string            `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	Attachments *[]AttachmentRequest `json:"attachments" validate:"omitempty,max=10,dive"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in-progress pending resolved closed"`
}

// AttachmentRequest describes attachment input.
type AttachmentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	URL  string `json:"url" validate:"required,url"`
}

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	Priority    string              `json:"priority"`
	Status      string              `json:"status"`
	CreatedBy   string              `json:"createdBy"`
	Assignee    *string             `json:"assignee"`
	DueDate     *time.Time          `json:"dueDate"`
	Tags        []string            `json:"tags"`
	Attachments []domain.Attachment `json:"attachments"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// CommentResponse is the wire form of a comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TicketDetailResponse is returned by GET /tickets/:id.
type TicketDetailResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Comments []CommentResponse `json:"comments"`
}

// TicketStatsResponse summarizes visible tickets.
type TicketStatsResponse struct {
	ByStatus map[string]int `json:"byStatus"`
	Total    int            `json:"total"`
}

// NewTicketResponse converts a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	attachments := t.Attachments
	if attachments == nil {
		attachments = []domain.Attachment{}
	}
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Category:    string(t.Category),
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		CreatedBy:   t.CreatedBy,
		Assignee:    t.AssigneeID,
		DueDate:     t.DueDate,
		Tags:        tags,
		Attachments: attachments,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// NewTicketList converts a slice, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewCommentResponse converts a domain comment.
func NewCommentResponse(c *domain.Comment) CommentResponse {
	return CommentResponse{
		ID:        c.ID,
		TicketID:  c.TicketID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToAttachments converts request attachments.
func ToAttachments(in []AttachmentRequest) []domain.Attachment {
	out := make([]domain.Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, domain.Attachment{Name: a.Name, URL: a.URL})
	}
	return out
}
