package domain

import "time"

// Comment is a message on a ticket thread. Comments are soft deleted.
type Comment struct {
	ID        string
	TicketID  string
	UserID    string
	Content   string
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Deleted reports whether the comment was soft deleted.
func (c *Comment) Deleted() bool {
	return c.DeletedAt != nil
}
