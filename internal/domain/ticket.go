package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, candidate := range TicketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Terminal reports whether the ticket no longer needs work.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, candidate := range TicketPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// TicketCategory classifies the kind of request.
type TicketCategory string

const (
	TicketCategoryTechnical TicketCategory = "Technical"
	TicketCategorySecurity  TicketCategory = "Security"
	TicketCategoryFeature   TicketCategory = "Feature"
	TicketCategoryAccount   TicketCategory = "Account"
	TicketCategoryBug       TicketCategory = "Bug"
)

// TicketCategories lists every category.
var TicketCategories = []TicketCategory{
	TicketCategoryTechnical,
	TicketCategorySecurity,
	TicketCategoryFeature,
	TicketCategoryAccount,
	TicketCategoryBug,
}

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	for _, candidate := range TicketCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// Attachment references an uploaded file by URL.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Ticket is the aggregate for helpdesk work items. CreatedBy never changes
// after creation.
type Ticket struct {
	ID                string
	Title             string
	Description       string
	Category          TicketCategory
	Priority          TicketPriority
	Status            TicketStatus
	CreatedBy         string
	AssigneeID        *string
	DueDate           *time.Time
	Tags              []string
	Attachments       []Attachment
	OverdueNotifiedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasAssignee reports whether the ticket is assigned to someone.
func (t *Ticket) HasAssignee() bool {
	return t.AssigneeID != nil && *t.AssigneeID != ""
}

// Assignee returns the assignee id or an empty string.
func (t *Ticket) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}
