package dto

import (
	"time"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// DepartmentRequest is used for create and update. An empty managerId on
// update removes the manager.
type DepartmentRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	ManagerID   *string `json:"managerId"`
}

// DepartmentResponse is the wire form of a department.
type DepartmentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ManagerID   *string   `json:"managerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NotificationResponse is the wire form of a notification.
type NotificationResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      string     `json:"link"`
	IsRead    bool       `json:"isRead"`
	ReadAt    *time.Time `json:"readAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

func NewDepartmentResponse(d *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		ManagerID:   d.ManagerID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func NewDepartmentList(departments []domain.Department) []DepartmentResponse {
	out := make([]DepartmentResponse, 0, len(departments))
	for i := range departments {
		out = append(out, NewDepartmentResponse(&departments[i]))
	}
	return out
}

func NewNotificationResponse(n *domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func NewNotificationList(list []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(list))
	for i := range list {
		out = append(out, NewNotificationResponse(&list[i]))
	}
	return out
}
