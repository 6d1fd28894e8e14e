package domain

import "time"

// Department groups users under a manager.
type Department struct {
	ID          string
	Name        string
	Description string
	ManagerID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
