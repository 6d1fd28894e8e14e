package dto

import (
	"time"

	"github.com/tadbeer/helpdesk/internal/domain"
)

// RegisterRequest payload for self sign-up.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest payload for authenticated password changes.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72"`
}

// CreateUserRequest is used by admins.
type CreateUserRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	Email        string  `json:"email" validate:"required,email"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	Role         string  `json:"role" validate:"omitempty,oneof=user agent manager admin"`
	Status       string  `json:"status" validate:"omitempty,oneof=active inactive"`
	DepartmentID *string `json:"departmentId"`
}

// UpdateUserRequest is a partial update.
type UpdateUserRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=100"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Password     *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role         *string `json:"role" validate:"omitempty,oneof=user agent manager admin"`
	Status       *string `json:"status" validate:"omitempty,oneof=active inactive"`
	DepartmentID *string `json:"departmentId"`
}

// UserResponse never carries the password hash.
type UserResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	DepartmentID *string   `json:"departmentId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	User      UserResponse `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// NewUserResponse converts a domain user.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		Status:       string(u.Status),
		DepartmentID: u.DepartmentID,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// NewUserList converts a slice, never returning nil.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}
