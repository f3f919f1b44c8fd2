package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// RegisterResponse defines the successful response for the registration endpoint.
type RegisterResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for the login endpoint.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID uuid.UUID `json:"user_id"`

	// Username echoes the authenticated username
	Username string `json:"username"`

	// AccessToken is the JWT token used for API authorization
	AccessToken string `json:"token"`

	// ExpiresAt is the ISO 8601 timestamp when the access token expires
	ExpiresAt string `json:"expires_at"`
}

// CreateTaskRequest defines the payload for task creation.
type CreateTaskRequest struct {
	Name           string     `json:"task_name"   validate:"required"`
	Description    string     `json:"description"`
	Done           bool       `json:"status"`
	Priority       string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id"`
}

// UpdateTaskRequest defines the payload for partial task updates. Absent
// fields leave the stored value unchanged.
type UpdateTaskRequest struct {
	Name           *string    `json:"task_name"`
	Description    *string    `json:"description"`
	Done           *bool      `json:"status"`
	Priority       *string    `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id"`
}

// TaskResponse defines the task representation returned by the API. The
// internal primary key is exposed separately from the logger ID because
// mutating endpoints address tasks by internal ID while reads use logger IDs.
type TaskResponse struct {
	ID             uuid.UUID  `json:"id"`
	LoggerID       uuid.UUID  `json:"logger_id"`
	Name           string     `json:"task_name"`
	Description    string     `json:"description"`
	Done           bool       `json:"status"`
	Priority       string     `json:"priority"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedByID    uuid.UUID  `json:"created_by_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTaskResponse converts a domain task into its API representation.
func NewTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:             task.ID,
		LoggerID:       task.LoggerID,
		Name:           task.Name,
		Description:    task.Description,
		Done:           task.Done,
		Priority:       string(task.Priority),
		AssignedUserID: task.AssignedUserID,
		CreatedByID:    task.CreatedByID,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

// TaskListResponse defines one page of tasks plus pagination metadata.
type TaskListResponse struct {
	Items   []TaskResponse `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
}

// ImportAcceptedResponse defines the 202 response for a CSV upload.
type ImportAcceptedResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// ImportStatusResponse defines the import job status document.
type ImportStatusResponse struct {
	JobID     uuid.UUID         `json:"job_id"`
	Status    string            `json:"status"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	RowErrors []domain.RowError `json:"row_errors,omitempty"`
	Error     string            `json:"error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
