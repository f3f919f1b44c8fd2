package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is the task priority enum.
type Priority string

// Valid priorities, lowest to highest.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ValidPriority reports whether p is a member of the priority enum.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task represents a unit of work tracked by the service.
//
// ID is the internal primary key used by mutating endpoints; LoggerID is the
// externally exposed identifier used by the read endpoints. DeletedAt marks a
// soft-deleted task: soft-deleted tasks are invisible to all reads but their
// rows (and audit history) persist.
type Task struct {
	ID             uuid.UUID  `json:"-"`
	LoggerID       uuid.UUID  `json:"logger_id"`
	Name           string     `json:"task_name"`
	Description    string     `json:"description"`
	Done           bool       `json:"status"`
	Priority       Priority   `json:"priority"`
	AssignedUserID *uuid.UUID `json:"assigned_user_id,omitempty"`
	CreatedByID    uuid.UUID  `json:"created_by_id"`
	DeletedAt      *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTask creates a new Task with generated internal and logger IDs.
func NewTask(name, description string, priority Priority, createdBy uuid.UUID, assignedTo *uuid.UUID) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:             uuid.New(),
		LoggerID:       uuid.New(),
		Name:           name,
		Description:    description,
		Done:           false,
		Priority:       priority,
		AssignedUserID: assignedTo,
		CreatedByID:    createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks that the Task holds valid data. A whitespace-only name is
// as empty as an absent one.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTaskName
	}
	if !ValidPriority(t.Priority) {
		return ErrInvalidPriority
	}
	return nil
}

// VisibleTo reports whether the task is inside the given principal's scope:
// admins see every task, other users only tasks they created or are assigned.
func (t *Task) VisibleTo(userID uuid.UUID, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	if t.CreatedByID == userID {
		return true
	}
	return t.AssignedUserID != nil && *t.AssignedUserID == userID
}
