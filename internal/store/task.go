package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
)

// TaskFilter describes the scope and filters of a task list query.
type TaskFilter struct {
	// Date restricts results to tasks created on the given calendar day
	// (UTC). Nil means no date filter.
	Date *time.Time

	// VisibleToID restricts results to tasks created by or assigned to the
	// given user. uuid.Nil means no scoping (admin view).
	VisibleToID uuid.UUID
}

// TaskPage is a single page of a task list query, ordered by creation time
// descending with the internal ID as a stable tiebreak.
type TaskPage struct {
	Items []*domain.Task `json:"items"`
	Total int            `json:"total"`
}

// TaskUpdate carries a partial task update; nil fields are left unchanged.
type TaskUpdate struct {
	Name           *string
	Description    *string
	Done           *bool
	Priority       *domain.Priority
	AssignedUserID *uuid.UUID
}

// TaskStore defines persistence operations for tasks. All reads exclude
// soft-deleted tasks.
type TaskStore interface {
	// Create persists a new task. When the task's IDs were supplied by the
	// caller (deterministic import IDs) an existing row with the same ID is
	// left untouched and no error is returned, making creation idempotent.
	// Returns ErrInvalidEntity if the assigned user does not exist.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its internal primary key.
	// Returns ErrTaskNotFound if absent or soft-deleted.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetByLoggerID retrieves a task by its externally exposed logger ID.
	// Returns ErrTaskNotFound if absent or soft-deleted.
	GetByLoggerID(ctx context.Context, loggerID uuid.UUID) (*domain.Task, error)

	// List returns one page of tasks matching the filter plus the total
	// match count. page is 1-based; perPage must already be validated.
	List(ctx context.Context, filter TaskFilter, page, perPage int) (*TaskPage, error)

	// Update applies a partial update. Returns ErrTaskNotFound if the task
	// is absent or soft-deleted, ErrInvalidEntity if a new assignee does
	// not exist. Last writer wins.
	Update(ctx context.Context, id uuid.UUID, update TaskUpdate) (*domain.Task, error)

	// Delete soft-deletes the task. Audit history is preserved.
	// Returns ErrTaskNotFound if absent or already deleted.
	Delete(ctx context.Context, id uuid.UUID) error
}

// AuditLogStore defines persistence operations for the append-only task
// audit log.
type AuditLogStore interface {
	// Append inserts a new audit entry.
	Append(ctx context.Context, entry *domain.AuditLogEntry) error

	// ListByTask returns all audit entries for a task, newest first.
	// Entries persist after the task is deleted.
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error)
}
