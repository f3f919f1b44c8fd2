package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogEntry records a single task mutation. Entries are append-only and
// outlive the tasks they describe, so deleted tasks remain reconstructable.
type AuditLogEntry struct {
	ID        uuid.UUID `json:"id"`
	TaskID    uuid.UUID `json:"task_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Change    string    `json:"change"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAuditLogEntry creates an audit entry for the given task and actor.
func NewAuditLogEntry(taskID, actorID uuid.UUID, change string) *AuditLogEntry {
	return &AuditLogEntry{
		ID:        uuid.New(),
		TaskID:    taskID,
		ActorID:   actorID,
		Change:    change,
		CreatedAt: time.Now().UTC(),
	}
}
