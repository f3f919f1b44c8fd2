package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/logger"
	"github.com/taskvault/taskvault/internal/store"
)

// PostgresAuditLogStore implements the store.AuditLogStore interface
// using a PostgreSQL database as the storage backend.
type PostgresAuditLogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditLogStore creates a new PostgreSQL implementation of the
// AuditLogStore interface.
func NewPostgresAuditLogStore(db store.DBTX, log *slog.Logger) *PostgresAuditLogStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &PostgresAuditLogStore{
		db:     db,
		logger: log.With(slog.String("component", "audit_store")),
	}
}

// Ensure PostgresAuditLogStore implements store.AuditLogStore interface
var _ store.AuditLogStore = (*PostgresAuditLogStore)(nil)

// Append implements store.AuditLogStore.Append
//
// The audit log is append-only; entries are never updated or removed, and
// they reference tasks without a cascading delete so history outlives the
// task's soft deletion.
func (s *PostgresAuditLogStore) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO task_audit_logs (id, task_id, actor_id, change, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.ActorID,
		entry.Change,
		entry.CreatedAt,
	)
	if err != nil {
		log.Error("failed to append audit entry",
			slog.String("error", err.Error()),
			slog.String("task_id", entry.TaskID.String()))
		return classifyError(err)
	}

	return nil
}

// ListByTask implements store.AuditLogStore.ListByTask
func (s *PostgresAuditLogStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, task_id, actor_id, change, created_at
		FROM task_audit_logs
		WHERE task_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		log.Error("failed to query audit entries",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, classifyError(err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	entries := []*domain.AuditLogEntry{}
	for rows.Next() {
		var entry domain.AuditLogEntry
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.ActorID, &entry.Change, &entry.CreatedAt); err != nil {
			log.Error("failed to scan audit entry", slog.String("error", err.Error()))
			return nil, err
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows", slog.String("error", err.Error()))
		return nil, classifyError(err)
	}

	return entries, nil
}
