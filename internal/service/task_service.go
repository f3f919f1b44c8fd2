package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/logger"
	"github.com/taskvault/taskvault/internal/platform/redisq"
	"github.com/taskvault/taskvault/internal/store"
)

// Pagination bounds for task list queries.
const (
	MaxPerPage     = 100
	DefaultPerPage = 20
)

// Principal is the authenticated caller of a service operation, as extracted
// from its access token.
type Principal struct {
	UserID uuid.UUID
	Roles  []string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	for _, r := range p.Roles {
		if r == domain.RoleAdmin {
			return true
		}
	}
	return false
}

// CreateTaskInput carries the caller-supplied fields of a new task.
type CreateTaskInput struct {
	Name           string
	Description    string
	Done           bool
	Priority       domain.Priority
	AssignedUserID *uuid.UUID
}

// UpdateTaskInput carries a partial task update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Name           *string
	Description    *string
	Done           *bool
	Priority       *domain.Priority
	AssignedUserID *uuid.UUID
}

// ListTasksInput carries the parameters of a task list query.
type ListTasksInput struct {
	Page    int
	PerPage int
	Date    *time.Time
}

// TaskListResult is one page of a task list plus pagination metadata.
type TaskListResult struct {
	Items   []*domain.Task `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
}

// cachedTask is the cache serialization of a task. domain.Task hides the
// internal ID (and DeletedAt) from API JSON, but a cached page must
// round-trip every field so a cache hit returns exactly what a cold read
// would.
type cachedTask struct {
	ID             uuid.UUID       `json:"id"`
	LoggerID       uuid.UUID       `json:"logger_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Done           bool            `json:"done"`
	Priority       domain.Priority `json:"priority"`
	AssignedUserID *uuid.UUID      `json:"assigned_user_id,omitempty"`
	CreatedByID    uuid.UUID       `json:"created_by_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// cachedPage is the cache serialization of a TaskListResult.
type cachedPage struct {
	Items   []cachedTask `json:"items"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Pages   int          `json:"pages"`
}

func toCachedPage(result *TaskListResult) cachedPage {
	page := cachedPage{
		Items:   make([]cachedTask, 0, len(result.Items)),
		Total:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
		Pages:   result.Pages,
	}
	for _, task := range result.Items {
		page.Items = append(page.Items, cachedTask{
			ID:             task.ID,
			LoggerID:       task.LoggerID,
			Name:           task.Name,
			Description:    task.Description,
			Done:           task.Done,
			Priority:       task.Priority,
			AssignedUserID: task.AssignedUserID,
			CreatedByID:    task.CreatedByID,
			CreatedAt:      task.CreatedAt,
			UpdatedAt:      task.UpdatedAt,
		})
	}
	return page
}

func (p cachedPage) toResult() *TaskListResult {
	result := &TaskListResult{
		Items:   make([]*domain.Task, 0, len(p.Items)),
		Total:   p.Total,
		Page:    p.Page,
		PerPage: p.PerPage,
		Pages:   p.Pages,
	}
	for _, item := range p.Items {
		result.Items = append(result.Items, &domain.Task{
			ID:             item.ID,
			LoggerID:       item.LoggerID,
			Name:           item.Name,
			Description:    item.Description,
			Done:           item.Done,
			Priority:       item.Priority,
			AssignedUserID: item.AssignedUserID,
			CreatedByID:    item.CreatedByID,
			CreatedAt:      item.CreatedAt,
			UpdatedAt:      item.UpdatedAt,
		})
	}
	return result
}

// PageCache is the slice of the cache layer the task service needs.
// Implemented by redisq.TaskCache.
type PageCache interface {
	GetPage(ctx context.Context, key string) ([]byte, error)
	SetPage(ctx context.Context, key string, data []byte)
	InvalidatePages(ctx context.Context) error
}

// TaskService implements task CRUD on top of the stores, enforcing the
// authorization policy (admins act on any task, members only on tasks they
// created or are assigned to), keeping the list cache coherent, and recording
// every mutation in the audit log.
type TaskService struct {
	tasks  store.TaskStore
	audit  store.AuditLogStore
	cache  PageCache
	logger *slog.Logger
}

// NewTaskService creates a task service over the given stores and cache.
func NewTaskService(tasks store.TaskStore, audit store.AuditLogStore, cache PageCache, log *slog.Logger) *TaskService {
	if tasks == nil || audit == nil || cache == nil {
		panic("task service dependencies cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &TaskService{
		tasks:  tasks,
		audit:  audit,
		cache:  cache,
		logger: log.With(slog.String("component", "task_service")),
	}
}

// Create validates and persists a new task on behalf of the principal.
// The creator becomes the assignee unless one was supplied.
func (s *TaskService) Create(ctx context.Context, principal Principal, input CreateTaskInput) (*domain.Task, error) {
	assignee := input.AssignedUserID
	if assignee == nil {
		creator := principal.UserID
		assignee = &creator
	}

	task, err := domain.NewTask(input.Name, input.Description, input.Priority, principal.UserID, assignee)
	if err != nil {
		return nil, err
	}
	task.Done = input.Done

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, task.ID, principal.UserID, "created")
	s.invalidate(ctx)

	return task, nil
}

// List returns one page of tasks visible to the principal, serving exact-key
// cache hits and filling the cache on misses.
func (s *TaskService) List(ctx context.Context, principal Principal, input ListTasksInput) (*TaskListResult, error) {
	if input.Page < 1 {
		return nil, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if input.PerPage < 1 || input.PerPage > MaxPerPage {
		return nil, fmt.Errorf("%w: per_page must be between 1 and %d", domain.ErrValidation, MaxPerPage)
	}

	log := logger.FromContextOrDefault(ctx, s.logger)

	key := redisq.PageKey(principal.UserID, input.Date, input.Page, input.PerPage)
	if data, err := s.cache.GetPage(ctx, key); err == nil {
		var page cachedPage
		if err := json.Unmarshal(data, &page); err == nil {
			log.Debug("task list served from cache", slog.String("key", key))
			return page.toResult(), nil
		}
		log.Warn("discarding undecodable cached page", slog.String("key", key))
	}

	filter := store.TaskFilter{Date: input.Date}
	if !principal.IsAdmin() {
		filter.VisibleToID = principal.UserID
	}

	page, err := s.tasks.List(ctx, filter, input.Page, input.PerPage)
	if err != nil {
		return nil, err
	}

	result := &TaskListResult{
		Items:   page.Items,
		Total:   page.Total,
		Page:    input.Page,
		PerPage: input.PerPage,
		Pages:   (page.Total + input.PerPage - 1) / input.PerPage,
	}

	if data, err := json.Marshal(toCachedPage(result)); err == nil {
		s.cache.SetPage(ctx, key, data)
	}

	return result, nil
}

// Get returns the task with the given logger ID. Tasks outside the
// principal's visibility scope are reported as not found, the same answer an
// unknown ID gets.
func (s *TaskService) Get(ctx context.Context, principal Principal, loggerID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByLoggerID(ctx, loggerID)
	if err != nil {
		return nil, err
	}
	if !task.VisibleTo(principal.UserID, principal.IsAdmin()) {
		return nil, store.ErrTaskNotFound
	}
	return task, nil
}

// Update applies a partial update to the task and records the field-level
// diff in the audit log. Returns ErrForbidden when the task exists but the
// principal may not act on it.
func (s *TaskService) Update(ctx context.Context, principal Principal, taskID uuid.UUID, input UpdateTaskInput) (*domain.Task, error) {
	current, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if !current.VisibleTo(principal.UserID, principal.IsAdmin()) {
		return nil, ErrForbidden
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, domain.ErrEmptyTaskName
	}
	if input.Priority != nil && !domain.ValidPriority(*input.Priority) {
		return nil, domain.ErrInvalidPriority
	}

	updated, err := s.tasks.Update(ctx, taskID, store.TaskUpdate{
		Name:           input.Name,
		Description:    input.Description,
		Done:           input.Done,
		Priority:       input.Priority,
		AssignedUserID: input.AssignedUserID,
	})
	if err != nil {
		return nil, err
	}

	change := diffTasks(current, updated)
	if change == "" {
		change = "updated (no changes)"
	}
	s.appendAudit(ctx, taskID, principal.UserID, change)
	s.invalidate(ctx)

	return updated, nil
}

// Delete soft-deletes the task, recording the deletion in the audit log
// first so the entry is present even if the caller observes the delete.
func (s *TaskService) Delete(ctx context.Context, principal Principal, taskID uuid.UUID) error {
	current, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if !current.VisibleTo(principal.UserID, principal.IsAdmin()) {
		return ErrForbidden
	}

	s.appendAudit(ctx, taskID, principal.UserID, "deleted")

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return err
	}

	s.invalidate(ctx)
	return nil
}

// AuditTrail returns the audit entries of a task, newest first. Entries
// survive the task's deletion, so this works for deleted tasks too, which is
// why it takes the internal ID rather than resolving the logger ID.
func (s *TaskService) AuditTrail(ctx context.Context, principal Principal, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.audit.ListByTask(ctx, taskID)
}

// appendAudit records a mutation. Audit failures are logged, not propagated:
// the mutation itself already committed.
func (s *TaskService) appendAudit(ctx context.Context, taskID, actorID uuid.UUID, change string) {
	entry := domain.NewAuditLogEntry(taskID, actorID, change)
	if err := s.audit.Append(ctx, entry); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to append audit entry",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *TaskService) invalidate(ctx context.Context) {
	if err := s.cache.InvalidatePages(ctx); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("cache invalidation failed",
			slog.String("error", err.Error()))
	}
}

// diffTasks renders the field-level changes between two task states.
func diffTasks(before, after *domain.Task) string {
	var changes []string

	if before.Name != after.Name {
		changes = append(changes, fmt.Sprintf("name: %q -> %q", before.Name, after.Name))
	}
	if before.Description != after.Description {
		changes = append(changes, fmt.Sprintf("description: %q -> %q", before.Description, after.Description))
	}
	if before.Done != after.Done {
		changes = append(changes, fmt.Sprintf("status: %t -> %t", before.Done, after.Done))
	}
	if before.Priority != after.Priority {
		changes = append(changes, fmt.Sprintf("priority: %s -> %s", before.Priority, after.Priority))
	}
	if !equalUUIDPtr(before.AssignedUserID, after.AssignedUserID) {
		changes = append(changes, fmt.Sprintf("assigned_user: %s -> %s",
			uuidPtrString(before.AssignedUserID), uuidPtrString(after.AssignedUserID)))
	}

	return strings.Join(changes, "; ")
}

func equalUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uuidPtrString(id *uuid.UUID) string {
	if id == nil {
		return "none"
	}
	return id.String()
}
