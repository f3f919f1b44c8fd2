package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/taskvault/internal/domain"
	"github.com/taskvault/taskvault/internal/platform/redisq"
	"github.com/taskvault/taskvault/internal/service"
	"github.com/taskvault/taskvault/internal/store"
)

// memTaskStore is an in-memory store.TaskStore for handler tests.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: map[uuid.UUID]*domain.Task{}}
}

func (m *memTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.ID]; exists {
		return nil
	}
	clone := *task
	m.tasks[task.ID] = &clone
	return nil
}

func (m *memTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.DeletedAt != nil {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (m *memTaskStore) GetByLoggerID(ctx context.Context, loggerID uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, task := range m.tasks {
		if task.LoggerID == loggerID && task.DeletedAt == nil {
			clone := *task
			return &clone, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

func (m *memTaskStore) List(ctx context.Context, filter store.TaskFilter, page, perPage int) (*store.TaskPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matches := []*domain.Task{}
	for _, task := range m.tasks {
		if task.DeletedAt != nil {
			continue
		}
		if filter.VisibleToID != uuid.Nil && !task.VisibleTo(filter.VisibleToID, false) {
			continue
		}
		if filter.Date != nil {
			day := filter.Date.UTC().Truncate(24 * time.Hour)
			if task.CreatedAt.Before(day) || !task.CreatedAt.Before(day.Add(24*time.Hour)) {
				continue
			}
		}
		clone := *task
		matches = append(matches, &clone)
	}

	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID.String() > matches[j].ID.String()
	})

	total := len(matches)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return &store.TaskPage{Items: matches[start:end], Total: total}, nil
}

func (m *memTaskStore) Update(ctx context.Context, id uuid.UUID, update store.TaskUpdate) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.DeletedAt != nil {
		return nil, store.ErrTaskNotFound
	}
	if update.Name != nil {
		task.Name = *update.Name
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Done != nil {
		task.Done = *update.Done
	}
	if update.Priority != nil {
		task.Priority = *update.Priority
	}
	if update.AssignedUserID != nil {
		task.AssignedUserID = update.AssignedUserID
	}
	task.UpdatedAt = time.Now().UTC()
	clone := *task
	return &clone, nil
}

func (m *memTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok || task.DeletedAt != nil {
		return store.ErrTaskNotFound
	}
	now := time.Now().UTC()
	task.DeletedAt = &now
	return nil
}

// memAuditStore is an in-memory store.AuditLogStore.
type memAuditStore struct {
	mu      sync.Mutex
	entries []*domain.AuditLogEntry
}

func (m *memAuditStore) Append(ctx context.Context, entry *domain.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditStore) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AuditLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].TaskID == taskID {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// nopCache always misses.
type nopCache struct{}

func (nopCache) GetPage(ctx context.Context, key string) ([]byte, error) { return nil, redisq.ErrCacheMiss }
func (nopCache) SetPage(ctx context.Context, key string, data []byte)    {}
func (nopCache) InvalidatePages(ctx context.Context) error               { return nil }

func newTaskHandler(t *testing.T) *TaskHandler {
	t.Helper()
	svc := service.NewTaskService(newMemTaskStore(), &memAuditStore{}, nopCache{}, nil)
	return NewTaskHandler(svc)
}

func createTask(t *testing.T, handler *TaskHandler, principal service.Principal, req CreateTaskRequest) TaskResponse {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.Create(rec, withPrincipal(jsonRequest(t, http.MethodPost, "/api/task", req), principal))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[TaskResponse](t, rec)
}

func memberPrincipal() service.Principal {
	return service.Principal{UserID: uuid.New(), Roles: []string{domain.RoleUser}}
}

func adminPrincipal() service.Principal {
	return service.Principal{UserID: uuid.New(), Roles: []string{domain.RoleUser, domain.RoleAdmin}}
}

func TestTaskCreateEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("success with defaults", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)
		caller := memberPrincipal()

		task := createTask(t, handler, caller, CreateTaskRequest{Name: "write the report"})
		assert.Equal(t, "write the report", task.Name)
		assert.Equal(t, "MEDIUM", task.Priority)
		assert.False(t, task.Done)
		assert.Equal(t, caller.UserID, task.CreatedByID)
		require.NotNil(t, task.AssignedUserID)
		assert.Equal(t, caller.UserID, *task.AssignedUserID)
		assert.NotEqual(t, uuid.Nil, task.LoggerID)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)

		rec := httptest.NewRecorder()
		handler.Create(rec, withPrincipal(jsonRequest(t, http.MethodPost, "/api/task", CreateTaskRequest{
			Name: "x", Priority: "URGENT",
		}), memberPrincipal()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)

		rec := httptest.NewRecorder()
		handler.Create(rec, withPrincipal(jsonRequest(t, http.MethodPost, "/api/task", CreateTaskRequest{}), memberPrincipal()))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)

		rec := httptest.NewRecorder()
		handler.Create(rec, jsonRequest(t, http.MethodPost, "/api/task", CreateTaskRequest{Name: "x"}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTaskListEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("pagination and scoping", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)
		alice := memberPrincipal()
		bob := memberPrincipal()

		for i := 0; i < 3; i++ {
			createTask(t, handler, alice, CreateTaskRequest{Name: "alice task"})
		}
		createTask(t, handler, bob, CreateTaskRequest{Name: "bob task"})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/tasks?page=1&per_page=2", nil)
		handler.List(rec, withPrincipal(req, alice))
		require.Equal(t, http.StatusOK, rec.Code)

		page := decodeBody[TaskListResponse](t, rec)
		assert.Equal(t, 3, page.Total)
		assert.Equal(t, 2, page.Pages)
		assert.Len(t, page.Items, 2)

		// Admin sees everything.
		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
		handler.List(rec, withPrincipal(req, adminPrincipal()))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 4, decodeBody[TaskListResponse](t, rec).Total)
	})

	t.Run("invalid query parameters", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)

		for _, target := range []string{
			"/api/tasks?page=abc",
			"/api/tasks?page=0",
			"/api/tasks?per_page=1000",
			"/api/tasks?date=15-06-2025",
		} {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, target, nil)
			handler.List(rec, withPrincipal(req, memberPrincipal()))
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		}
	})

	t.Run("date filter", func(t *testing.T) {
		t.Parallel()
		handler := newTaskHandler(t)
		caller := memberPrincipal()
		createTask(t, handler, caller, CreateTaskRequest{Name: "today"})

		today := time.Now().UTC().Format("2006-01-02")
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/tasks?date="+today, nil)
		handler.List(rec, withPrincipal(req, caller))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decodeBody[TaskListResponse](t, rec).Total)

		rec = httptest.NewRecorder()
		req = httptest.NewRequest(http.MethodGet, "/api/tasks?date=1999-01-01", nil)
		handler.List(rec, withPrincipal(req, caller))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, decodeBody[TaskListResponse](t, rec).Total)
	})
}

func TestTaskGetEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTaskHandler(t)
	owner := memberPrincipal()
	task := createTask(t, handler, owner, CreateTaskRequest{Name: "mine"})

	get := func(principal service.Principal, loggerID string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/task/"+loggerID, nil)
		req = withURLParam(req, "task_logger_id", loggerID)
		handler.Get(rec, withPrincipal(req, principal))
		return rec
	}

	t.Run("owner reads by logger id", func(t *testing.T) {
		rec := get(owner, task.LoggerID.String())
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, task.ID, decodeBody[TaskResponse](t, rec).ID)
	})

	t.Run("stranger gets 404", func(t *testing.T) {
		rec := get(memberPrincipal(), task.LoggerID.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown id gets 404", func(t *testing.T) {
		rec := get(owner, uuid.NewString())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id gets 400", func(t *testing.T) {
		rec := get(owner, "not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskUpdateEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTaskHandler(t)
	owner := memberPrincipal()
	task := createTask(t, handler, owner, CreateTaskRequest{Name: "draft", Priority: "LOW"})

	update := func(principal service.Principal, taskID string, body UpdateTaskRequest) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := jsonRequest(t, http.MethodPut, "/api/task/"+taskID, body)
		req = withURLParam(req, "task_id", taskID)
		handler.Update(rec, withPrincipal(req, principal))
		return rec
	}

	t.Run("partial update", func(t *testing.T) {
		name := "final"
		rec := update(owner, task.ID.String(), UpdateTaskRequest{Name: &name})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		updated := decodeBody[TaskResponse](t, rec)
		assert.Equal(t, "final", updated.Name)
		assert.Equal(t, "LOW", updated.Priority)
	})

	t.Run("stranger gets 403", func(t *testing.T) {
		name := "hijack"
		rec := update(memberPrincipal(), task.ID.String(), UpdateTaskRequest{Name: &name})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown task gets 404", func(t *testing.T) {
		name := "nowhere"
		rec := update(owner, uuid.NewString(), UpdateTaskRequest{Name: &name})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid priority gets 400", func(t *testing.T) {
		bad := "URGENT"
		rec := update(owner, task.ID.String(), UpdateTaskRequest{Priority: &bad})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskDeleteEndpoint(t *testing.T) {
	t.Parallel()

	handler := newTaskHandler(t)
	owner := memberPrincipal()
	task := createTask(t, handler, owner, CreateTaskRequest{Name: "doomed"})

	del := func(principal service.Principal, taskID string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodDelete, "/api/task/"+taskID, nil)
		req = withURLParam(req, "task_id", taskID)
		handler.Delete(rec, withPrincipal(req, principal))
		return rec
	}

	t.Run("stranger gets 403", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, del(memberPrincipal(), task.ID.String()).Code)
	})

	t.Run("owner deletes, then reads 404", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, del(owner, task.ID.String()).Code)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/task/"+task.LoggerID.String(), nil)
		req = withURLParam(req, "task_logger_id", task.LoggerID.String())
		handler.Get(rec, withPrincipal(req, owner))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		// Double delete is a 404, not a 500.
		assert.Equal(t, http.StatusNotFound, del(owner, task.ID.String()).Code)
	})
}
