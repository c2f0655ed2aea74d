package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Cache is the subset of cache.Coordinator the service depends on.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	InvalidateTasks(ctx context.Context, ids ...uuid.UUID)
	ListTTL() time.Duration
}

// JobDispatcher submits jobs after a write has committed.
type JobDispatcher interface {
	Enqueue(ctx context.Context, payload job.Payload, opts ...job.Option) (*job.Envelope, error)
}

// CreateTaskInput is the data needed to create a task.
type CreateTaskInput struct {
	UserID      uuid.UUID           `json:"user_id"     validate:"required"`
	Title       string              `json:"title"       validate:"required,max=255"`
	Description *string             `json:"description"`
	Status      domain.TaskStatus   `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	Priority    domain.TaskPriority `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time          `json:"due_date"`
}

// TaskService provides task operations.
type TaskService struct {
	store    store.TaskStore
	cache    Cache
	jobs     JobDispatcher
	validate *validator.Validate
	logger   *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	tasks store.TaskStore,
	cache Cache,
	jobs JobDispatcher,
	logger *slog.Logger,
) (*TaskService, error) {
	if tasks == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "task store cannot be nil"}
	}
	if cache == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "cache cannot be nil"}
	}
	if jobs == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "job dispatcher cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TaskService{
		store:    tasks,
		cache:    cache,
		jobs:     jobs,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "task_service")),
	}, nil
}

// Create validates in and stores a new task.
func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	task, err := domain.NewTask(in.UserID, in.Title, in.Description, in.Status, in.Priority, in.DueDate)
	if err != nil {
		return nil, err
	}

	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		return tx.Create(ctx, task)
	})
	if err != nil {
		return nil, NewTaskServiceError("create_task", "failed to create task", err)
	}

	s.cache.InvalidateTasks(ctx, task.ID)

	logger.FromContextOrDefault(ctx, s.logger).Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", task.UserID.String()))
	return task, nil
}

// FindAll returns the page of tasks selected by filter.
func (s *TaskService) FindAll(ctx context.Context, filter domain.TaskFilter) (*domain.Page[*domain.Task], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	key := cache.ListKey(filter)
	var cached domain.Page[*domain.Task]
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.cache.Generation()
	n := filter.Normalize()
	tasks, total, err := s.store.List(ctx, n)
	if err != nil {
		return nil, NewTaskServiceError("find_all", "failed to list tasks", err)
	}

	page := domain.NewPage(tasks, total, n.Page, n.Limit)

	// Parameterized lists cannot be addressed by invalidation and rely on the
	// shorter TTL alone.
	var ttl time.Duration
	if key != cache.AllTasksKey {
		ttl = s.cache.ListTTL()
	}
	s.cache.SetIfCurrent(ctx, gen, key, page, ttl)

	return page, nil
}

// FindOne returns the task with the given id.
// Returns ErrTaskNotFound if it does not exist.
func (s *TaskService) FindOne(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	key := cache.TaskKey(id)
	var cached domain.Task
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.cache.Generation()
	task, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("find_one", "failed to get task", err)
	}

	s.cache.SetIfCurrent(ctx, gen, key, task, 0)
	return task, nil
}

// Update applies patch to the task with the given id. When the status
// changes a task-status-update job is enqueued after the commit.
func (s *TaskService) Update(ctx context.Context, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var (
		updated       *domain.Task
		statusChanged bool
	)
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if statusChanged, err = patch.Apply(task); err != nil {
			return err
		}
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, NewTaskServiceError("update_task", "failed to update task", err)
	}

	s.cache.InvalidateTasks(ctx, id)

	if statusChanged {
		s.dispatch(ctx, job.StatusUpdatePayload{TaskID: id, Status: updated.Status})
	}

	return updated, nil
}

// UpdateStatus moves the task with the given id to status. It never enqueues
// a job, so the status-update consumer can call it without a feedback loop.
func (s *TaskService) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidTaskStatus
	}

	var updated *domain.Task
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		task, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		task.Status = status
		if err := tx.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, NewTaskServiceError("update_status", "failed to update task status", err)
	}

	s.cache.InvalidateTasks(ctx, id)
	return updated, nil
}

// Remove deletes the task with the given id.
// Returns ErrTaskNotFound if it does not exist.
func (s *TaskService) Remove(ctx context.Context, id uuid.UUID) error {
	var removed int64
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		var err error
		removed, err = tx.Delete(ctx, id)
		return err
	})
	if err != nil {
		return NewTaskServiceError("remove_task", "failed to delete task", err)
	}
	if removed == 0 {
		return ErrTaskNotFound
	}

	s.cache.InvalidateTasks(ctx, id)
	return nil
}

// BulkUpdateStatus sets status on every listed task and returns how many
// matched. Repeating the call with the same arguments returns the same count.
func (s *TaskService) BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.TaskStatus) (int64, error) {
	if !status.Valid() {
		return 0, domain.ErrInvalidTaskStatus
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		var err error
		affected, err = tx.BulkUpdateStatus(ctx, ids, status)
		return err
	})
	if err != nil {
		return 0, NewTaskServiceError("bulk_update_status", "failed to update task statuses", err)
	}

	s.cache.InvalidateTasks(ctx, ids...)
	return affected, nil
}

// BulkDelete removes every listed task and returns how many were removed.
func (s *TaskService) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int64
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx store.TaskStore) error {
		var err error
		affected, err = tx.BulkDelete(ctx, ids)
		return err
	})
	if err != nil {
		return 0, NewTaskServiceError("bulk_delete", "failed to delete tasks", err)
	}

	s.cache.InvalidateTasks(ctx, ids...)
	return affected, nil
}

// Stats returns aggregate task counts.
func (s *TaskService) Stats(ctx context.Context) (*domain.TaskStats, error) {
	var cached domain.TaskStats
	if s.cache.Get(ctx, cache.StatsKey, &cached) {
		return &cached, nil
	}

	gen := s.cache.Generation()
	stats, err := s.store.CountStats(ctx)
	if err != nil {
		return nil, NewTaskServiceError("stats", "failed to count tasks", err)
	}

	s.cache.SetIfCurrent(ctx, gen, cache.StatsKey, stats, 0)
	return stats, nil
}

// dispatch enqueues payload and logs a failure instead of returning it. The
// write it follows has already committed.
func (s *TaskService) dispatch(ctx context.Context, payload job.Payload) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	env, err := s.jobs.Enqueue(ctx, payload)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, domain.ErrDependencyUnavailable) {
			level = slog.LevelWarn
		}
		log.Log(ctx, level, "failed to enqueue job after commit",
			slog.String("kind", string(payload.Kind())),
			slog.String("error", err.Error()))
		return
	}

	log.Debug("job enqueued after commit",
		slog.String("job_id", env.ID.String()),
		slog.String("kind", string(env.Kind)))
}
