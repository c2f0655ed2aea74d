// Package processor holds the job handlers that react to task events.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/service"
)

// Tasks is the subset of service.TaskService the handlers use.
type Tasks interface {
	FindOne(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (*domain.Task, error)
}

// Notifier delivers overdue notifications.
type Notifier interface {
	NotifyOverdue(ctx context.Context, task *domain.Task) error
}

// LogNotifier writes overdue notifications to the log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

// NotifyOverdue implements Notifier.
func (n *LogNotifier) NotifyOverdue(ctx context.Context, task *domain.Task) error {
	attrs := []any{
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", task.UserID.String()),
		slog.String("title", task.Title),
	}
	if task.DueDate != nil {
		attrs = append(attrs, slog.Time("due_date", *task.DueDate))
	}
	logger.FromContextOrDefault(ctx, n.logger).Info("task is overdue", attrs...)
	return nil
}

// TaskProcessor handles task-status-update and overdue-tasks-notification jobs.
type TaskProcessor struct {
	tasks    Tasks
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a TaskProcessor.
func New(tasks Tasks, notifier Notifier, logger *slog.Logger) *TaskProcessor {
	if tasks == nil || notifier == nil {
		panic("processor: tasks and notifier are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskProcessor{
		tasks:    tasks,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "task_processor")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register routes both task job kinds on c to p.
func (p *TaskProcessor) Register(c *job.Consumer) {
	c.Register(job.KindTaskStatusUpdate, job.HandlerFunc(p.HandleStatusUpdate))
	c.Register(job.KindOverdueNotification, job.HandlerFunc(p.HandleOverdueNotification))
}

// HandleStatusUpdate applies the status carried by the job. It goes through
// TaskService.UpdateStatus, which invalidates the cache and never enqueues.
// Unrecognized statuses never reach it: job.Decode rejects them permanently.
func (p *TaskProcessor) HandleStatusUpdate(ctx context.Context, payload job.Payload, attempt int) (job.Result, error) {
	pl, ok := payload.(job.StatusUpdatePayload)
	if !ok {
		return job.Result{}, job.Permanent(fmt.Errorf("%w: got %T", job.ErrInvalidPayload, payload))
	}

	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("task_id", pl.TaskID.String()),
		slog.Int("attempt", attempt))

	if _, err := p.tasks.UpdateStatus(ctx, pl.TaskID, pl.Status); err != nil {
		if errors.Is(err, service.ErrTaskNotFound) || errors.Is(err, domain.ErrValidation) {
			return job.Result{}, job.Permanent(err)
		}
		return job.Result{}, fmt.Errorf("failed to update task status: %w", err)
	}

	log.Info("task status updated", slog.String("status", string(pl.Status)))
	return job.Result{Success: true}, nil
}

// HandleOverdueNotification re-reads the task and notifies its owner. A task
// that was deleted after the scan fails permanently; one that is no longer
// overdue is skipped.
func (p *TaskProcessor) HandleOverdueNotification(ctx context.Context, payload job.Payload, attempt int) (job.Result, error) {
	pl, ok := payload.(job.OverdueNotificationPayload)
	if !ok {
		return job.Result{}, job.Permanent(fmt.Errorf("%w: got %T", job.ErrInvalidPayload, payload))
	}

	log := logger.FromContextOrDefault(ctx, p.logger).With(
		slog.String("task_id", pl.TaskID.String()),
		slog.Int("attempt", attempt))

	task, err := p.tasks.FindOne(ctx, pl.TaskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return job.Result{}, job.Permanent(err)
		}
		return job.Result{}, fmt.Errorf("failed to load task: %w", err)
	}

	if !task.IsOverdue(p.now()) {
		log.Debug("task no longer overdue, skipping notification",
			slog.String("status", string(task.Status)))
		return job.Result{Success: true, Message: "task no longer overdue"}, nil
	}

	if err := p.notifier.NotifyOverdue(ctx, task); err != nil {
		return job.Result{}, fmt.Errorf("failed to send overdue notification: %w", err)
	}

	return job.Result{Success: true}, nil
}
