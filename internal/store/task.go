package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// TaskStore defines the interface for task persistence.
// Filtering, search, sorting and pagination are pushed down to the implementation.
type TaskStore interface {
	// Create saves a new task. The task must already be valid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List returns the page of tasks selected by filter along with the total
	// number of tasks matching the filter before pagination.
	List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error)

	// Update replaces the mutable fields of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task and reports how many rows were removed (0 or 1).
	Delete(ctx context.Context, id uuid.UUID) (int64, error)

	// BulkUpdateStatus sets status on every listed task and returns the number
	// of matched tasks. Unknown IDs are ignored.
	BulkUpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.TaskStatus) (int64, error)

	// BulkDelete removes every listed task and returns the number removed.
	BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error)

	// CountStats aggregates task counts by status and priority.
	CountStats(ctx context.Context) (*domain.TaskStats, error)

	// FindOverdueIDs returns the IDs of PENDING tasks whose due date is before now.
	FindOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error)

	// RunInTransaction runs fn against a transaction-scoped TaskStore.
	// The transaction commits iff fn returns nil and rolls back on error or panic.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx TaskStore) error) error
}
