package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

const taskColumns = `id, title, description, status, priority, due_date, user_id, created_at`

// sortExpressions maps each allowed sort field to its ORDER BY expression.
// Enumerations sort by rank rather than alphabetically.
var sortExpressions = map[domain.SortField]string{
	domain.SortByTitle:     "title",
	domain.SortByCreatedAt: "created_at",
	domain.SortByDueDate:   "due_date",
	domain.SortByPriority:  "CASE priority WHEN 'LOW' THEN 1 WHEN 'MEDIUM' THEN 2 WHEN 'HIGH' THEN 3 END",
	domain.SortByStatus:    "CASE status WHEN 'PENDING' THEN 1 WHEN 'IN_PROGRESS' THEN 2 WHEN 'COMPLETED' THEN 3 END",
}

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	sqlDB  *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sql.DB, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		sqlDB:  db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a store bound to tx. Transactions started from the returned
// store join tx instead of opening a new one.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) *PostgresTaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// RunInTransaction implements store.TaskStore.RunInTransaction.
func (s *PostgresTaskStore) RunInTransaction(
	ctx context.Context,
	fn func(ctx context.Context, tx store.TaskStore) error,
) error {
	if s.sqlDB == nil {
		return fn(ctx, s)
	}
	return store.RunInTransaction(ctx, s.sqlDB, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, s.WithTx(tx))
	})
}

// Create implements store.TaskStore.Create.
// Returns validation errors from the domain Task if data is invalid.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		nullString(task.Description),
		task.Status,
		task.Priority,
		nullTime(task.DueDate),
		task.UserID,
		task.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	log.Debug("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("status", string(task.Status)))
	return nil
}

// GetByID implements store.TaskStore.GetByID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by ID",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}

	return task, nil
}

// List implements store.TaskStore.List.
func (s *PostgresTaskStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	f := filter.Normalize()

	where, args := buildWhere(f)

	var total int
	countQuery := `SELECT COUNT(*) FROM tasks` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		log.Error("failed to count tasks", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY %s %s NULLS LAST, id ASC LIMIT $%d OFFSET $%d`,
		taskColumns, where, sortExpressions[f.SortBy], f.SortOrder, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset())

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.Task, 0, f.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row", slog.String("error", err.Error()))
			return nil, 0, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows", slog.String("error", err.Error()))
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update implements store.TaskStore.Update.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, due_date = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		task.Title,
		nullString(task.Description),
		task.Status,
		task.Priority,
		nullTime(task.DueDate),
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	return checkRowsAffected(result, store.ErrTaskNotFound)
}

// Delete implements store.TaskStore.Delete.
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return 0, MapError(err)
	}
	return rowsAffected(result)
}

// BulkUpdateStatus implements store.TaskStore.BulkUpdateStatus.
// Postgres counts every matched row, so repeating the call reports the same number.
func (s *PostgresTaskStore) BulkUpdateStatus(
	ctx context.Context,
	ids []uuid.UUID,
	status domain.TaskStatus,
) (int64, error) {
	if !status.Valid() {
		return 0, domain.ErrInvalidTaskStatus
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1 WHERE id = ANY($2::uuid[])`,
		status, uuidStrings(ids))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to bulk update task status",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return 0, MapError(err)
	}
	return rowsAffected(result)
}

// BulkDelete implements store.TaskStore.BulkDelete.
func (s *PostgresTaskStore) BulkDelete(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to bulk delete tasks",
			slog.String("error", err.Error()),
			slog.Int("count", len(ids)))
		return 0, MapError(err)
	}
	return rowsAffected(result)
}

// CountStats implements store.TaskStore.CountStats.
func (s *PostgresTaskStore) CountStats(ctx context.Context) (*domain.TaskStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'IN_PROGRESS'),
			COUNT(*) FILTER (WHERE status = 'PENDING'),
			COUNT(*) FILTER (WHERE priority = 'HIGH')
		FROM tasks
	`

	var stats domain.TaskStats
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.InProgress,
		&stats.Pending,
		&stats.HighPriority,
	)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to count task stats",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &stats, nil
}

// FindOverdueIDs implements store.TaskStore.FindOverdueIDs.
func (s *PostgresTaskStore) FindOverdueIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE status = $1 AND due_date < $2 ORDER BY due_date ASC`,
		domain.TaskStatusPending, now.UTC())
	if err != nil {
		log.Error("failed to query overdue tasks", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan overdue task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating overdue task rows: %w", err)
	}

	return ids, nil
}

// buildWhere renders the filter's predicates and their positional arguments.
func buildWhere(f domain.TaskFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		args = append(args, f.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		clauses = append(clauses, fmt.Sprintf("priority = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task        domain.Task
		description sql.NullString
		dueDate     sql.NullTime
		status      string
		priority    string
	)

	err := row.Scan(
		&task.ID,
		&task.Title,
		&description,
		&status,
		&priority,
		&dueDate,
		&task.UserID,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	if description.Valid {
		task.Description = &description.String
	}
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		task.DueDate = &d
	}
	task.CreatedAt = task.CreatedAt.UTC()

	return &task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
