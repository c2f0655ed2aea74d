package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/platform/logger"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// PostgresJobStore implements the job.Store interface using PostgreSQL.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var _ job.Store = (*PostgresJobStore)(nil)

// SaveJob persists a job to the database with pending status.
func (s *PostgresJobStore) SaveJob(ctx context.Context, env *job.Envelope) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO jobs (id, kind, payload, max_attempts, backoff_base_ms, backoff_max_ms,
			attempt, status, enqueued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		env.ID,
		env.Kind,
		[]byte(env.Payload),
		env.Policy.MaxAttempts,
		env.Policy.BackoffBase.Milliseconds(),
		env.Policy.BackoffMax.Milliseconds(),
		env.Attempt,
		job.StatusPending,
		env.EnqueuedAt,
		s.now(),
	)
	if err != nil {
		log.Error("failed to save job",
			slog.String("job_id", env.ID.String()),
			slog.String("kind", string(env.Kind)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save job to database: %w", MapError(err))
	}

	return nil
}

// UpdateJobStatus updates the status, attempt count and last error of a job.
// Returns store.ErrJobNotFound if no job has the given ID.
func (s *PostgresJobStore) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status job.Status,
	attempt int,
	errMsg string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET status = $1, attempt = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		attempt,
		sql.NullString{String: errMsg, Valid: errMsg != ""},
		s.now(),
		id,
	)
	if err != nil {
		log.Error("failed to update job status",
			slog.String("job_id", id.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update job status: %w", MapError(err))
	}

	return checkRowsAffected(result, store.ErrJobNotFound)
}

// GetJobs retrieves jobs with the given status, oldest first. A non-zero
// olderThan restricts the result to jobs whose status is at least that old.
func (s *PostgresJobStore) GetJobs(ctx context.Context, status job.Status, olderThan time.Duration) ([]*job.Envelope, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, kind, payload, max_attempts, backoff_base_ms, backoff_max_ms, attempt, enqueued_at
		FROM jobs
		WHERE status = $1
	`
	args := []any{status}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, s.now().Add(-olderThan))
	}
	query += ` ORDER BY enqueued_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query jobs by status: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*job.Envelope
	for rows.Next() {
		var (
			env      job.Envelope
			kind     string
			payload  []byte
			baseMs   int64
			maxMs    int64
			enqueued time.Time
		)
		if err := rows.Scan(&env.ID, &kind, &payload, &env.Policy.MaxAttempts,
			&baseMs, &maxMs, &env.Attempt, &enqueued); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}

		env.Kind = job.Kind(kind)
		env.Payload = payload
		env.Policy.BackoffBase = time.Duration(baseMs) * time.Millisecond
		env.Policy.BackoffMax = time.Duration(maxMs) * time.Millisecond
		env.EnqueuedAt = enqueued.UTC()
		jobs = append(jobs, &env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}
