package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
)

func newPgError(code string) *pgconn.PgError {
	return &pgconn.PgError{
		Code:           code,
		Message:        "error message",
		TableName:      "tasks",
		ColumnName:     "title",
		ConstraintName: "tasks_status_check",
	}
}

type mockResult struct {
	rowsAffected int64
	err          error
}

func (m mockResult) LastInsertId() (int64, error) { return 0, m.err }
func (m mockResult) RowsAffected() (int64, error) { return m.rowsAffected, m.err }

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected error
		contains string
	}{
		{name: "nil error", err: nil, expected: nil},
		{name: "no rows", err: sql.ErrNoRows, expected: store.ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("query: %w", sql.ErrNoRows), expected: store.ErrNotFound},
		{name: "unique violation", err: newPgError(uniqueViolationCode), expected: store.ErrDuplicate},
		{
			name:     "foreign key violation",
			err:      newPgError(foreignKeyViolationCode),
			expected: store.ErrInvalidEntity,
			contains: "tasks_status_check",
		},
		{
			name:     "check violation",
			err:      newPgError(checkViolationCode),
			expected: store.ErrInvalidEntity,
			contains: "check constraint violation",
		},
		{
			name:     "not null violation",
			err:      newPgError(notNullViolationCode),
			expected: store.ErrInvalidEntity,
			contains: "title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if tt.expected == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.expected)
			assert.ErrorIs(t, got, tt.err, "original error should stay reachable")
			if tt.contains != "" {
				assert.Contains(t, got.Error(), tt.contains)
			}
		})
	}

	t.Run("unmapped errors pass through", func(t *testing.T) {
		generic := errors.New("connection reset")
		assert.Same(t, generic, MapError(generic))

		other := newPgError("40001")
		assert.Equal(t, error(other), MapError(other))
	})
}

func TestViolationPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsUniqueViolation(newPgError(uniqueViolationCode)))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", newPgError(uniqueViolationCode))))
	assert.False(t, IsUniqueViolation(newPgError(checkViolationCode)))
	assert.False(t, IsUniqueViolation(nil))

	assert.True(t, IsCheckConstraintViolation(newPgError(checkViolationCode)))
	assert.False(t, IsCheckConstraintViolation(errors.New("check failed")))
}

func TestCheckRowsAffected(t *testing.T) {
	t.Parallel()

	assert.NoError(t, checkRowsAffected(mockResult{rowsAffected: 1}, store.ErrTaskNotFound))
	assert.ErrorIs(t, checkRowsAffected(mockResult{rowsAffected: 0}, store.ErrTaskNotFound), store.ErrTaskNotFound)

	err := checkRowsAffected(mockResult{err: errors.New("driver does not support")}, store.ErrTaskNotFound)
	assert.ErrorContains(t, err, "failed to get rows affected")

	_, err = rowsAffected(nil)
	assert.Error(t, err)
}
