package job

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return clock }

	first := overdueEnvelope(t)
	second := overdueEnvelope(t)
	second.EnqueuedAt = first.EnqueuedAt.Add(time.Second)

	require.NoError(t, s.SaveJob(ctx, second))
	require.NoError(t, s.SaveJob(ctx, first))
	assert.ErrorIs(t, s.SaveJob(ctx, first), store.ErrDuplicate)

	pending, err := s.GetJobs(ctx, StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest job first")

	require.NoError(t, s.UpdateJobStatus(ctx, first.ID, StatusProcessing, 1, ""))

	processing, err := s.GetJobs(ctx, StatusProcessing, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, processing, "job has not been processing long enough")

	clock = clock.Add(2 * time.Minute)
	processing, err = s.GetJobs(ctx, StatusProcessing, time.Minute)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, 1, processing[0].Attempt)

	require.NoError(t, s.UpdateJobStatus(ctx, first.ID, StatusDead, 3, "boom"))
	status, msg, err := s.Status(first.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDead, status)
	assert.Equal(t, "boom", msg)
	assert.True(t, status.IsTerminal())

	err = s.UpdateJobStatus(ctx, uuid.New(), StatusCompleted, 1, "")
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}
