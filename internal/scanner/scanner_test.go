package scanner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubFinder struct {
	ids   []uuid.UUID
	err   error
	calls atomic.Int32
	seen  time.Time
}

func (f *stubFinder) FindOverdueIDs(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.calls.Add(1)
	f.seen = now
	return f.ids, f.err
}

// recordingDispatcher fails enqueues for the IDs in failFor.
type recordingDispatcher struct {
	mu       sync.Mutex
	failFor  map[uuid.UUID]bool
	enqueued []uuid.UUID

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *recordingDispatcher) Enqueue(_ context.Context, payload job.Payload, _ ...job.Option) (*job.Envelope, error) {
	n := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		cur := d.maxInFlight.Load()
		if n <= cur || d.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)

	pl := payload.(job.OverdueNotificationPayload)
	if d.failFor[pl.TaskID] {
		return nil, domain.ErrDependencyUnavailable
	}

	d.mu.Lock()
	d.enqueued = append(d.enqueued, pl.TaskID)
	d.mu.Unlock()
	return job.NewEnvelope(pl, job.DefaultPolicy())
}

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestScan_EnqueuesEveryOverdueTask(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	finder := &stubFinder{ids: ids(20)}
	jobs := &recordingDispatcher{}

	s := New(finder, jobs, Config{Concurrency: 3}, discardLogger())
	s.now = func() time.Time { return now }

	report, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Found: 20, Enqueued: 20}, report)
	assert.ElementsMatch(t, finder.ids, jobs.enqueued)
	assert.Equal(t, now, finder.seen)
	assert.LessOrEqual(t, jobs.maxInFlight.Load(), int32(3))
}

func TestScan_PartialFailureIsIsolated(t *testing.T) {
	t.Parallel()
	all := ids(5)
	jobs := &recordingDispatcher{failFor: map[uuid.UUID]bool{all[1]: true, all[3]: true}}

	report, err := New(&stubFinder{ids: all}, jobs, Config{}, discardLogger()).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Found)
	assert.Equal(t, 3, report.Enqueued)
	assert.Equal(t, 2, report.Failed)
	assert.ElementsMatch(t, []uuid.UUID{all[1], all[3]}, report.FailedIDs)
	assert.ElementsMatch(t, []uuid.UUID{all[0], all[2], all[4]}, jobs.enqueued)
}

func TestScan_QueryFailure(t *testing.T) {
	t.Parallel()
	dbErr := errors.New("relation \"tasks\" does not exist")
	jobs := &recordingDispatcher{}

	_, err := New(&stubFinder{err: dbErr}, jobs, Config{}, discardLogger()).Scan(context.Background())
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, jobs.enqueued)
}

func TestScan_NothingOverdue(t *testing.T) {
	t.Parallel()
	report, err := New(&stubFinder{}, &recordingDispatcher{}, Config{}, discardLogger()).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	finder := &stubFinder{}
	s := New(finder, &recordingDispatcher{}, Config{Interval: 5 * time.Millisecond}, discardLogger())

	s.Start()
	assert.Eventually(t, func() bool { return finder.calls.Load() >= 2 }, time.Second, time.Millisecond)
	s.Stop()

	calls := finder.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, finder.calls.Load(), "no scans after Stop")
}

func TestStop_WithoutStart(t *testing.T) {
	t.Parallel()
	s := New(&stubFinder{}, &recordingDispatcher{}, Config{}, nil)
	assert.NotPanics(t, s.Stop)
	assert.Equal(t, time.Hour, s.config.Interval)
	assert.Equal(t, 8, s.config.Concurrency)
}
