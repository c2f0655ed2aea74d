package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/cache"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/platform/memory"
	"github.com/phrazzld/taskflow-api/internal/processor"
	"github.com/phrazzld/taskflow-api/internal/scanner"
	"github.com/phrazzld/taskflow-api/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu       sync.Mutex
	notified []uuid.UUID
}

func (n *recordingNotifier) NotifyOverdue(_ context.Context, task *domain.Task) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, task.ID)
	return nil
}

type terminal struct {
	env     *job.Envelope
	outcome job.Outcome
}

// TestOverdueFlow drives a task from overdue detection through notification
// to completion, and checks the completion is visible through a list that was
// cached before any of it happened.
func TestOverdueFlow(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tasks := memory.NewTaskStore()
	coordinator := cache.NewCoordinator(cache.NewMemoryBackend(), cache.Config{}, log)
	queue := job.NewMemoryQueue(16, log)
	defer queue.Close()
	jobStore := job.NewMemoryStore()
	dispatcher := job.NewDispatcher(queue, jobStore, job.DefaultPolicy(), time.Second, log)

	svc, err := service.NewTaskService(tasks, coordinator, dispatcher, log)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	consumer := job.NewConsumer(queue, jobStore, job.ConsumerConfig{WorkerCount: 2, HandlerTimeout: time.Second}, log)
	processor.New(svc, notifier, log).Register(consumer)

	done := make(chan terminal, 8)
	consumer.SetTerminalHandler(func(env *job.Envelope, outcome job.Outcome, _ error) {
		done <- terminal{env: env, outcome: outcome}
	})
	require.NoError(t, consumer.Start())
	defer consumer.Stop()

	waitFor := func(kind job.Kind) {
		t.Helper()
		select {
		case got := <-done:
			require.Equal(t, kind, got.env.Kind)
			require.Equal(t, job.OutcomeCompleted, got.outcome)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", kind)
		}
	}

	due := time.Now().Add(-2 * time.Hour)
	overdue, err := svc.Create(ctx, service.CreateTaskInput{
		UserID:  uuid.New(),
		Title:   "Renew TLS certificate",
		DueDate: &due,
	})
	require.NoError(t, err)
	_, err = svc.Create(ctx, service.CreateTaskInput{UserID: uuid.New(), Title: "Not due yet"})
	require.NoError(t, err)

	before, err := svc.FindAll(ctx, domain.TaskFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, before.Total)

	report, err := scanner.New(tasks, dispatcher, scanner.Config{Concurrency: 2}, log).Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, scanner.Report{Found: 1, Enqueued: 1}, report)

	waitFor(job.KindOverdueNotification)
	notifier.mu.Lock()
	assert.Equal(t, []uuid.UUID{overdue.ID}, notifier.notified)
	notifier.mu.Unlock()

	_, err = dispatcher.Enqueue(ctx, job.StatusUpdatePayload{TaskID: overdue.ID, Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	waitFor(job.KindTaskStatusUpdate)

	after, err := svc.FindAll(ctx, domain.TaskFilter{})
	require.NoError(t, err)
	var found bool
	for _, task := range after.Items {
		if task.ID == overdue.ID {
			found = true
			assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		}
	}
	assert.True(t, found)

	// Completed tasks are no longer overdue.
	report, err = scanner.New(tasks, dispatcher, scanner.Config{}, log).Scan(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Found)

	select {
	case extra := <-done:
		t.Fatalf("unexpected job %s with outcome %s", extra.env.Kind, extra.outcome)
	case <-time.After(50 * time.Millisecond):
	}
}
