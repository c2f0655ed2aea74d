package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/job"
	"github.com/phrazzld/taskflow-api/internal/platform/memory"
	"github.com/phrazzld/taskflow-api/internal/store"
	"github.com/stretchr/testify/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockJobDispatcher mocks the JobDispatcher interface
type MockJobDispatcher struct {
	mock.Mock
}

func (m *MockJobDispatcher) Enqueue(ctx context.Context, payload job.Payload, opts ...job.Option) (*job.Envelope, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*job.Envelope), args.Error(1)
}

// failingTxStore fails every transaction and every read with err.
type failingTxStore struct {
	store.TaskStore
	err error
}

func (s failingTxStore) RunInTransaction(context.Context, func(context.Context, store.TaskStore) error) error {
	return s.err
}

func (s failingTxStore) List(context.Context, domain.TaskFilter) ([]*domain.Task, int, error) {
	return nil, 0, s.err
}

func (s failingTxStore) CountStats(context.Context) (*domain.TaskStats, error) {
	return nil, s.err
}

// pausingStore holds List after it has read from the store until release is
// closed, signalling on listed once the snapshot is taken.
type pausingStore struct {
	*memory.TaskStore
	listed  chan struct{}
	release chan struct{}
}

func (s *pausingStore) List(ctx context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error) {
	tasks, total, err := s.TaskStore.List(ctx, filter)
	close(s.listed)
	<-s.release
	return tasks, total, err
}

// brokenBackend is a cache backend that is always down.
type brokenBackend struct{}

var errCacheDown = errors.New("cache down")

func (brokenBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errCacheDown
}

func (brokenBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errCacheDown
}

func (brokenBackend) Delete(context.Context, ...string) error {
	return errCacheDown
}

func (brokenBackend) Close() error { return nil }

func envelopeFor(payload job.Payload) *job.Envelope {
	env, err := job.NewEnvelope(payload, job.DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return env
}

var testUserID = uuid.MustParse("11111111-2222-3333-4444-555555555555")
