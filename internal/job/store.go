package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// Store persists job envelopes and their lifecycle state so unfinished work
// survives a restart.
type Store interface {
	// SaveJob records a new job as pending.
	SaveJob(ctx context.Context, env *Envelope) error

	// UpdateJobStatus moves a job to status, recording its attempt count and
	// the last error message. Returns store.ErrJobNotFound for unknown IDs.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, attempt int, errMsg string) error

	// GetJobs returns jobs in status, oldest first. A non-zero olderThan only
	// returns jobs whose status has not changed for at least that long.
	GetJobs(ctx context.Context, status Status, olderThan time.Duration) ([]*Envelope, error)
}

type jobRecord struct {
	env       Envelope
	status    Status
	errMsg    string
	updatedAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*jobRecord
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[uuid.UUID]*jobRecord),
		now:  time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// SaveJob implements Store.
func (s *MemoryStore) SaveJob(_ context.Context, env *Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[env.ID]; exists {
		return store.ErrDuplicate
	}
	s.jobs[env.ID] = &jobRecord{env: *env, status: StatusPending, updatedAt: s.now()}
	return nil
}

// UpdateJobStatus implements Store.
func (s *MemoryStore) UpdateJobStatus(
	_ context.Context,
	id uuid.UUID,
	status Status,
	attempt int,
	errMsg string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	rec.status = status
	rec.env.Attempt = attempt
	rec.errMsg = errMsg
	rec.updatedAt = s.now()
	return nil
}

// GetJobs implements Store.
func (s *MemoryStore) GetJobs(_ context.Context, status Status, olderThan time.Duration) ([]*Envelope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var out []*Envelope
	for _, rec := range s.jobs {
		if rec.status != status {
			continue
		}
		if olderThan > 0 && now.Sub(rec.updatedAt) < olderThan {
			continue
		}
		env := rec.env
		out = append(out, &env)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
	})
	return out, nil
}

// Status returns the recorded state and last error message of a job.
func (s *MemoryStore) Status(id uuid.UUID) (Status, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.jobs[id]
	if !ok {
		return "", "", store.ErrJobNotFound
	}
	return rec.status, rec.errMsg, nil
}
