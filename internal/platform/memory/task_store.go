// Package memory provides an in-process implementation of store.TaskStore for
// single-node deployments without a database, and for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/store"
)

// TaskStore keeps tasks in a map guarded by a RWMutex.
//
// Writes are serialized by a store-wide write lock. A transaction holds that
// lock for its whole duration, works on a private copy of the map and swaps
// the copy in on commit, so a rolled back transaction leaves no trace.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*domain.Task

	// writeMu is nil on transaction views; the owning transaction holds it.
	writeMu *sync.Mutex
}

// NewTaskStore creates an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks:   make(map[uuid.UUID]*domain.Task),
		writeMu: &sync.Mutex{},
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

func (s *TaskStore) lockWrites() func() {
	if s.writeMu == nil {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

// RunInTransaction implements store.TaskStore.RunInTransaction.
func (s *TaskStore) RunInTransaction(
	ctx context.Context,
	fn func(ctx context.Context, tx store.TaskStore) error,
) error {
	if s.writeMu == nil {
		return fn(ctx, s)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	snapshot := make(map[uuid.UUID]*domain.Task, len(s.tasks))
	for id, t := range s.tasks {
		snapshot[id] = t
	}
	s.mu.RUnlock()

	view := &TaskStore{tasks: snapshot}
	if err := fn(ctx, view); err != nil {
		return err
	}

	s.mu.Lock()
	s.tasks = view.tasks
	s.mu.Unlock()
	return nil
}

// Create implements store.TaskStore.Create.
func (s *TaskStore) Create(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	defer s.lockWrites()()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetByID implements store.TaskStore.GetByID.
func (s *TaskStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// List implements store.TaskStore.List.
func (s *TaskStore) List(_ context.Context, filter domain.TaskFilter) ([]*domain.Task, int, error) {
	f := filter.Normalize()
	search := strings.ToLower(f.Search)

	s.mu.RLock()
	matched := make([]*domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		matched = append(matched, t)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return less(matched[i], matched[j], f.SortBy, f.SortOrder)
	})

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}

	page := make([]*domain.Task, 0, end-start)
	for _, t := range matched[start:end] {
		page = append(page, t.Clone())
	}
	return page, total, nil
}

// Update implements store.TaskStore.Update.
func (s *TaskStore) Update(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	defer s.lockWrites()()
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}

	updated := task.Clone()
	updated.UserID = existing.UserID
	updated.CreatedAt = existing.CreatedAt
	s.tasks[task.ID] = updated
	return nil
}

// Delete implements store.TaskStore.Delete.
func (s *TaskStore) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	defer s.lockWrites()()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return 0, nil
	}
	delete(s.tasks, id)
	return 1, nil
}

// BulkUpdateStatus implements store.TaskStore.BulkUpdateStatus.
// Every matched task counts, including those already in status.
func (s *TaskStore) BulkUpdateStatus(_ context.Context, ids []uuid.UUID, status domain.TaskStatus) (int64, error) {
	if !status.Valid() {
		return 0, domain.ErrInvalidTaskStatus
	}

	defer s.lockWrites()()
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range uniqueIDs(ids) {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		updated := t.Clone()
		updated.Status = status
		s.tasks[id] = updated
		n++
	}
	return n, nil
}

// BulkDelete implements store.TaskStore.BulkDelete.
func (s *TaskStore) BulkDelete(_ context.Context, ids []uuid.UUID) (int64, error) {
	defer s.lockWrites()()
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range uniqueIDs(ids) {
		if _, ok := s.tasks[id]; ok {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

// CountStats implements store.TaskStore.CountStats.
func (s *TaskStore) CountStats(_ context.Context) (*domain.TaskStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &domain.TaskStats{Total: len(s.tasks)}
	for _, t := range s.tasks {
		switch t.Status {
		case domain.TaskStatusCompleted:
			stats.Completed++
		case domain.TaskStatusInProgress:
			stats.InProgress++
		case domain.TaskStatusPending:
			stats.Pending++
		}
		if t.Priority == domain.TaskPriorityHigh {
			stats.HighPriority++
		}
	}
	return stats, nil
}

// FindOverdueIDs implements store.TaskStore.FindOverdueIDs.
func (s *TaskStore) FindOverdueIDs(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.RLock()
	overdue := make([]*domain.Task, 0)
	for _, t := range s.tasks {
		if t.IsOverdue(now) {
			overdue = append(overdue, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].DueDate.Before(*overdue[j].DueDate)
	})

	ids := make([]uuid.UUID, len(overdue))
	for i, t := range overdue {
		ids[i] = t.ID
	}
	return ids, nil
}

func matchesSearch(t *domain.Task, needle string) bool {
	if strings.Contains(strings.ToLower(t.Title), needle) {
		return true
	}
	return t.Description != nil && strings.Contains(strings.ToLower(*t.Description), needle)
}

// less orders tasks the way the SQL store does: by the sort key in the
// requested direction, missing due dates last, ties broken by ascending ID.
func less(a, b *domain.Task, field domain.SortField, order domain.SortOrder) bool {
	cmp := compareField(a, b, field)
	if cmp == 0 {
		return a.ID.String() < b.ID.String()
	}
	if field == domain.SortByDueDate && (a.DueDate == nil || b.DueDate == nil) {
		return a.DueDate != nil
	}
	if order == domain.SortAsc {
		return cmp < 0
	}
	return cmp > 0
}

func compareField(a, b *domain.Task, field domain.SortField) int {
	switch field {
	case domain.SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case domain.SortByDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	case domain.SortByPriority:
		return a.Priority.Rank() - b.Priority.Rank()
	case domain.SortByStatus:
		return a.Status.Rank() - b.Status.Rank()
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
