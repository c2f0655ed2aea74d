package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents where a task is in its lifecycle
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
)

// TaskPriority represents how urgent a task is
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "LOW"
	TaskPriorityMedium TaskPriority = "MEDIUM"
	TaskPriorityHigh   TaskPriority = "HIGH"
)

// MaxTitleLength is the longest title a task may carry.
const MaxTitleLength = 255

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// Valid reports whether p is one of the known task priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// Rank orders statuses along the task lifecycle for sorting.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusPending:
		return 1
	case TaskStatusInProgress:
		return 2
	case TaskStatusCompleted:
		return 3
	default:
		return 0
	}
}

// Rank orders priorities from least to most urgent for sorting.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityLow:
		return 1
	case TaskPriorityMedium:
		return 2
	case TaskPriorityHigh:
		return 3
	default:
		return 0
	}
}

// ParseTaskStatus converts a raw string into a TaskStatus.
// Returns ErrInvalidTaskStatus if the value is not recognized.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}

// Task is a mutable unit of work owned by a user.
// ID and CreatedAt are set once at creation and never change.
type Task struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`
	UserID      uuid.UUID    `json:"user_id"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewTask creates a new Task owned by userID.
// Status defaults to PENDING and priority to MEDIUM when left empty.
// Returns an error if validation fails.
func NewTask(
	userID uuid.UUID,
	title string,
	description *string,
	status TaskStatus,
	priority TaskPriority,
	dueDate *time.Time,
) (*Task, error) {
	if status == "" {
		status = TaskStatusPending
	}
	if priority == "" {
		priority = TaskPriorityMedium
	}

	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      status,
		Priority:    priority,
		DueDate:     normalizeTime(dueDate),
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil || t.UserID == uuid.Nil {
		return ErrInvalidID
	}

	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}

	if !t.Status.Valid() {
		return ErrInvalidTaskStatus
	}

	if !t.Priority.Valid() {
		return ErrInvalidTaskPriority
	}

	return nil
}

// IsOverdue reports whether the task is still pending past its due date.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.DueDate != nil && t.DueDate.Before(now)
}

// Clone returns a deep copy of the task so callers can mutate it freely.
func (t *Task) Clone() *Task {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}

// TaskPatch describes a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string       `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	Priority    *TaskPriority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
}

// Apply copies every set field of the patch onto the task and re-validates it.
// It reports whether the status changed.
func (p TaskPatch) Apply(t *Task) (statusChanged bool, err error) {
	previous := t.Status

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		d := *p.Description
		t.Description = &d
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = normalizeTime(p.DueDate)
	}

	if err := t.Validate(); err != nil {
		return false, err
	}

	return t.Status != previous, nil
}

func normalizeTime(ts *time.Time) *time.Time {
	if ts == nil {
		return nil
	}
	u := ts.UTC()
	return &u
}
