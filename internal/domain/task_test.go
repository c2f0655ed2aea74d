package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewTask(t *testing.T) {
	t.Parallel()
	userID := uuid.New()

	task, err := NewTask(userID, "Write report", nil, "", "", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}
	if task.UserID != userID {
		t.Errorf("Expected user ID %s, got %s", userID, task.UserID)
	}
	if task.Status != TaskStatusPending {
		t.Errorf("Expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.Priority != TaskPriorityMedium {
		t.Errorf("Expected priority %s, got %s", TaskPriorityMedium, task.Priority)
	}
	if task.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Empty title
	_, err = NewTask(userID, "   ", nil, "", "", nil)
	if !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("Expected error %v, got %v", ErrEmptyTitle, err)
	}

	// Missing owner
	_, err = NewTask(uuid.Nil, "title", nil, "", "", nil)
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("Expected error %v, got %v", ErrInvalidID, err)
	}

	// Unknown status
	_, err = NewTask(userID, "title", nil, TaskStatus("DONE"), "", nil)
	if !errors.Is(err, ErrInvalidTaskStatus) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskStatus, err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("Expected status error to wrap %v", ErrValidation)
	}
}

func TestParseTaskStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    TaskStatus
		wantErr bool
	}{
		{"PENDING", TaskStatusPending, false},
		{"in_progress", TaskStatusInProgress, false},
		{" completed ", TaskStatusCompleted, false},
		{"archived", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseTaskStatus(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidTaskStatus) {
				t.Errorf("ParseTaskStatus(%q): expected ErrInvalidTaskStatus, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTaskStatus(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestTaskPatchApply(t *testing.T) {
	t.Parallel()

	task, err := NewTask(uuid.New(), "Original", nil, "", TaskPriorityLow, nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	createdAt := task.CreatedAt
	id := task.ID

	title := "Renamed"
	status := TaskStatusInProgress
	changed, err := TaskPatch{Title: &title, Status: &status}.Apply(task)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !changed {
		t.Error("Expected status change to be reported")
	}
	if task.Title != title || task.Status != status {
		t.Errorf("Patch not applied: %+v", task)
	}
	if task.Priority != TaskPriorityLow {
		t.Errorf("Unset field changed: priority %s", task.Priority)
	}
	if task.ID != id || !task.CreatedAt.Equal(createdAt) {
		t.Error("Immutable fields changed")
	}

	changed, err = TaskPatch{Title: &title}.Apply(task)
	if err != nil || changed {
		t.Errorf("Expected no status change, got changed=%v err=%v", changed, err)
	}

	bad := TaskPriority("URGENT")
	if _, err := (TaskPatch{Priority: &bad}).Apply(task); !errors.Is(err, ErrInvalidTaskPriority) {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskPriority, err)
	}
}

func TestTaskIsOverdue(t *testing.T) {
	t.Parallel()
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	task := &Task{Status: TaskStatusPending, DueDate: &past}
	if !task.IsOverdue(now) {
		t.Error("Expected pending task past its due date to be overdue")
	}

	task.Status = TaskStatusCompleted
	if task.IsOverdue(now) {
		t.Error("Completed task must not be overdue")
	}

	task = &Task{Status: TaskStatusPending, DueDate: &future}
	if task.IsOverdue(now) {
		t.Error("Task due in the future must not be overdue")
	}

	task = &Task{Status: TaskStatusPending}
	if task.IsOverdue(now) {
		t.Error("Task without due date must not be overdue")
	}
}

func TestTaskClone(t *testing.T) {
	t.Parallel()
	desc := "details"
	due := time.Now().UTC()
	task := &Task{ID: uuid.New(), Title: "x", Description: &desc, DueDate: &due}

	c := task.Clone()
	*c.Description = "changed"
	*c.DueDate = due.Add(time.Hour)

	if *task.Description != "details" || !task.DueDate.Equal(due) {
		t.Error("Clone shares pointer fields with the original")
	}
}

func TestRankOrdering(t *testing.T) {
	if !(TaskPriorityLow.Rank() < TaskPriorityMedium.Rank() && TaskPriorityMedium.Rank() < TaskPriorityHigh.Rank()) {
		t.Error("priority ranks should increase with urgency")
	}
	if !(TaskStatusPending.Rank() < TaskStatusInProgress.Rank() && TaskStatusInProgress.Rank() < TaskStatusCompleted.Rank()) {
		t.Error("status ranks should follow the lifecycle")
	}
	if TaskPriority("URGENT").Rank() != 0 || TaskStatus("DONE").Rank() != 0 {
		t.Error("unknown values should rank zero")
	}
}
