package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
	"github.com/phrazzld/taskflow-api/internal/service"
)

// CreateTaskRequest defines the payload for creating a task.
type CreateTaskRequest struct {
	UserID      uuid.UUID  `json:"user_id"     validate:"required"`
	Title       string     `json:"title"       validate:"required,max=255"`
	Description *string    `json:"description"`
	Status      string     `json:"status"      validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time `json:"due_date"`
}

func (r CreateTaskRequest) toInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.TaskStatus(r.Status),
		Priority:    domain.TaskPriority(r.Priority),
		DueDate:     r.DueDate,
	}
}

// UpdateStatusRequest defines the payload for changing only a task's status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING IN_PROGRESS COMPLETED"`
}

// BulkStatusRequest sets one status on many tasks.
type BulkStatusRequest struct {
	IDs    []uuid.UUID `json:"ids"    validate:"required,min=1,max=100"`
	Status string      `json:"status" validate:"required,oneof=PENDING IN_PROGRESS COMPLETED"`
}

// BulkDeleteRequest removes many tasks.
type BulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,max=100"`
}

// BulkResponse reports how many tasks a bulk operation touched.
type BulkResponse struct {
	Affected int64 `json:"affected"`
}
