package job

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskflow-api/internal/domain"
)

// Payload is the closed set of job bodies. Each variant names its kind and
// validates itself; Decode is the only way envelopes become payloads.
type Payload interface {
	Kind() Kind
	Validate() error
}

// StatusUpdatePayload asks the consumer to move a task to a new status.
type StatusUpdatePayload struct {
	TaskID uuid.UUID         `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
}

// Kind implements Payload.
func (StatusUpdatePayload) Kind() Kind { return KindTaskStatusUpdate }

// Validate implements Payload.
func (p StatusUpdatePayload) Validate() error {
	if p.TaskID == uuid.Nil {
		return domain.ErrInvalidID
	}
	if !p.Status.Valid() {
		return domain.ErrInvalidTaskStatus
	}
	return nil
}

// OverdueNotificationPayload announces that a task is past its due date.
type OverdueNotificationPayload struct {
	TaskID uuid.UUID `json:"taskId"`
}

// Kind implements Payload.
func (OverdueNotificationPayload) Kind() Kind { return KindOverdueNotification }

// Validate implements Payload.
func (p OverdueNotificationPayload) Validate() error {
	if p.TaskID == uuid.Nil {
		return domain.ErrInvalidID
	}
	return nil
}

// Decode parses the envelope body into the payload variant for its kind.
// Every failure is permanent: a malformed body will not parse on retry.
func Decode(env *Envelope) (Payload, error) {
	var payload Payload

	switch env.Kind {
	case KindTaskStatusUpdate:
		var p StatusUpdatePayload
		if err := strictUnmarshal(env.Payload, &p); err != nil {
			return nil, Permanent(fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		payload = p
	case KindOverdueNotification:
		var p OverdueNotificationPayload
		if err := strictUnmarshal(env.Payload, &p); err != nil {
			return nil, Permanent(fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		payload = p
	default:
		return nil, Permanent(fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind))
	}

	if err := payload.Validate(); err != nil {
		return nil, Permanent(fmt.Errorf("%w: %w", ErrInvalidPayload, err))
	}
	return payload, nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
