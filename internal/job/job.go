package job

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the handler a job is routed to.
type Kind string

// Known job kinds
const (
	KindTaskStatusUpdate    Kind = "task-status-update"
	KindOverdueNotification Kind = "overdue-tasks-notification"
)

// Status is the lifecycle state of a persisted job.
type Status string

// Possible job status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDead       Status = "dead"
)

// IsTerminal reports whether no further attempts will be made for a job in this state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusDead
}

// Policy controls how often and how quickly a failing job is retried.
// MaxAttempts is the total number of handler invocations, including the first.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"`
	BackoffBase time.Duration `json:"backoff_base"`
	BackoffMax  time.Duration `json:"backoff_max,omitempty"`
}

// DefaultPolicy returns three attempts with a one second base delay and no cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BackoffBase: time.Second,
	}
}

// Backoff returns the delay before the attempt that follows failed attempt n
// (1-based): base * 2^(n-1), capped at BackoffMax when it is set.
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(math.MaxInt64)
	if exp := math.Ldexp(float64(p.BackoffBase), attempt-1); exp < math.MaxInt64 {
		delay = time.Duration(exp)
	}

	if p.BackoffMax > 0 && delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}

// Envelope is the unit moved through the queue: a kind-tagged JSON payload
// plus its retry policy and the number of attempts already made.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Policy     Policy          `json:"policy"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewEnvelope serializes payload into a fresh envelope governed by policy.
func NewEnvelope(payload Payload, policy Policy) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", payload.Kind(), err)
	}

	return &Envelope{
		ID:         uuid.New(),
		Kind:       payload.Kind(),
		Payload:    raw,
		Policy:     policy,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// AttemptsLeft reports whether another attempt is permitted after the current one.
func (e *Envelope) AttemptsLeft() bool {
	return e.Attempt < e.Policy.MaxAttempts
}
