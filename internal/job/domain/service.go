package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidID      = errors.New("invalid_job_id")
	ErrNotFound       = errors.New("job_not_found")
	ErrUnknownKind    = errors.New("unknown_job_kind")
	ErrInvalidPayload = errors.New("invalid_job_payload")
)

// Outcome is what a handler reports for a finished run.
type Outcome struct {
	Message string
	Result  any
}

// Handler executes one kind of job. Scope validates the payload and returns
// the key identifying the work it covers.
type Handler interface {
	Scope(payload []byte) (string, error)
	Run(ctx context.Context, payload []byte) (Outcome, error)
}

type Handlers map[Kind]Handler

// Dispatcher hands a freshly persisted job to a local worker pool.
type Dispatcher interface {
	Enqueue(id uuid.UUID)
}

type SubmitRequest struct {
	Kind           Kind
	Payload        any
	IdempotencyKey string
}

type Response struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	ScopeKey   string          `json:"scope_key"`
	Status     Status          `json:"status"`
	Message    string          `json:"message,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type Service interface {
	// Submit persists a pending job. With an idempotency key that was used
	// before, the existing job is returned and created is false.
	Submit(ctx context.Context, req SubmitRequest) (resp *Response, created bool, err error)
	Get(ctx context.Context, id string) (*Response, error)
}
