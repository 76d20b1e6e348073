package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxIdempotencyKeyLength = 255

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       jobdomain.Repository
	Handlers   jobdomain.Handlers
	Dispatcher jobdomain.Dispatcher `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       jobdomain.Repository
	handlers   jobdomain.Handlers
	dispatcher jobdomain.Dispatcher
}

func New(p Params) jobdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("job.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		handlers:   p.Handlers,
		dispatcher: p.Dispatcher,
	}
}

func (s *Service) Submit(ctx context.Context, req jobdomain.SubmitRequest) (*jobdomain.Response, bool, error) {
	handler, ok := s.handlers[req.Kind]
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", jobdomain.ErrUnknownKind, req.Kind)
	}
	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", jobdomain.ErrInvalidPayload, err)
	}
	scopeKey, err := handler.Scope(payload)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", jobdomain.ErrInvalidPayload, err)
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if len(key) > maxIdempotencyKeyLength {
		return nil, false, fmt.Errorf("%w: idempotency key too long", jobdomain.ErrInvalidPayload)
	}
	if key != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, s.db, key)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return toResponse(existing), false, nil
		}
	}

	job := &jobdomain.Job{
		ID:        uuid.New(),
		Kind:      req.Kind,
		ScopeKey:  scopeKey,
		Status:    jobdomain.StatusPending,
		Payload:   datatypes.JSON(payload),
		CreatedAt: s.clock.Now(ctx),
	}
	if key != "" {
		job.IdempotencyKey = &key
	}
	if err := s.repo.Insert(ctx, s.db, job); err != nil {
		if key == "" {
			return nil, false, err
		}
		// A concurrent submit with the same key won the insert.
		existing, findErr := s.repo.FindByIdempotencyKey(ctx, s.db, key)
		if findErr != nil || existing == nil {
			return nil, false, err
		}
		return toResponse(existing), false, nil
	}

	s.log.Info("job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("scope", scopeKey),
	)
	if s.dispatcher != nil {
		s.dispatcher.Enqueue(job.ID)
	}
	return toResponse(job), true, nil
}

func (s *Service) Get(ctx context.Context, id string) (*jobdomain.Response, error) {
	jobID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, jobdomain.ErrInvalidID
	}
	job, err := s.repo.FindByID(ctx, s.db, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, jobdomain.ErrNotFound
	}
	return toResponse(job), nil
}

func toResponse(job *jobdomain.Job) *jobdomain.Response {
	resp := &jobdomain.Response{
		ID:         job.ID.String(),
		Kind:       job.Kind,
		ScopeKey:   job.ScopeKey,
		Status:     job.Status,
		Message:    job.Message,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	if len(job.Result) > 0 {
		resp.Result = json.RawMessage(job.Result)
	}
	return resp
}
