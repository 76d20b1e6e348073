// Package runner executes persisted jobs on a bounded pool of workers.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	"github.com/railzwaylabs/cargoledger/internal/config"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultSweepInterval = time.Hour
	finishTimeout        = 10 * time.Second
)

var errStaleJob = errors.New("job exceeded its timeout while running")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Repo     jobdomain.Repository
	Handlers jobdomain.Handlers
	Metrics  *observability.Metrics `optional:"true"`
}

type Runner struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     jobdomain.Repository
	handlers jobdomain.Handlers
	metrics  *observability.Metrics

	workers       int
	timeout       time.Duration
	retention     time.Duration
	pollInterval  time.Duration
	sweepInterval time.Duration

	queue  chan uuid.UUID
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(p Params) *Runner {
	cfg := p.Config.Jobs
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &Runner{
		db:            p.DB,
		log:           p.Log.Named("job.runner"),
		clock:         p.Clock,
		repo:          p.Repo,
		handlers:      p.Handlers,
		metrics:       p.Metrics,
		workers:       workers,
		timeout:       timeout,
		retention:     cfg.Retention,
		pollInterval:  defaultPollInterval,
		sweepInterval: defaultSweepInterval,
		queue:         make(chan uuid.UUID, queueSize),
	}
}

// Enqueue offers a job to the local workers. A full queue leaves the job
// pending for the next poll.
func (r *Runner) Enqueue(id uuid.UUID) {
	select {
	case r.queue <- id:
	default:
		r.log.Debug("job queue full, leaving job for the poller", zap.String("job_id", id.String()))
	}
}

// Start fails jobs orphaned by a previous process, then starts the workers
// and the background poller. It does not block.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	now := r.clock.Now(ctx)
	failed, err := r.repo.FailStale(ctx, r.db, now.Add(-r.timeout), errStaleJob.Error(), now)
	if err != nil {
		return fmt.Errorf("fail stale jobs: %w", err)
	}
	if failed > 0 {
		r.log.Warn("failed stale jobs", zap.Int64("count", failed))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(runCtx, i)
	}
	r.wg.Add(1)
	go r.loop(runCtx)

	r.log.Info("job runner started",
		zap.Int("workers", r.workers),
		zap.Duration("timeout", r.timeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers. Interrupted jobs go
// back to pending and run again on the next start.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("job runner stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	r.poll(ctx)

	poll := time.NewTicker(r.pollInterval)
	defer poll.Stop()
	sweep := time.NewTicker(r.sweepInterval)
	defer sweep.Stop()
	if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
		r.log.Warn("job sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			r.poll(ctx)
		case <-sweep.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Warn("job sweep failed", zap.Error(err))
			}
		}
	}
}

// poll enqueues pending jobs, including those submitted by other processes.
func (r *Runner) poll(ctx context.Context) {
	ids, err := r.repo.ListPendingIDs(ctx, r.db, cap(r.queue))
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("list pending jobs failed", zap.Error(err))
		}
		return
	}
	for _, id := range ids {
		r.Enqueue(id)
	}
}

func (r *Runner) work(ctx context.Context, worker int) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.Execute(ctx, id, worker)
		}
	}
}

// Execute claims and runs one job. Jobs already claimed elsewhere are
// skipped.
func (r *Runner) Execute(ctx context.Context, id uuid.UUID, worker int) {
	log := r.log.With(zap.String("job_id", id.String()), zap.Int("worker", worker))

	job, err := r.repo.FindByID(ctx, r.db, id)
	if err != nil {
		log.Warn("load job failed", zap.Error(err))
		return
	}
	if job == nil || job.Status != jobdomain.StatusPending {
		return
	}
	started := r.clock.Now(ctx)
	claimed, err := r.repo.Claim(ctx, r.db, id, started)
	if err != nil {
		log.Warn("claim job failed", zap.Error(err))
		return
	}
	if !claimed {
		return
	}
	log.Info("job running", zap.String("kind", string(job.Kind)))

	outcome, runErr := r.run(ctx, job)

	finishCtx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()
	if ctx.Err() != nil {
		if err := r.repo.Release(finishCtx, r.db, id); err != nil {
			log.Warn("release interrupted job failed", zap.Error(err))
		}
		log.Info("job interrupted, returned to pending")
		return
	}

	status := jobdomain.StatusSucceeded
	message := outcome.Message
	if runErr != nil {
		status = jobdomain.StatusFailed
		message = runErr.Error()
	}
	var result datatypes.JSON
	if outcome.Result != nil {
		raw, err := json.Marshal(outcome.Result)
		if err != nil {
			log.Warn("encode job result failed", zap.Error(err))
		} else {
			result = datatypes.JSON(raw)
		}
	}

	finished := r.clock.Now(finishCtx)
	if err := r.repo.Finish(finishCtx, r.db, id, status, message, result, finished); err != nil {
		log.Error("record job outcome failed", zap.Error(err))
		return
	}
	elapsed := finished.Sub(started)
	r.metrics.JobFinished(string(job.Kind), string(status), elapsed)
	log.Info("job finished",
		zap.String("kind", string(job.Kind)),
		zap.String("status", string(status)),
		zap.String("message", message),
		zap.Duration("elapsed", elapsed),
	)
}

func (r *Runner) run(ctx context.Context, job *jobdomain.Job) (outcome jobdomain.Outcome, err error) {
	handler, ok := r.handlers[job.Kind]
	if !ok {
		return outcome, fmt.Errorf("%w: %q", jobdomain.ErrUnknownKind, job.Kind)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("job panicked",
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()

	outcome, err = handler.Run(runCtx, job.Payload)
	if err == nil && runCtx.Err() != nil {
		err = runCtx.Err()
	}
	return outcome, err
}
