package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	"github.com/railzwaylabs/cargoledger/internal/config"
	"github.com/railzwaylabs/cargoledger/internal/lock"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxReportedErrors bounds the error list kept in a result; ErrorCount stays exact.
const maxReportedErrors = 1000

const (
	outcomeUpdated   = "updated"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Repo    waybilldomain.Repository
	Rating  *ratingservice.Service
	Locker  lock.Locker
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        waybilldomain.Repository
	rating      *ratingservice.Service
	locker      lock.Locker
	metrics     *observability.Metrics
	concurrency int
	batchSize   int
}

func New(p Params) recomputedomain.Service {
	concurrency := p.Config.Recompute.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	batchSize := p.Config.Recompute.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("recompute.service"),
		clock:       p.Clock,
		repo:        p.Repo,
		rating:      p.Rating,
		locker:      p.Locker,
		metrics:     p.Metrics,
		concurrency: concurrency,
		batchSize:   batchSize,
	}
}

// itemResult is the outcome of re-rating one waybill.
type itemResult struct {
	waybillID snowflake.ID
	orderNo   string
	outcome   string
	feeErrors []*ratingdomain.FeeError
	writeErr  error
}

// Recompute re-rates every waybill matching the request. Per-fee failures are
// reported in the result; only a load failure or cancellation returns an error.
func (s *Service) Recompute(ctx context.Context, req recomputedomain.Request) (*recomputedomain.Result, error) {
	filter, err := req.Filter()
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("cargoledger/recompute").Start(ctx, "recompute.Recompute")
	defer span.End()

	book, err := s.rating.LoadBook(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &recomputedomain.Result{Errors: []recomputedomain.ItemError{}}
	var afterID snowflake.ID
	for {
		ids, err := s.repo.ListIDs(ctx, s.db, filter, afterID, s.batchSize)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list waybills: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]

		items, err := s.processBatch(ctx, book, ids)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.collect(result, items)

		if len(ids) < s.batchSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("recompute.matched", result.MatchedCount),
		attribute.Int("recompute.updated", result.UpdatedCount),
		attribute.Int("recompute.errors", result.ErrorCount),
	)
	s.log.Info("recompute finished",
		zap.String("scope", req.ScopeKey()),
		zap.Int("matched", result.MatchedCount),
		zap.Int("updated", result.UpdatedCount),
		zap.Int("unchanged", result.UnchangedCount),
		zap.Int("errors", result.ErrorCount),
	)
	return result, nil
}

func (s *Service) processBatch(ctx context.Context, book *ratingservice.Book, ids []snowflake.ID) ([]itemResult, error) {
	var (
		mu    sync.Mutex
		items = make([]itemResult, 0, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			item, err := s.recomputeOne(gctx, book, id)
			if err != nil {
				return err
			}
			if item == nil {
				return nil
			}
			mu.Lock()
			items = append(items, *item)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].waybillID < items[j].waybillID })
	return items, nil
}

// recomputeOne holds the waybill's key lock and row lock while rating it. A
// nil item means the waybill disappeared after it was listed.
func (s *Service) recomputeOne(ctx context.Context, book *ratingservice.Book, id snowflake.ID) (*itemResult, error) {
	release, err := s.locker.Acquire(ctx, lock.WaybillKey(id))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &itemResult{waybillID: id, outcome: outcomeFailed, writeErr: err}, nil
	}
	defer release()

	var item *itemResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.FindForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if w == nil {
			return nil
		}

		out := book.Rate(w.ToShipment())
		checksum := ratingservice.Checksum(out)
		item = &itemResult{waybillID: w.ID, orderNo: w.OrderNo, feeErrors: out.Errors}

		if checksum == w.FeeChecksum && storedMatches(w, out) {
			item.outcome = outcomeUnchanged
			return nil
		}
		err = s.repo.ApplyFees(ctx, tx, w.ID, waybilldomain.FeeUpdate{
			Amounts:    out.Amounts,
			Errors:     ratingservice.FormatErrors(out.Errors),
			Checksum:   checksum,
			ComputedAt: s.clock.Now(ctx),
		})
		if err != nil {
			return err
		}
		item.outcome = outcomeUpdated
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.log.Warn("recompute waybill failed", zap.String("waybill_id", id.String()), zap.Error(err))
		return &itemResult{waybillID: id, outcome: outcomeFailed, writeErr: err}, nil
	}
	return item, nil
}

// storedMatches guards against columns edited outside recompute.
func storedMatches(w *waybilldomain.Waybill, out *ratingdomain.Outcome) bool {
	for _, c := range ratingdomain.Components {
		stored := w.Fee(c)
		computed, ok := out.Amount(c)
		if stored.Valid != ok {
			return false
		}
		if ok && !stored.Decimal.Equal(computed) {
			return false
		}
	}
	return true
}

func (s *Service) collect(result *recomputedomain.Result, items []itemResult) {
	for _, item := range items {
		result.MatchedCount++
		s.metrics.RecomputeWaybill(item.outcome)
		switch item.outcome {
		case outcomeUpdated:
			result.UpdatedCount++
		case outcomeUnchanged:
			result.UnchangedCount++
		}

		if item.writeErr != nil {
			s.report(result, recomputedomain.ItemError{
				WaybillID: item.waybillID.String(),
				OrderNo:   item.orderNo,
				Reason:    item.writeErr.Error(),
			})
			continue
		}
		for _, fe := range item.feeErrors {
			s.report(result, recomputedomain.ItemError{
				WaybillID: item.waybillID.String(),
				OrderNo:   item.orderNo,
				Component: string(fe.Component),
				Reason:    reason(fe),
			})
		}
	}
}

func (s *Service) report(result *recomputedomain.Result, e recomputedomain.ItemError) {
	result.ErrorCount++
	if len(result.Errors) < maxReportedErrors {
		result.Errors = append(result.Errors, e)
	}
}

func reason(fe *ratingdomain.FeeError) string {
	if fe.Detail == "" {
		return fe.Err.Error()
	}
	return fe.Err.Error() + ": " + fe.Detail
}
