package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	supplierdomain "github.com/railzwaylabs/cargoledger/internal/supplier/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         quotedomain.Repository
	CustomerRepo customerdomain.Repository
	SupplierRepo supplierdomain.Repository
	ProductRepo  productdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         quotedomain.Repository
	customerRepo customerdomain.Repository
	supplierRepo supplierdomain.Repository
	productRepo  productdomain.Repository
}

func New(p Params) quotedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("quote.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		supplierRepo: p.SupplierRepo,
		productRepo:  p.ProductRepo,
	}
}

func (s *Service) Create(ctx context.Context, req quotedomain.UpsertRequest) (*quotedomain.Response, error) {
	now := s.clock.Now(ctx)
	entity, err := s.buildSchedule(s.genID.Generate(), req)
	if err != nil {
		return nil, err
	}
	entity.CreatedAt = now
	entity.UpdatedAt = now

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkReferences(ctx, tx, entity); err != nil {
			return err
		}
		existing, err := s.repo.FindByName(ctx, tx, entity.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			return &quotedomain.ConfigError{Field: "name", Err: quotedomain.ErrDuplicateName}
		}
		return s.repo.Insert(ctx, tx, entity)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &quotedomain.ConfigError{Field: "name", Err: quotedomain.ErrDuplicateName}
		}
		return nil, err
	}

	s.log.Info("rate schedule created",
		zap.String("schedule_id", entity.ID.String()),
		zap.String("side", string(entity.Side)),
		zap.String("fee_type", string(entity.FeeType)),
	)
	return toResponse(entity), nil
}

func (s *Service) Update(ctx context.Context, id string, req quotedomain.UpsertRequest) (*quotedomain.Response, error) {
	scheduleID, err := parseID(id)
	if err != nil {
		return nil, quotedomain.ErrInvalidID
	}

	entity, err := s.buildSchedule(scheduleID, req)
	if err != nil {
		return nil, err
	}
	entity.UpdatedAt = s.clock.Now(ctx)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if current == nil {
			return quotedomain.ErrNotFound
		}
		entity.CreatedAt = current.CreatedAt

		if err := s.checkReferences(ctx, tx, entity); err != nil {
			return err
		}
		if entity.Name != current.Name {
			clash, err := s.repo.FindByName(ctx, tx, entity.Name)
			if err != nil {
				return err
			}
			if clash != nil {
				return &quotedomain.ConfigError{Field: "name", Err: quotedomain.ErrDuplicateName}
			}
		}
		return s.repo.Replace(ctx, tx, entity)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rate schedule replaced", zap.String("schedule_id", entity.ID.String()))
	return toResponse(entity), nil
}

func (s *Service) Get(ctx context.Context, id string) (*quotedomain.Response, error) {
	scheduleID, err := parseID(id)
	if err != nil {
		return nil, quotedomain.ErrInvalidID
	}
	entity, err := s.repo.FindByID(ctx, s.db, scheduleID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, quotedomain.ErrNotFound
	}
	return toResponse(entity), nil
}

func (s *Service) List(ctx context.Context, req quotedomain.ListRequest) (quotedomain.ListResponse, error) {
	filter := quotedomain.ListFilter{ActiveAt: req.ActiveAt}
	if v := strings.TrimSpace(req.Side); v != "" {
		filter.Side = quotedomain.Side(v)
		if !filter.Side.Valid() {
			return quotedomain.ListResponse{}, quotedomain.ErrInvalidSide
		}
	}
	if v := strings.TrimSpace(req.CounterpartyID); v != "" {
		id, err := parseID(v)
		if err != nil {
			return quotedomain.ListResponse{}, quotedomain.ErrInvalidCounterparty
		}
		filter.CounterpartyID = id
	}
	if v := strings.TrimSpace(req.FeeType); v != "" {
		ft, err := feetype.Parse(v)
		if err != nil {
			return quotedomain.ListResponse{}, quotedomain.ErrInvalidFeeType
		}
		filter.FeeType = ft
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return quotedomain.ListResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination.Size(), func(item *quotedomain.RateSchedule) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.Format(time.RFC3339Nano)}
	})

	resp := make([]quotedomain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, *toResponse(item))
	}
	return quotedomain.ListResponse{Schedules: resp, PageInfo: pageInfo}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	scheduleID, err := parseID(id)
	if err != nil {
		return quotedomain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.Delete(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if !deleted {
			return quotedomain.ErrNotFound
		}
		return nil
	})
}

func (s *Service) buildSchedule(id snowflake.ID, req quotedomain.UpsertRequest) (*quotedomain.RateSchedule, error) {
	side := quotedomain.Side(strings.ToLower(strings.TrimSpace(req.Side)))
	if !side.Valid() {
		return nil, &quotedomain.ConfigError{Field: "side", Err: quotedomain.ErrInvalidSide}
	}
	ft, err := feetype.Parse(req.FeeType)
	if err != nil {
		return nil, &quotedomain.ConfigError{Field: "fee_type", Err: quotedomain.ErrInvalidFeeType}
	}
	counterpartyID, err := parseID(req.CounterpartyID)
	if err != nil {
		return nil, &quotedomain.ConfigError{Field: "counterparty_id", Err: quotedomain.ErrInvalidCounterparty}
	}

	productIDs := make(datatypes.JSONSlice[int64], 0, len(req.ProductIDs))
	seen := make(map[int64]struct{}, len(req.ProductIDs))
	for _, raw := range req.ProductIDs {
		pid, err := parseID(raw)
		if err != nil {
			return nil, &quotedomain.ConfigError{Field: "product_ids", Err: quotedomain.ErrUnknownProduct}
		}
		if _, dup := seen[pid.Int64()]; dup {
			continue
		}
		seen[pid.Int64()] = struct{}{}
		productIDs = append(productIDs, pid.Int64())
	}

	tiers := make(quotedomain.TierTable, 0, len(req.Tiers))
	for _, in := range req.Tiers {
		tiers = append(tiers, quotedomain.Tier{
			ID:           s.genID.Generate(),
			Start:        in.Start,
			End:          in.End,
			RatePerKg:    in.RatePerKg,
			RatePerPiece: in.RatePerPiece,
		})
	}

	entity := &quotedomain.RateSchedule{
		ID:             id,
		Name:           req.Name,
		Side:           side,
		CounterpartyID: counterpartyID,
		FeeType:        ft,
		ProductIDs:     productIDs,
		ValidFrom:      req.ValidFrom,
		ValidTo:        req.ValidTo,
		Rate:           req.Rate,
		RatePerKg:      req.RatePerKg,
		RatePerPiece:   req.RatePerPiece,
		MinWeight:      req.MinWeight,
		Tiers:          tiers,
	}
	entity.Normalize()
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *Service) checkReferences(ctx context.Context, tx *gorm.DB, entity *quotedomain.RateSchedule) error {
	switch entity.Side {
	case quotedomain.SideCustomer:
		customer, err := s.customerRepo.FindByID(ctx, tx, entity.CounterpartyID)
		if err != nil {
			return err
		}
		if customer == nil {
			return &quotedomain.ConfigError{Field: "counterparty_id", Err: quotedomain.ErrUnknownCounterparty}
		}
	case quotedomain.SideSupplier:
		supplier, err := s.supplierRepo.FindByID(ctx, tx, entity.CounterpartyID)
		if err != nil {
			return err
		}
		if supplier == nil {
			return &quotedomain.ConfigError{Field: "counterparty_id", Err: quotedomain.ErrUnknownCounterparty}
		}
	}

	if len(entity.ProductIDs) == 0 {
		return nil
	}
	ids := make([]snowflake.ID, 0, len(entity.ProductIDs))
	for _, id := range entity.ProductIDs {
		ids = append(ids, snowflake.ID(id))
	}
	products, err := s.productRepo.FindByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(products) != len(ids) {
		return &quotedomain.ConfigError{Field: "product_ids", Err: quotedomain.ErrUnknownProduct}
	}
	return nil
}

func toResponse(entity *quotedomain.RateSchedule) *quotedomain.Response {
	productIDs := make([]string, 0, len(entity.ProductIDs))
	for _, id := range entity.ProductIDs {
		productIDs = append(productIDs, strconv.FormatInt(id, 10))
	}
	var tiers []quotedomain.TierResponse
	for _, t := range entity.Tiers {
		tiers = append(tiers, quotedomain.TierResponse{
			Start:        t.Start.String(),
			End:          t.End.String(),
			RatePerKg:    t.RatePerKg.String(),
			RatePerPiece: t.RatePerPiece.String(),
		})
	}
	return &quotedomain.Response{
		ID:             entity.ID.String(),
		Name:           entity.Name,
		Side:           string(entity.Side),
		CounterpartyID: entity.CounterpartyID.String(),
		FeeType:        string(entity.FeeType),
		ProductIDs:     productIDs,
		ValidFrom:      entity.ValidFrom,
		ValidTo:        entity.ValidTo,
		Rate:           entity.Rate.String(),
		RatePerKg:      entity.RatePerKg.String(),
		RatePerPiece:   entity.RatePerPiece.String(),
		MinWeight:      entity.MinWeight.String(),
		Tiers:          tiers,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}

func parseID(value string) (snowflake.ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty id")
	}
	return snowflake.ParseString(value)
}
