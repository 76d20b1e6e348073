package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        waybilldomain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        waybilldomain.Repository
	productRepo productdomain.Repository
}

func New(p Params) waybilldomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("waybill.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
	}
}

// Create stores a waybill with its fee fields unset; fees are filled in by a
// recompute.
func (s *Service) Create(ctx context.Context, req waybilldomain.CreateRequest) (*waybilldomain.Response, error) {
	orderNo := strings.TrimSpace(req.OrderNo)
	if orderNo == "" {
		return nil, waybilldomain.ErrInvalidOrderNo
	}
	if req.OrderTime.IsZero() {
		return nil, waybilldomain.ErrInvalidOrderTime
	}
	if !req.Weight.IsPositive() {
		return nil, waybilldomain.ErrInvalidWeight
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return nil, waybilldomain.ErrUnknownProduct
	}

	now := s.clock.Now(ctx)
	entity := &waybilldomain.Waybill{
		ID:         s.genID.Generate(),
		OrderNo:    orderNo,
		TransferNo: strings.TrimSpace(req.TransferNo),
		OrderTime:  req.OrderTime.UTC(),
		Weight:     req.Weight,
		Pieces:     req.Pieces,
		ProductID:  productID,
		Remark:     strings.TrimSpace(req.Remark),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if entity.Pieces <= 0 {
		entity.Pieces = 1
	}
	if req.OtherFee != nil {
		entity.OtherFee = decimal.NewNullDecimal(req.OtherFee.Round(2))
	}
	refs := []struct {
		raw  string
		dest **snowflake.ID
	}{
		{req.UnitCustomerID, &entity.UnitCustomerID},
		{req.FirstLegCustomerID, &entity.FirstLegCustomerID},
		{req.LastLegCustomerID, &entity.LastLegCustomerID},
		{req.DifferentialCustomerID, &entity.DifferentialCustomerID},
		{req.SupplierID, &entity.SupplierID},
	}
	for _, ref := range refs {
		id, err := optionalID(ref.raw)
		if err != nil {
			return nil, err
		}
		*ref.dest = id
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := s.productRepo.FindByID(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return waybilldomain.ErrUnknownProduct
		}
		existing, err := s.repo.FindByOrderNo(ctx, tx, orderNo)
		if err != nil {
			return err
		}
		if existing != nil {
			return waybilldomain.ErrDuplicateOrderNo
		}
		return s.repo.Insert(ctx, tx, entity)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, waybilldomain.ErrDuplicateOrderNo
		}
		return nil, err
	}

	s.log.Info("waybill created",
		zap.String("waybill_id", entity.ID.String()),
		zap.String("order_no", entity.OrderNo),
	)
	return ToResponse(entity), nil
}

func (s *Service) Get(ctx context.Context, id string) (*waybilldomain.Response, error) {
	waybillID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || waybillID == 0 {
		return nil, waybilldomain.ErrInvalidID
	}
	entity, err := s.repo.FindByID(ctx, s.db, waybillID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, waybilldomain.ErrNotFound
	}
	return ToResponse(entity), nil
}

func optionalID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, waybilldomain.ErrInvalidReference
	}
	return &id, nil
}

func ToResponse(w *waybilldomain.Waybill) *waybilldomain.Response {
	return &waybilldomain.Response{
		ID:                     w.ID.String(),
		OrderNo:                w.OrderNo,
		TransferNo:             w.TransferNo,
		OrderTime:              w.OrderTime,
		Weight:                 w.Weight.String(),
		Pieces:                 w.Pieces,
		ProductID:              w.ProductID.String(),
		UnitCustomerID:         idString(w.UnitCustomerID),
		FirstLegCustomerID:     idString(w.FirstLegCustomerID),
		LastLegCustomerID:      idString(w.LastLegCustomerID),
		DifferentialCustomerID: idString(w.DifferentialCustomerID),
		SupplierID:             idString(w.SupplierID),
		UnitFee:                amountString(w.UnitFee),
		FirstLegFee:            amountString(w.FirstLegFee),
		LastLegFee:             amountString(w.LastLegFee),
		DedicatedLineFee:       amountString(w.DedicatedLineFee),
		DifferentialFee:        amountString(w.DifferentialFee),
		SupplierCost:           amountString(w.SupplierCost),
		OtherFee:               amountString(w.OtherFee),
		FeeErrors:              w.FeeErrors,
		FeesComputedAt:         w.FeesComputedAt,
		Remark:                 w.Remark,
		CreatedAt:              w.CreatedAt,
	}
}

func idString(id *snowflake.ID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func amountString(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	out := v.Decimal.StringFixed(2)
	return &out
}
