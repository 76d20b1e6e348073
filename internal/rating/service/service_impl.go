package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidPreview = errors.New("invalid_preview_request")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	QuoteRepo    quotedomain.Repository
	ProductRepo  productdomain.Repository
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	quoteRepo    quotedomain.Repository
	productRepo  productdomain.Repository
	customerRepo customerdomain.Repository
}

func New(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("rating.service"),
		quoteRepo:    p.QuoteRepo,
		productRepo:  p.ProductRepo,
		customerRepo: p.CustomerRepo,
	}
}

// LoadBook snapshots every schedule plus the product and customer master data.
func (s *Service) LoadBook(ctx context.Context) (*Book, error) {
	schedules, err := s.quoteRepo.ListAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load rate schedules: %w", err)
	}
	products, err := s.productRepo.FindAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	customers, err := s.customerRepo.FindAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	s.log.Debug("rating book loaded",
		zap.Int("schedules", len(schedules)),
		zap.Int("products", len(products)),
		zap.Int("customers", len(customers)),
	)
	return NewBook(schedules, products, customers), nil
}

type PreviewRequest struct {
	Side           string          `json:"side"`
	CounterpartyID string          `json:"counterparty_id"`
	FeeType        string          `json:"fee_type"`
	ProductID      string          `json:"product_id"`
	At             time.Time       `json:"at"`
	Weight         decimal.Decimal `json:"weight"`
	Pieces         int             `json:"pieces"`
}

type PreviewResponse struct {
	Covered      bool   `json:"covered"`
	ScheduleID   string `json:"schedule_id,omitempty"`
	ScheduleName string `json:"schedule_name,omitempty"`
	Amount       string `json:"amount,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Preview resolves and prices a single fee type without touching waybills.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error) {
	side := quotedomain.Side(strings.ToLower(strings.TrimSpace(req.Side)))
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side", ErrInvalidPreview)
	}
	ft, err := feetype.Parse(req.FeeType)
	if err != nil {
		return nil, fmt.Errorf("%w: fee_type", ErrInvalidPreview)
	}
	counterpartyID, err := snowflake.ParseString(strings.TrimSpace(req.CounterpartyID))
	if err != nil {
		return nil, fmt.Errorf("%w: counterparty_id", ErrInvalidPreview)
	}
	var productID snowflake.ID
	if v := strings.TrimSpace(req.ProductID); v != "" {
		productID, err = snowflake.ParseString(v)
		if err != nil {
			return nil, fmt.Errorf("%w: product_id", ErrInvalidPreview)
		}
	}
	if req.At.IsZero() || req.Weight.IsNegative() {
		return nil, fmt.Errorf("%w: at/weight", ErrInvalidPreview)
	}

	at := req.At.UTC()
	candidates, err := s.quoteRepo.List(ctx, s.db, quotedomain.ListFilter{
		Side:           side,
		CounterpartyID: counterpartyID,
		FeeType:        ft,
		ActiveAt:       &at,
	}, pagination.Pagination{PageSize: pagination.MaxPageSize})
	if err != nil {
		return nil, err
	}

	book := NewBook(candidates, nil, nil)
	schedule := book.Resolve(side, counterpartyID, ft, productID, at)
	if schedule == nil {
		return &PreviewResponse{Covered: false, Reason: ratingdomain.ErrUncovered.Error()}, nil
	}

	shipment := ratingdomain.Shipment{Weight: req.Weight, Pieces: req.Pieces}
	amount, err := Calculate(schedule, req.Weight, shipment.PieceCount())
	resp := &PreviewResponse{
		Covered:      true,
		ScheduleID:   schedule.ID.String(),
		ScheduleName: schedule.Name,
	}
	if err != nil {
		resp.Reason = err.Error()
		return resp, nil
	}
	resp.Amount = roundAmount(amount).StringFixed(amountPlaces)
	return resp, nil
}
