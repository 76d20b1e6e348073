package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     paymentdomain.Repository
	Invoices invoicedomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     paymentdomain.Repository
	invoices invoicedomain.Service
}

func New(p Params) paymentdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("payment.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		invoices: p.Invoices,
	}
}

// link is the invoice a payment settles. The zero value links nothing.
type link struct {
	side invoicedomain.Side
	id   snowflake.ID
}

func linkOf(p *paymentdomain.Payment) link {
	switch {
	case p.InvoiceID != nil:
		return link{side: invoicedomain.SideCustomer, id: *p.InvoiceID}
	case p.SupplierInvoiceID != nil:
		return link{side: invoicedomain.SideSupplier, id: *p.SupplierInvoiceID}
	default:
		return link{}
	}
}

func (s *Service) Create(ctx context.Context, req paymentdomain.Request) (*paymentdomain.Response, error) {
	payment, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now(ctx)
	payment.ID = s.genID.Generate()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, payment); err != nil {
		return nil, err
	}
	if err := s.sync(ctx, linkOf(payment)); err != nil {
		return nil, err
	}
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("direction", string(payment.Direction)),
	)
	return toResponse(payment), nil
}

// Update replaces the payment. When the link moves, both the old and the new
// invoice have their paid flag re-derived.
func (s *Service) Update(ctx context.Context, id string, req paymentdomain.Request) (*paymentdomain.Response, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	next, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}

	var previous link
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindForUpdate(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		if current == nil {
			return paymentdomain.ErrNotFound
		}
		previous = linkOf(current)

		next.ID = current.ID
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.clock.Now(ctx)
		return s.repo.Update(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}

	if err := s.sync(ctx, previous); err != nil {
		return nil, err
	}
	if current := linkOf(next); current != previous {
		if err := s.sync(ctx, current); err != nil {
			return nil, err
		}
	}
	return toResponse(next), nil
}

// Delete removes the payment and re-derives the paid flag of the invoice it
// settled. Deleting a missing payment succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return err
	}

	var previous link
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindForUpdate(ctx, tx, paymentID)
		if err != nil || current == nil {
			return err
		}
		previous = linkOf(current)
		_, err = s.repo.Delete(ctx, tx, paymentID)
		return err
	})
	if err != nil {
		return err
	}
	return s.sync(ctx, previous)
}

func (s *Service) Get(ctx context.Context, id string) (*paymentdomain.Response, error) {
	paymentID, err := parseID(id, paymentdomain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	payment, err := s.repo.FindByID(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrNotFound
	}
	return toResponse(payment), nil
}

func (s *Service) sync(ctx context.Context, l link) error {
	if l.id == 0 {
		return nil
	}
	if err := s.invoices.SyncPaid(ctx, l.side, l.id); err != nil {
		return fmt.Errorf("sync invoice paid flag: %w", err)
	}
	return nil
}

// build validates the request and checks the linked invoice against the
// payment's direction and counterparty.
func (s *Service) build(ctx context.Context, req paymentdomain.Request) (*paymentdomain.Payment, error) {
	direction := paymentdomain.Direction(strings.ToLower(strings.TrimSpace(req.Direction)))
	var expected paymentdomain.CounterpartyType
	switch direction {
	case paymentdomain.DirectionReceipt:
		expected = paymentdomain.CounterpartyCustomer
	case paymentdomain.DirectionDisbursement:
		expected = paymentdomain.CounterpartySupplier
	default:
		return nil, paymentdomain.ErrInvalidDirection
	}

	counterpartyType := paymentdomain.CounterpartyType(strings.ToLower(strings.TrimSpace(req.CounterpartyType)))
	if counterpartyType == "" {
		counterpartyType = expected
	}
	if counterpartyType != expected {
		return nil, fmt.Errorf("%w: %s payments settle with a %s", paymentdomain.ErrInvalidCounterparty, direction, expected)
	}
	counterpartyID, err := parseID(req.CounterpartyID, paymentdomain.ErrInvalidCounterparty)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if req.PaidAt.IsZero() {
		return nil, paymentdomain.ErrInvalidPaidAt
	}

	payment := &paymentdomain.Payment{
		Direction:        direction,
		CounterpartyType: counterpartyType,
		CounterpartyID:   counterpartyID,
		Amount:           req.Amount.Round(2),
		PaidAt:           req.PaidAt.UTC(),
		Remark:           strings.TrimSpace(req.Remark),
	}

	invoiceRef := strings.TrimSpace(req.InvoiceID)
	supplierRef := strings.TrimSpace(req.SupplierInvoiceID)
	if invoiceRef != "" && supplierRef != "" {
		return nil, paymentdomain.ErrMultipleInvoicesLinked
	}
	var l link
	switch {
	case invoiceRef != "":
		if direction != paymentdomain.DirectionReceipt {
			return nil, paymentdomain.ErrInvoiceSideMismatch
		}
		id, err := parseID(invoiceRef, paymentdomain.ErrInvalidInvoice)
		if err != nil {
			return nil, err
		}
		l = link{side: invoicedomain.SideCustomer, id: id}
		payment.InvoiceID = &id
	case supplierRef != "":
		if direction != paymentdomain.DirectionDisbursement {
			return nil, paymentdomain.ErrInvoiceSideMismatch
		}
		id, err := parseID(supplierRef, paymentdomain.ErrInvalidInvoice)
		if err != nil {
			return nil, err
		}
		l = link{side: invoicedomain.SideSupplier, id: id}
		payment.SupplierInvoiceID = &id
	default:
		return payment, nil
	}

	billed, ok, err := s.invoices.Exists(ctx, l.side, l.id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, paymentdomain.ErrInvoiceNotFound
	}
	if billed != counterpartyID {
		return nil, paymentdomain.ErrCounterpartyMismatch
	}
	return payment, nil
}

func parseID(value string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

func toResponse(p *paymentdomain.Payment) *paymentdomain.Response {
	resp := &paymentdomain.Response{
		ID:               p.ID.String(),
		Direction:        p.Direction,
		CounterpartyType: string(p.CounterpartyType),
		CounterpartyID:   p.CounterpartyID.String(),
		Amount:           p.Amount.StringFixed(2),
		PaidAt:           p.PaidAt,
		Remark:           p.Remark,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
	if p.InvoiceID != nil {
		resp.InvoiceID = p.InvoiceID.String()
	}
	if p.SupplierInvoiceID != nil {
		resp.SupplierInvoiceID = p.SupplierInvoiceID.String()
	}
	return resp
}
