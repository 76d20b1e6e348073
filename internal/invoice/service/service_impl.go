package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	"github.com/railzwaylabs/cargoledger/internal/lock"
	"github.com/railzwaylabs/cargoledger/internal/observability"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	supplierdomain "github.com/railzwaylabs/cargoledger/internal/supplier/domain"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         invoicedomain.Repository
	WaybillRepo  waybilldomain.Repository
	CustomerRepo customerdomain.Repository
	SupplierRepo supplierdomain.Repository
	ProductRepo  productdomain.Repository
	Docs         invoicedomain.DocumentGenerator
	Locker       lock.Locker
	Metrics      *observability.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         invoicedomain.Repository
	waybillRepo  waybilldomain.Repository
	customerRepo customerdomain.Repository
	supplierRepo supplierdomain.Repository
	productRepo  productdomain.Repository
	docs         invoicedomain.DocumentGenerator
	locker       lock.Locker
	metrics      *observability.Metrics
}

func New(p Params) invoicedomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		waybillRepo:  p.WaybillRepo,
		customerRepo: p.CustomerRepo,
		supplierRepo: p.SupplierRepo,
		productRepo:  p.ProductRepo,
		docs:         p.Docs,
		locker:       p.Locker,
		metrics:      p.Metrics,
	}
}

// bucket accumulates the computed amounts billed to one counterparty.
type bucket struct {
	counterpartyID snowflake.ID
	amount         decimal.Decimal
	lines          []invoicedomain.LineItem
}

func (b *bucket) add(w *waybilldomain.Waybill, amount decimal.Decimal, productName string) {
	b.amount = b.amount.Add(amount)
	b.lines = append(b.lines, invoicedomain.LineItem{
		WaybillID:   w.ID.String(),
		OrderNo:     w.OrderNo,
		TransferNo:  w.TransferNo,
		OrderTime:   w.OrderTime.UTC(),
		ProductName: productName,
		Weight:      w.Weight.StringFixed(3),
		Pieces:      w.Pieces,
		Amount:      amount.StringFixed(2),
	})
}

// collation is the grouped view of one side's waybills for a period.
type collation struct {
	buckets map[snowflake.ID]*bucket
	skipped []invoicedomain.SkipEntry
}

func (c *collation) sorted() []*bucket {
	out := make([]*bucket, 0, len(c.buckets))
	for _, b := range c.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].counterpartyID < out[j].counterpartyID })
	return out
}

// GenerateInvoices upserts one invoice per (customer, fee type) and one per
// supplier for the period. Waybills without a computed amount and
// counterparties whose document could not be produced are reported as
// skipped; they never fail the run.
func (s *Service) GenerateInvoices(ctx context.Context, req invoicedomain.GenerateRequest) (*invoicedomain.GenerateResult, error) {
	scope, err := req.Scope()
	if err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("cargoledger/invoice").Start(ctx, "invoice.GenerateInvoices")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice.period", string(scope.Period)),
		attribute.String("invoice.side", string(scope.Side)),
	)

	products, err := s.productIndex(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &invoicedomain.GenerateResult{Skipped: []invoicedomain.SkipEntry{}}
	if scope.Includes(invoicedomain.SideCustomer) {
		for _, ft := range scope.FeeTypes.Types() {
			if err := s.generateCustomer(ctx, scope, ft, products, result); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
		}
	}
	if scope.Includes(invoicedomain.SideSupplier) {
		if err := s.generateSupplier(ctx, scope, products, result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	span.SetAttributes(
		attribute.Int("invoice.created", result.Created),
		attribute.Int("invoice.updated", result.Updated),
		attribute.Int("invoice.skipped", len(result.Skipped)),
	)
	s.log.Info("invoices generated",
		zap.String("period", string(scope.Period)),
		zap.String("side", string(scope.Side)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func (s *Service) generateCustomer(ctx context.Context, scope invoicedomain.Scope, ft feetype.FeeType, products map[snowflake.ID]productdomain.Product, result *invoicedomain.GenerateResult) error {
	col, err := s.collateCustomer(ctx, scope.Period, ft, scope.CounterpartyIDs, products)
	if err != nil {
		return err
	}
	result.Skipped = append(result.Skipped, col.skipped...)

	buckets := col.sorted()
	names, err := s.customerNames(ctx, bucketIDs(buckets))
	if err != nil {
		return err
	}
	for _, b := range buckets {
		_, created, err := s.upsertCustomer(ctx, scope.Period, ft, b, names[b.counterpartyID], 0)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Skipped = append(result.Skipped, s.failure(invoicedomain.SideCustomer, b.counterpartyID, ft, err))
			continue
		}
		tally(result, created)
		s.metrics.InvoiceUpsert(string(invoicedomain.SideCustomer), outcome(created))
	}
	return nil
}

func (s *Service) generateSupplier(ctx context.Context, scope invoicedomain.Scope, products map[snowflake.ID]productdomain.Product, result *invoicedomain.GenerateResult) error {
	col, err := s.collateSupplier(ctx, scope.Period, scope.CounterpartyIDs, products)
	if err != nil {
		return err
	}
	result.Skipped = append(result.Skipped, col.skipped...)

	buckets := col.sorted()
	names, err := s.supplierNames(ctx, bucketIDs(buckets))
	if err != nil {
		return err
	}
	for _, b := range buckets {
		_, created, err := s.upsertSupplier(ctx, scope.Period, b, names[b.counterpartyID], 0)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Skipped = append(result.Skipped, s.failure(invoicedomain.SideSupplier, b.counterpartyID, "", err))
			continue
		}
		tally(result, created)
		s.metrics.InvoiceUpsert(string(invoicedomain.SideSupplier), outcome(created))
	}
	return nil
}

func (s *Service) failure(side invoicedomain.Side, counterpartyID snowflake.ID, ft feetype.FeeType, err error) invoicedomain.SkipEntry {
	reason := invoicedomain.ReasonPersistFailed
	if errors.Is(err, invoicedomain.ErrDocumentFailure) {
		reason = invoicedomain.ReasonDocumentFailed
	}
	s.metrics.InvoiceUpsert(string(side), outcomeFailed)
	s.log.Warn("invoice skipped",
		zap.String("side", string(side)),
		zap.String("counterparty_id", counterpartyID.String()),
		zap.String("fee_type", string(ft)),
		zap.Error(err),
	)
	return invoicedomain.SkipEntry{
		Side:           side,
		CounterpartyID: counterpartyID.String(),
		FeeType:        string(ft),
		Reason:         reason,
	}
}

func (s *Service) collateCustomer(ctx context.Context, period invoicedomain.Period, ft feetype.FeeType, counterparties []snowflake.ID, products map[snowflake.ID]productdomain.Product) (*collation, error) {
	from, to := period.Bounds()
	waybills, err := s.waybillRepo.ListForPeriod(ctx, s.db, waybilldomain.PeriodQuery{
		From:            from,
		To:              to,
		CustomerColumn:  waybilldomain.CustomerColumn(ft),
		CounterpartyIDs: counterparties,
	})
	if err != nil {
		return nil, fmt.Errorf("list waybills: %w", err)
	}

	component := ratingdomain.CustomerComponent(ft)
	col := &collation{buckets: map[snowflake.ID]*bucket{}}
	for i := range waybills {
		w := &waybills[i]
		customerID := w.CustomerFor(ft)
		fee := w.Fee(component)
		if !fee.Valid {
			// a product outside the fee type never carries the fee
			if p, ok := products[w.ProductID]; ok && !p.Participates(ft) {
				continue
			}
			col.skipped = append(col.skipped, invoicedomain.SkipEntry{
				WaybillID:      w.ID.String(),
				Side:           invoicedomain.SideCustomer,
				CounterpartyID: customerID.String(),
				FeeType:        string(ft),
				Reason:         invoicedomain.ReasonFeeNotComputed,
			})
			s.metrics.InvoiceUpsert(string(invoicedomain.SideCustomer), outcomeSkipped)
			continue
		}
		b, ok := col.buckets[customerID]
		if !ok {
			b = &bucket{counterpartyID: customerID}
			col.buckets[customerID] = b
		}
		b.add(w, fee.Decimal, products[w.ProductID].Name)
	}
	return col, nil
}

func (s *Service) collateSupplier(ctx context.Context, period invoicedomain.Period, counterparties []snowflake.ID, products map[snowflake.ID]productdomain.Product) (*collation, error) {
	from, to := period.Bounds()
	waybills, err := s.waybillRepo.ListForPeriod(ctx, s.db, waybilldomain.PeriodQuery{
		From:            from,
		To:              to,
		CounterpartyIDs: counterparties,
		Supplier:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("list waybills: %w", err)
	}

	col := &collation{buckets: map[snowflake.ID]*bucket{}}
	for i := range waybills {
		w := &waybills[i]
		if w.SupplierID == nil {
			continue
		}
		supplierID := *w.SupplierID
		cost := w.Fee(ratingdomain.ComponentSupplierCost)
		if !cost.Valid {
			col.skipped = append(col.skipped, invoicedomain.SkipEntry{
				WaybillID:      w.ID.String(),
				Side:           invoicedomain.SideSupplier,
				CounterpartyID: supplierID.String(),
				Reason:         invoicedomain.ReasonFeeNotComputed,
			})
			s.metrics.InvoiceUpsert(string(invoicedomain.SideSupplier), outcomeSkipped)
			continue
		}
		b, ok := col.buckets[supplierID]
		if !ok {
			b = &bucket{counterpartyID: supplierID}
			col.buckets[supplierID] = b
		}
		b.add(w, cost.Decimal, products[w.ProductID].Name)
	}
	return col, nil
}

// upsertCustomer renders the document first and only then writes the row, so
// a failed render leaves the previous invoice untouched. A non-zero expect
// requires that invoice to still hold the key once the lock is taken.
func (s *Service) upsertCustomer(ctx context.Context, period invoicedomain.Period, ft feetype.FeeType, b *bucket, name string, expect snowflake.ID) (*invoicedomain.Invoice, bool, error) {
	release, err := s.locker.Acquire(ctx, lock.InvoiceKey(string(invoicedomain.SideCustomer), b.counterpartyID.String(), string(ft), string(period)))
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.repo.FindInvoiceByKey(ctx, s.db, b.counterpartyID, ft, period)
	if err != nil {
		return nil, false, err
	}
	if expect != 0 && (existing == nil || existing.ID != expect) {
		return nil, false, invoicedomain.ErrNotFound
	}
	now := s.clock.Now(ctx)
	inv := &invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		CustomerID:    b.counterpartyID,
		FeeType:       ft,
		Period:        period,
		Amount:        b.amount.Round(2),
		ShipmentCount: len(b.lines),
		LineItems:     b.lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		inv.ID = existing.ID
		inv.Paid = existing.Paid
		inv.CreatedAt = existing.CreatedAt
	}

	ref, err := s.docs.Generate(ctx, invoicedomain.Document{
		Side:             invoicedomain.SideCustomer,
		InvoiceID:        inv.ID,
		CounterpartyID:   b.counterpartyID,
		CounterpartyName: name,
		FeeType:          ft,
		Period:           period,
		Amount:           inv.Amount,
		Lines:            b.lines,
		IssuedAt:         now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", invoicedomain.ErrDocumentFailure, err)
	}
	inv.DocumentRef = ref

	if err := s.repo.UpsertInvoice(ctx, s.db, inv); err != nil {
		s.removeDocument(ctx, ref)
		return nil, false, err
	}
	if existing != nil && existing.DocumentRef != "" && existing.DocumentRef != ref {
		s.removeDocument(ctx, existing.DocumentRef)
	}

	stored, err := s.repo.FindInvoiceByKey(ctx, s.db, b.counterpartyID, ft, period)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, invoicedomain.ErrNotFound
	}
	return stored, existing == nil, nil
}

func (s *Service) upsertSupplier(ctx context.Context, period invoicedomain.Period, b *bucket, name string, expect snowflake.ID) (*invoicedomain.SupplierInvoice, bool, error) {
	release, err := s.locker.Acquire(ctx, lock.InvoiceKey(string(invoicedomain.SideSupplier), b.counterpartyID.String(), string(period)))
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.repo.FindSupplierInvoiceByKey(ctx, s.db, b.counterpartyID, period)
	if err != nil {
		return nil, false, err
	}
	if expect != 0 && (existing == nil || existing.ID != expect) {
		return nil, false, invoicedomain.ErrNotFound
	}
	now := s.clock.Now(ctx)
	inv := &invoicedomain.SupplierInvoice{
		ID:            s.genID.Generate(),
		SupplierID:    b.counterpartyID,
		Period:        period,
		Amount:        b.amount.Round(2),
		ShipmentCount: len(b.lines),
		LineItems:     b.lines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if existing != nil {
		inv.ID = existing.ID
		inv.Paid = existing.Paid
		inv.CreatedAt = existing.CreatedAt
	}

	ref, err := s.docs.Generate(ctx, invoicedomain.Document{
		Side:             invoicedomain.SideSupplier,
		InvoiceID:        inv.ID,
		CounterpartyID:   b.counterpartyID,
		CounterpartyName: name,
		Period:           period,
		Amount:           inv.Amount,
		Lines:            b.lines,
		IssuedAt:         now,
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", invoicedomain.ErrDocumentFailure, err)
	}
	inv.DocumentRef = ref

	if err := s.repo.UpsertSupplierInvoice(ctx, s.db, inv); err != nil {
		s.removeDocument(ctx, ref)
		return nil, false, err
	}
	if existing != nil && existing.DocumentRef != "" && existing.DocumentRef != ref {
		s.removeDocument(ctx, existing.DocumentRef)
	}

	stored, err := s.repo.FindSupplierInvoiceByKey(ctx, s.db, b.counterpartyID, period)
	if err != nil {
		return nil, false, err
	}
	if stored == nil {
		return nil, false, invoicedomain.ErrNotFound
	}
	return stored, existing == nil, nil
}

func (s *Service) removeDocument(ctx context.Context, ref string) {
	if err := s.docs.Remove(ctx, ref); err != nil {
		s.log.Warn("remove invoice document failed", zap.String("document_ref", ref), zap.Error(err))
	}
}

// Recalculate rebuilds one customer invoice from the current waybill fees.
// An invoice whose waybills no longer carry amounts drops to zero.
func (s *Service) Recalculate(ctx context.Context, id string) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}

	products, err := s.productIndex(ctx)
	if err != nil {
		return nil, err
	}
	col, err := s.collateCustomer(ctx, inv.Period, inv.FeeType, []snowflake.ID{inv.CustomerID}, products)
	if err != nil {
		return nil, err
	}
	b := col.buckets[inv.CustomerID]
	if b == nil {
		b = &bucket{counterpartyID: inv.CustomerID}
	}
	names, err := s.customerNames(ctx, []snowflake.ID{inv.CustomerID})
	if err != nil {
		return nil, err
	}

	stored, _, err := s.upsertCustomer(ctx, inv.Period, inv.FeeType, b, names[inv.CustomerID], inv.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.InvoiceUpsert(string(invoicedomain.SideCustomer), outcomeUpdated)
	return customerResponse(stored), nil
}

func (s *Service) RecalculateSupplier(ctx context.Context, id string) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.FindSupplierInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}

	products, err := s.productIndex(ctx)
	if err != nil {
		return nil, err
	}
	col, err := s.collateSupplier(ctx, inv.Period, []snowflake.ID{inv.SupplierID}, products)
	if err != nil {
		return nil, err
	}
	b := col.buckets[inv.SupplierID]
	if b == nil {
		b = &bucket{counterpartyID: inv.SupplierID}
	}
	names, err := s.supplierNames(ctx, []snowflake.ID{inv.SupplierID})
	if err != nil {
		return nil, err
	}

	stored, _, err := s.upsertSupplier(ctx, inv.Period, b, names[inv.SupplierID], inv.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.InvoiceUpsert(string(invoicedomain.SideSupplier), outcomeUpdated)
	return supplierResponse(stored), nil
}

// Delete removes the invoice, unlinks its payments and drops its document.
// Deleting a missing invoice succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}
	inv, err := s.repo.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil || inv == nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.InvoiceKey(string(invoicedomain.SideCustomer), inv.CustomerID.String(), string(inv.FeeType), string(inv.Period)))
	if err != nil {
		return err
	}
	defer release()

	if err := s.deleteLinked(ctx, invoicedomain.SideCustomer, inv.ID, func(tx *gorm.DB) (bool, error) {
		return s.repo.DeleteInvoice(ctx, tx, inv.ID)
	}); err != nil {
		return err
	}
	if inv.DocumentRef != "" {
		s.removeDocument(ctx, inv.DocumentRef)
	}
	s.log.Info("invoice deleted", zap.String("invoice_id", inv.ID.String()))
	return nil
}

func (s *Service) DeleteSupplier(ctx context.Context, id string) error {
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}
	inv, err := s.repo.FindSupplierInvoiceByID(ctx, s.db, invoiceID)
	if err != nil || inv == nil {
		return err
	}

	release, err := s.locker.Acquire(ctx, lock.InvoiceKey(string(invoicedomain.SideSupplier), inv.SupplierID.String(), string(inv.Period)))
	if err != nil {
		return err
	}
	defer release()

	if err := s.deleteLinked(ctx, invoicedomain.SideSupplier, inv.ID, func(tx *gorm.DB) (bool, error) {
		return s.repo.DeleteSupplierInvoice(ctx, tx, inv.ID)
	}); err != nil {
		return err
	}
	if inv.DocumentRef != "" {
		s.removeDocument(ctx, inv.DocumentRef)
	}
	s.log.Info("supplier invoice deleted", zap.String("invoice_id", inv.ID.String()))
	return nil
}

func (s *Service) deleteLinked(ctx context.Context, side invoicedomain.Side, id snowflake.ID, remove func(tx *gorm.DB) (bool, error)) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UnlinkPayments(ctx, tx, side, id); err != nil {
			return err
		}
		_, err := remove(tx)
		return err
	})
}

func (s *Service) SetPaid(ctx context.Context, id string, paid bool) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.SetPaid(ctx, s.db, invoicedomain.SideCustomer, invoiceID, paid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *Service) SetSupplierPaid(ctx context.Context, id string, paid bool) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.SetPaid(ctx, s.db, invoicedomain.SideSupplier, invoiceID, paid)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, invoicedomain.ErrNotFound
	}
	return s.GetSupplier(ctx, id)
}

func (s *Service) SyncPaid(ctx context.Context, side invoicedomain.Side, id snowflake.ID) error {
	return s.repo.SyncPaid(ctx, s.db, side, id)
}

func (s *Service) Exists(ctx context.Context, side invoicedomain.Side, id snowflake.ID) (snowflake.ID, bool, error) {
	switch side {
	case invoicedomain.SideCustomer:
		inv, err := s.repo.FindInvoiceByID(ctx, s.db, id)
		if err != nil || inv == nil {
			return 0, false, err
		}
		return inv.CustomerID, true, nil
	case invoicedomain.SideSupplier:
		inv, err := s.repo.FindSupplierInvoiceByID(ctx, s.db, id)
		if err != nil || inv == nil {
			return 0, false, err
		}
		return inv.SupplierID, true, nil
	default:
		return 0, false, invoicedomain.ErrInvalidSide
	}
}

func (s *Service) Get(ctx context.Context, id string) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.FindInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return customerResponse(inv), nil
}

func (s *Service) GetSupplier(ctx context.Context, id string) (*invoicedomain.Response, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	inv, err := s.repo.FindSupplierInvoiceByID(ctx, s.db, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, invoicedomain.ErrNotFound
	}
	return supplierResponse(inv), nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	filter, err := listFilter(req)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	items, err := s.repo.ListInvoices(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	items, info := pagination.Trim(items, req.Pagination.Size(), func(inv *invoicedomain.Invoice) pagination.Cursor {
		return cursorOf(inv.ID, inv.CreatedAt)
	})
	out := invoicedomain.ListResponse{Invoices: make([]invoicedomain.Response, 0, len(items)), PageInfo: info}
	for _, inv := range items {
		out.Invoices = append(out.Invoices, *customerResponse(inv))
	}
	return out, nil
}

func (s *Service) ListSupplier(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	if strings.TrimSpace(req.FeeType) != "" {
		return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidFeeType
	}
	filter, err := listFilter(req)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	items, err := s.repo.ListSupplierInvoices(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	items, info := pagination.Trim(items, req.Pagination.Size(), func(inv *invoicedomain.SupplierInvoice) pagination.Cursor {
		return cursorOf(inv.ID, inv.CreatedAt)
	})
	out := invoicedomain.ListResponse{Invoices: make([]invoicedomain.Response, 0, len(items)), PageInfo: info}
	for _, inv := range items {
		out.Invoices = append(out.Invoices, *supplierResponse(inv))
	}
	return out, nil
}

func listFilter(req invoicedomain.ListRequest) (invoicedomain.ListFilter, error) {
	filter := invoicedomain.ListFilter{Paid: req.Paid}
	if v := strings.TrimSpace(req.CounterpartyID); v != "" {
		id, err := parseID(v)
		if err != nil {
			return filter, err
		}
		filter.CounterpartyID = id
	}
	if v := strings.TrimSpace(req.FeeType); v != "" {
		ft, err := feetype.Parse(v)
		if err != nil {
			return filter, invoicedomain.ErrInvalidFeeType
		}
		filter.FeeType = ft
	}
	if v := strings.TrimSpace(req.Period); v != "" {
		period, err := invoicedomain.ParsePeriod(v)
		if err != nil {
			return filter, err
		}
		filter.Period = period
	}
	return filter, nil
}

func (s *Service) productIndex(ctx context.Context) (map[snowflake.ID]productdomain.Product, error) {
	products, err := s.productRepo.FindAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	index := make(map[snowflake.ID]productdomain.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index, nil
}

func (s *Service) customerNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	names := make(map[snowflake.ID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	customers, err := s.customerRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	for _, c := range customers {
		names[c.ID] = displayName(c.ShortName, c.FullName, c.ID)
	}
	return names, nil
}

func (s *Service) supplierNames(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]string, error) {
	names := make(map[snowflake.ID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	suppliers, err := s.supplierRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, fmt.Errorf("load suppliers: %w", err)
	}
	for _, sp := range suppliers {
		names[sp.ID] = displayName(sp.ShortName, sp.FullName, sp.ID)
	}
	return names, nil
}

func displayName(short, full string, id snowflake.ID) string {
	if v := strings.TrimSpace(short); v != "" {
		return v
	}
	if v := strings.TrimSpace(full); v != "" {
		return v
	}
	return id.String()
}

func bucketIDs(buckets []*bucket) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(buckets))
	for _, b := range buckets {
		ids = append(ids, b.counterpartyID)
	}
	return ids
}

func tally(result *invoicedomain.GenerateResult, created bool) {
	if created {
		result.Created++
		return
	}
	result.Updated++
}

func outcome(created bool) string {
	if created {
		return outcomeCreated
	}
	return outcomeUpdated
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, invoicedomain.ErrInvalidID
	}
	return id, nil
}

func cursorOf(id snowflake.ID, createdAt time.Time) pagination.Cursor {
	return pagination.Cursor{ID: id.String(), CreatedAt: createdAt.UTC().Format(time.RFC3339Nano)}
}

func customerResponse(inv *invoicedomain.Invoice) *invoicedomain.Response {
	return &invoicedomain.Response{
		ID:             inv.ID.String(),
		Side:           invoicedomain.SideCustomer,
		CounterpartyID: inv.CustomerID.String(),
		FeeType:        string(inv.FeeType),
		Period:         inv.Period,
		Amount:         inv.Amount.StringFixed(2),
		ShipmentCount:  inv.ShipmentCount,
		Paid:           inv.Paid,
		DocumentRef:    inv.DocumentRef,
		LineItems:      inv.LineItems,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func supplierResponse(inv *invoicedomain.SupplierInvoice) *invoicedomain.Response {
	return &invoicedomain.Response{
		ID:             inv.ID.String(),
		Side:           invoicedomain.SideSupplier,
		CounterpartyID: inv.SupplierID.String(),
		Period:         inv.Period,
		Amount:         inv.Amount.StringFixed(2),
		ShipmentCount:  inv.ShipmentCount,
		Paid:           inv.Paid,
		DocumentRef:    inv.DocumentRef,
		LineItems:      inv.LineItems,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}
