package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	"github.com/railzwaylabs/cargoledger/internal/config"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/cargoledger/internal/customer/repository"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	"github.com/railzwaylabs/cargoledger/internal/invoice/render"
	invoicerepo "github.com/railzwaylabs/cargoledger/internal/invoice/repository"
	invoiceservice "github.com/railzwaylabs/cargoledger/internal/invoice/service"
	jobdomain "github.com/railzwaylabs/cargoledger/internal/job/domain"
	jobrepo "github.com/railzwaylabs/cargoledger/internal/job/repository"
	"github.com/railzwaylabs/cargoledger/internal/job/runner"
	jobservice "github.com/railzwaylabs/cargoledger/internal/job/service"
	"github.com/railzwaylabs/cargoledger/internal/lock"
	paymentdomain "github.com/railzwaylabs/cargoledger/internal/payment/domain"
	paymentrepo "github.com/railzwaylabs/cargoledger/internal/payment/repository"
	paymentservice "github.com/railzwaylabs/cargoledger/internal/payment/service"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	productrepo "github.com/railzwaylabs/cargoledger/internal/product/repository"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	quoterepo "github.com/railzwaylabs/cargoledger/internal/quote/repository"
	quoteservice "github.com/railzwaylabs/cargoledger/internal/quote/service"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	recomputeservice "github.com/railzwaylabs/cargoledger/internal/recompute/service"
	supplierdomain "github.com/railzwaylabs/cargoledger/internal/supplier/domain"
	supplierrepo "github.com/railzwaylabs/cargoledger/internal/supplier/repository"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	waybillrepo "github.com/railzwaylabs/cargoledger/internal/waybill/repository"
	waybillservice "github.com/railzwaylabs/cargoledger/internal/waybill/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	customerID = snowflake.ID(1001)
	supplierID = snowflake.ID(2001)
	productID  = snowflake.ID(3001)
)

type engine struct {
	db       *gorm.DB
	docsDir  string
	quotes   quotedomain.Service
	waybills waybilldomain.Service
	invoices invoicedomain.Service
	payments paymentdomain.Service
	jobs     jobdomain.Service
	runner   *runner.Runner
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&productdomain.Product{},
		&customerdomain.Customer{},
		&supplierdomain.Supplier{},
		&quotedomain.RateSchedule{},
		&quotedomain.Tier{},
		&waybilldomain.Waybill{},
		&invoicedomain.Invoice{},
		&invoicedomain.SupplierInvoice{},
		&paymentdomain.Payment{},
		&jobdomain.Job{},
	))

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&productdomain.Product{
		ID: productID, Name: "US Express", FeeTypes: feetype.NewSet(feetype.FirstLeg, feetype.DifferentialLine), CreatedAt: created,
	}).Error)
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: customerID, ShortName: "Acme Trading", FullName: "Acme Trading Ltd", Categories: feetype.NewSet(feetype.All...), CreatedAt: created,
	}).Error)
	require.NoError(t, db.Create(&supplierdomain.Supplier{
		ID: supplierID, ShortName: "Fastline", FullName: "Fastline Air Cargo", CreatedAt: created,
	}).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	clk := clock.NewFixed(time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
	locker := lock.NewLocalLocker()
	docsDir := t.TempDir()
	cfg := config.Config{
		Recompute: config.RecomputeConfig{Concurrency: 2, BatchSize: 2},
		Jobs:      config.JobsConfig{Workers: 1, Timeout: time.Minute},
		Documents: config.DocumentsConfig{Dir: docsDir},
	}

	qRepo := quoterepo.Provide()
	wRepo := waybillrepo.Provide()
	pRepo := productrepo.Provide()
	cRepo := customerrepo.Provide()
	sRepo := supplierrepo.Provide()

	quotes := quoteservice.New(quoteservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: qRepo, CustomerRepo: cRepo, SupplierRepo: sRepo, ProductRepo: pRepo,
	})
	waybills := waybillservice.New(waybillservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: wRepo, ProductRepo: pRepo,
	})
	rater := ratingservice.New(ratingservice.Params{
		DB: db, Log: log, QuoteRepo: qRepo, ProductRepo: pRepo, CustomerRepo: cRepo,
	})
	recompute := recomputeservice.New(recomputeservice.Params{
		DB: db, Log: log, Clock: clk, Config: cfg, Repo: wRepo, Rating: rater, Locker: locker,
	})
	docs, err := render.NewPDFGenerator(cfg, log)
	require.NoError(t, err)
	invoices := invoiceservice.New(invoiceservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: invoicerepo.Provide(), WaybillRepo: wRepo,
		CustomerRepo: cRepo, SupplierRepo: sRepo, ProductRepo: pRepo,
		Docs: docs, Locker: locker,
	})
	payments := paymentservice.New(paymentservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: paymentrepo.Provide(), Invoices: invoices,
	})

	handlers := runner.NewHandlers(runner.HandlerParams{Recompute: recompute, Invoices: invoices})
	jRepo := jobrepo.Provide()
	r := runner.New(runner.Params{DB: db, Log: log, Clock: clk, Config: cfg, Repo: jRepo, Handlers: handlers})
	jobs := jobservice.New(jobservice.Params{DB: db, Log: log, Clock: clk, Repo: jRepo, Handlers: handlers})

	return &engine{
		db: db, docsDir: docsDir,
		quotes: quotes, waybills: waybills, invoices: invoices, payments: payments,
		jobs: jobs, runner: r,
	}
}

// runJob submits a job and executes it on the calling goroutine.
func (e *engine) runJob(t *testing.T, kind jobdomain.Kind, payload any, key string) *jobdomain.Response {
	t.Helper()
	ctx := context.Background()

	submitted, created, err := e.jobs.Submit(ctx, jobdomain.SubmitRequest{Kind: kind, Payload: payload, IdempotencyKey: key})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, jobdomain.StatusPending, submitted.Status)

	e.runner.Execute(ctx, uuid.MustParse(submitted.ID), 0)

	done, err := e.jobs.Get(ctx, submitted.ID)
	require.NoError(t, err)
	require.Equal(t, jobdomain.StatusSucceeded, done.Status, done.Message)
	return done
}

func TestQuoteToPaymentCriticalPath(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	validFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	validTo := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	// 1. Rate schedules
	_, err := e.quotes.Create(ctx, quotedomain.UpsertRequest{
		Name: "acme first leg 2026", Side: "customer", CounterpartyID: customerID.String(),
		FeeType: "first_leg", ProductIDs: []string{productID.String()},
		ValidFrom: validFrom, ValidTo: validTo, RatePerKg: dec("12.50"),
	})
	require.NoError(t, err)
	_, err = e.quotes.Create(ctx, quotedomain.UpsertRequest{
		Name: "fastline linehaul 2026", Side: "supplier", CounterpartyID: supplierID.String(),
		FeeType: "differential_line", ProductIDs: []string{productID.String()},
		ValidFrom: validFrom, ValidTo: validTo, MinWeight: dec("0.5"),
		Tiers: []quotedomain.TierInput{
			{Start: dec("0"), End: dec("1"), RatePerKg: dec("5.0"), RatePerPiece: dec("2.0")},
			{Start: dec("1"), End: dec("5"), RatePerKg: dec("4.0"), RatePerPiece: dec("2.0")},
		},
	})
	require.NoError(t, err)

	// 2. Waybills for March plus one in April
	march := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	for _, wb := range []struct {
		orderNo string
		at      time.Time
		weight  string
	}{
		{"CL-0001", march, "3.2"},
		{"CL-0002", march.Add(48 * time.Hour), "2.0"},
		{"CL-0003", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), "1.0"},
	} {
		_, err := e.waybills.Create(ctx, waybilldomain.CreateRequest{
			OrderNo: wb.orderNo, OrderTime: wb.at, Weight: dec(wb.weight), Pieces: 1,
			ProductID:          productID.String(),
			FirstLegCustomerID: customerID.String(),
			SupplierID:         supplierID.String(),
		})
		require.NoError(t, err)
	}

	// 3. Recompute through the job pipeline
	recomputed := e.runJob(t, jobdomain.KindRecompute, recomputedomain.Request{}, "recompute-2026-03")
	var result recomputedomain.Result
	require.NoError(t, json.Unmarshal(recomputed.Result, &result))
	assert.Equal(t, 3, result.MatchedCount)
	assert.Equal(t, 3, result.UpdatedCount)
	assert.Zero(t, result.ErrorCount)

	again := e.runJob(t, jobdomain.KindRecompute, recomputedomain.Request{}, "recompute-2026-03-again")
	require.NoError(t, json.Unmarshal(again.Result, &result))
	assert.Equal(t, 3, result.UnchangedCount)
	assert.Zero(t, result.UpdatedCount)

	// 4. Invoice generation for March
	generated := e.runJob(t, jobdomain.KindGenerateInvoices, invoicedomain.GenerateRequest{Period: "2026-03"}, "")
	var gen invoicedomain.GenerateResult
	require.NoError(t, json.Unmarshal(generated.Result, &gen))
	assert.Equal(t, 2, gen.Created)
	assert.Empty(t, gen.Skipped)

	customerInvoices, err := e.invoices.List(ctx, invoicedomain.ListRequest{CounterpartyID: customerID.String()})
	require.NoError(t, err)
	require.Len(t, customerInvoices.Invoices, 1)
	inv := customerInvoices.Invoices[0]
	assert.Equal(t, "first_leg", inv.FeeType)
	assert.Equal(t, "65.00", inv.Amount)
	assert.Equal(t, 2, inv.ShipmentCount)
	assert.False(t, inv.Paid)
	require.NotEmpty(t, inv.DocumentRef)
	_, err = os.Stat(filepath.Join(e.docsDir, inv.DocumentRef))
	require.NoError(t, err)

	supplierInvoices, err := e.invoices.ListSupplier(ctx, invoicedomain.ListRequest{CounterpartyID: supplierID.String()})
	require.NoError(t, err)
	require.Len(t, supplierInvoices.Invoices, 1)
	assert.Equal(t, "24.80", supplierInvoices.Invoices[0].Amount)

	// 5. Payment linkage toggles the paid flag
	payment, err := e.payments.Create(ctx, paymentdomain.Request{
		Direction: "receipt", CounterpartyType: "customer", CounterpartyID: customerID.String(),
		Amount: dec("65.00"), PaidAt: time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC), InvoiceID: inv.ID,
	})
	require.NoError(t, err)

	paid, err := e.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, paid.Paid)

	require.NoError(t, e.payments.Delete(ctx, payment.ID))
	unpaid, err := e.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.False(t, unpaid.Paid)

	// 6. Regenerating keeps identity and replaces the document
	e.runJob(t, jobdomain.KindGenerateInvoices, invoicedomain.GenerateRequest{Period: "2026-03", Side: "customer"}, "")
	regenerated, err := e.invoices.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "65.00", regenerated.Amount)
	assert.NotEqual(t, inv.DocumentRef, regenerated.DocumentRef)
	_, err = os.Stat(filepath.Join(e.docsDir, inv.DocumentRef))
	assert.True(t, os.IsNotExist(err))

	// 7. Deleting is idempotent and removes the document
	require.NoError(t, e.invoices.Delete(ctx, inv.ID))
	require.NoError(t, e.invoices.Delete(ctx, inv.ID))
	_, err = os.Stat(filepath.Join(e.docsDir, regenerated.DocumentRef))
	assert.True(t, os.IsNotExist(err))
}
