package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/cargoledger/internal/customer/repository"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	productrepo "github.com/railzwaylabs/cargoledger/internal/product/repository"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	quoterepo "github.com/railzwaylabs/cargoledger/internal/quote/repository"
	supplierdomain "github.com/railzwaylabs/cargoledger/internal/supplier/domain"
	supplierrepo "github.com/railzwaylabs/cargoledger/internal/supplier/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc      quotedomain.Service
	db       *gorm.DB
	customer snowflake.ID
	supplier snowflake.ID
	product  snowflake.ID
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&supplierdomain.Supplier{},
		&productdomain.Product{},
		&quotedomain.RateSchedule{},
		&quotedomain.Tier{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := fixture{db: db, customer: node.Generate(), supplier: node.Generate(), product: node.Generate()}
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: f.customer, ShortName: "acme", FullName: "ACME Trading",
		Categories: feetype.NewSet(feetype.FirstLeg, feetype.DifferentialLine), CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&supplierdomain.Supplier{
		ID: f.supplier, ShortName: "fastline", FullName: "Fastline Logistics", CreatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&productdomain.Product{
		ID: f.product, Name: "US Express", FeeTypes: feetype.NewSet(feetype.FirstLeg, feetype.DifferentialLine), CreatedAt: now,
	}).Error)

	f.svc = New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.NewFixed(now),
		Repo:         quoterepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
		SupplierRepo: supplierrepo.Provide(),
		ProductRepo:  productrepo.Provide(),
	})
	return f
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func supplierRequest(f fixture, name string) quotedomain.UpsertRequest {
	return quotedomain.UpsertRequest{
		Name:           name,
		Side:           "supplier",
		CounterpartyID: f.supplier.String(),
		FeeType:        "differential_line",
		ProductIDs:     []string{f.product.String()},
		ValidFrom:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:        time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC),
		MinWeight:      dec("0.5"),
		Tiers: []quotedomain.TierInput{
			{Start: dec("1"), End: dec("5"), RatePerKg: dec("4.0"), RatePerPiece: dec("2.0")},
			{Start: dec("0"), End: dec("1"), RatePerKg: dec("5.0"), RatePerPiece: dec("2.0")},
		},
	}
}

func TestCreateSupplierScheduleStoresOrderedTiers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, supplierRequest(f, "Fastline 2026"))
	require.NoError(t, err)
	require.Len(t, created.Tiers, 2)
	assert.Equal(t, "0", created.Tiers[0].Start)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Tiers, 2)
	assert.Equal(t, "1", got.Tiers[0].End)
	assert.Equal(t, "5", got.Tiers[1].End)
	assert.Equal(t, "0.5", got.MinWeight)
}

func TestCreateRejectsInvalidConfiguration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := supplierRequest(f, "Broken tiers")
	req.Tiers[0].Start = dec("2")
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, quotedomain.ErrTiersNotContiguous)
	assert.ErrorIs(t, err, quotedomain.ErrInvalidConfiguration)

	req = supplierRequest(f, "Unknown product")
	req.ProductIDs = []string{"12345"}
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, quotedomain.ErrUnknownProduct)

	req = supplierRequest(f, "Customer as supplier")
	req.CounterpartyID = f.customer.String()
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, quotedomain.ErrUnknownCounterparty)

	var count int64
	require.NoError(t, f.db.Model(&quotedomain.RateSchedule{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, supplierRequest(f, "Fastline 2026"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, supplierRequest(f, "Fastline 2026"))
	assert.ErrorIs(t, err, quotedomain.ErrDuplicateName)
}

func TestCreateAllowsOverlappingWindows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	req := quotedomain.UpsertRequest{
		Name:           "ACME first leg",
		Side:           "customer",
		CounterpartyID: f.customer.String(),
		FeeType:        "first_leg",
		ProductIDs:     []string{f.product.String()},
		ValidFrom:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		ValidTo:        time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		RatePerKg:      dec("12.50"),
	}
	_, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	req.Name = "ACME first leg summer"
	req.ValidFrom = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	req.RatePerKg = dec("11")
	_, err = f.svc.Create(ctx, req)
	require.NoError(t, err)

	activeAt := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	list, err := f.svc.List(ctx, quotedomain.ListRequest{Side: "customer", ActiveAt: &activeAt})
	require.NoError(t, err)
	assert.Len(t, list.Schedules, 2)
}

func TestUpdateReplacesTiersWholesale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, supplierRequest(f, "Fastline 2026"))
	require.NoError(t, err)

	req := supplierRequest(f, "Fastline 2026")
	req.Tiers = []quotedomain.TierInput{{Start: dec("0"), End: dec("30"), RatePerKg: dec("3.5")}}
	updated, err := f.svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)

	var tiers []quotedomain.Tier
	require.NoError(t, f.db.Where("schedule_id = ?", created.ID).Find(&tiers).Error)
	require.Len(t, tiers, 1)
	assert.True(t, tiers[0].End.Equal(dec("30")))
}

func TestDeleteAndNotFound(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, supplierRequest(f, "Fastline 2026"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))
	assert.ErrorIs(t, f.svc.Delete(ctx, created.ID), quotedomain.ErrNotFound)

	_, err = f.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, quotedomain.ErrNotFound)

	_, err = f.svc.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, quotedomain.ErrInvalidID)
}
