package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/railzwaylabs/cargoledger/internal/clock"
	"github.com/railzwaylabs/cargoledger/internal/config"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	customerrepo "github.com/railzwaylabs/cargoledger/internal/customer/repository"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/railzwaylabs/cargoledger/internal/lock"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	productrepo "github.com/railzwaylabs/cargoledger/internal/product/repository"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	quoterepo "github.com/railzwaylabs/cargoledger/internal/quote/repository"
	ratingservice "github.com/railzwaylabs/cargoledger/internal/rating/service"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	waybillrepo "github.com/railzwaylabs/cargoledger/internal/waybill/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	customerA = snowflake.ID(10)
	customerB = snowflake.ID(11)
	supplierS = snowflake.ID(20)
	productX  = snowflake.ID(100)
)

type fixture struct {
	db    *gorm.DB
	svc   recomputedomain.Service
	repo  waybilldomain.Repository
	clock *clock.Fixed
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ref(id snowflake.ID) *snowflake.ID { return &id }

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&productdomain.Product{},
		&quotedomain.RateSchedule{},
		&quotedomain.Tier{},
		&waybilldomain.Waybill{},
	))

	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: customerA, ShortName: "acme", FullName: "ACME", Categories: feetype.NewSet(feetype.All...), CreatedAt: created,
	}).Error)
	require.NoError(t, db.Create(&customerdomain.Customer{
		ID: customerB, ShortName: "globex", FullName: "Globex", Categories: feetype.NewSet(feetype.PerShipment), CreatedAt: created,
	}).Error)
	require.NoError(t, db.Create(&productdomain.Product{
		ID: productX, Name: "US Express", FeeTypes: feetype.NewSet(feetype.FirstLeg, feetype.DifferentialLine), CreatedAt: created,
	}).Error)

	products := datatypes.JSONSlice[int64]{int64(productX)}
	schedules := []*quotedomain.RateSchedule{
		{
			ID: 1, Name: "acme first leg", Side: quotedomain.SideCustomer, CounterpartyID: customerA,
			FeeType: feetype.FirstLeg, ProductIDs: products, RatePerKg: dec("12.50"),
		},
		{
			ID: 2, Name: "globex unit", Side: quotedomain.SideCustomer, CounterpartyID: customerB,
			FeeType: feetype.PerShipment, Rate: dec("3.00"),
		},
		{
			ID: 3, Name: "fastline", Side: quotedomain.SideSupplier, CounterpartyID: supplierS,
			FeeType: feetype.DifferentialLine, ProductIDs: products, MinWeight: dec("0.5"),
			Tiers: quotedomain.TierTable{
				{ID: 31, ScheduleID: 3, Seq: 1, Start: dec("0"), End: dec("1"), RatePerKg: dec("5.0"), RatePerPiece: dec("2.0")},
				{ID: 32, ScheduleID: 3, Seq: 2, Start: dec("1"), End: dec("5"), RatePerKg: dec("4.0"), RatePerPiece: dec("2.0")},
			},
		},
	}
	qr := quoterepo.Provide()
	for _, s := range schedules {
		s.ValidFrom = created
		s.ValidTo = time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
		s.CreatedAt = created
		s.UpdatedAt = created
		require.NoError(t, qr.Insert(ctx, db, s))
	}

	clk := clock.NewFixed(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	rating := ratingservice.New(ratingservice.Params{
		DB:           db,
		Log:          zap.NewNop(),
		QuoteRepo:    qr,
		ProductRepo:  productrepo.Provide(),
		CustomerRepo: customerrepo.Provide(),
	})
	repo := waybillrepo.Provide()
	svc := New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Config: config.Config{Recompute: config.RecomputeConfig{Concurrency: 4, BatchSize: 2}},
		Repo:   repo,
		Rating: rating,
		Locker: lock.NewLocalLocker(),
	})
	return fixture{db: db, svc: svc, repo: repo, clock: clk}
}

func (f fixture) waybill(t *testing.T, id snowflake.ID, orderNo, weight string, mutate func(*waybilldomain.Waybill)) {
	t.Helper()
	at := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	w := &waybilldomain.Waybill{
		ID: id, OrderNo: orderNo, OrderTime: at, Weight: dec(weight), Pieces: 1, ProductID: productX,
		FirstLegCustomerID: ref(customerA), SupplierID: ref(supplierS),
		CreatedAt: at, UpdatedAt: at,
	}
	if mutate != nil {
		mutate(w)
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, w))
}

func (f fixture) load(t *testing.T, id snowflake.ID) *waybilldomain.Waybill {
	t.Helper()
	w, err := f.repo.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

func TestRecomputePersistsFeesAndIsolatesFailures(t *testing.T) {
	f := setup(t)
	f.waybill(t, 1, "W1", "3.200", nil)
	f.waybill(t, 2, "W2", "0.300", nil)
	f.waybill(t, 3, "W3", "6.000", nil)
	f.waybill(t, 4, "W4", "1.000", func(w *waybilldomain.Waybill) {
		w.FirstLegCustomerID = nil
		w.SupplierID = nil
		w.UnitCustomerID = ref(customerB)
	})

	res, err := f.svc.Recompute(context.Background(), recomputedomain.Request{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.MatchedCount)
	assert.Equal(t, 4, res.UpdatedCount)
	assert.Equal(t, 1, res.ErrorCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "3", res.Errors[0].WaybillID)
	assert.Equal(t, "supplier_cost", res.Errors[0].Component)
	assert.Contains(t, res.Errors[0].Reason, "weight_out_of_range")

	w1 := f.load(t, 1)
	assert.Equal(t, "40.00", w1.FirstLegFee.Decimal.StringFixed(2))
	assert.Equal(t, "14.80", w1.SupplierCost.Decimal.StringFixed(2))
	assert.False(t, w1.UnitFee.Valid)
	assert.Empty(t, w1.FeeErrors)
	require.NotNil(t, w1.FeesComputedAt)

	w2 := f.load(t, 2)
	assert.Equal(t, "4.50", w2.SupplierCost.Decimal.StringFixed(2))

	w3 := f.load(t, 3)
	assert.True(t, w3.FirstLegFee.Valid, "other fee types still persisted")
	assert.Equal(t, "75.00", w3.FirstLegFee.Decimal.StringFixed(2))
	assert.False(t, w3.SupplierCost.Valid)
	assert.Contains(t, w3.FeeErrors, "weight_out_of_range")

	w4 := f.load(t, 4)
	assert.Equal(t, "3.00", w4.UnitFee.Decimal.StringFixed(2))
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := setup(t)
	f.waybill(t, 1, "W1", "3.200", nil)
	f.waybill(t, 2, "W2", "6.000", nil)
	f.waybill(t, 3, "W3", "0.800", nil)

	first, err := f.svc.Recompute(context.Background(), recomputedomain.Request{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.UpdatedCount)
	before := f.load(t, 1)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Recompute(context.Background(), recomputedomain.Request{})
	require.NoError(t, err)
	assert.Equal(t, 3, second.MatchedCount)
	assert.Equal(t, 0, second.UpdatedCount)
	assert.Equal(t, 3, second.UnchangedCount)
	assert.Equal(t, first.ErrorCount, second.ErrorCount)

	after := f.load(t, 1)
	assert.Equal(t, before.FeeChecksum, after.FeeChecksum)
	assert.True(t, before.FeesComputedAt.Equal(*after.FeesComputedAt))
}

func TestRecomputeClearsStaleFees(t *testing.T) {
	f := setup(t)
	f.waybill(t, 1, "W1", "3.200", func(w *waybilldomain.Waybill) {
		w.LastLegFee = decimal.NewNullDecimal(dec("99"))
		w.OtherFee = decimal.NewNullDecimal(dec("7"))
	})

	_, err := f.svc.Recompute(context.Background(), recomputedomain.Request{})
	require.NoError(t, err)

	w := f.load(t, 1)
	assert.False(t, w.LastLegFee.Valid)
	require.True(t, w.OtherFee.Valid)
	assert.Equal(t, "7.00", w.OtherFee.Decimal.StringFixed(2))

	// An edit outside recompute is corrected on the next pass.
	require.NoError(t, f.db.Model(&waybilldomain.Waybill{}).Where("id = ?", 1).Update("first_leg_fee", "1.00").Error)
	res, err := f.svc.Recompute(context.Background(), recomputedomain.Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, "40.00", f.load(t, 1).FirstLegFee.Decimal.StringFixed(2))
}

func TestRecomputeFilters(t *testing.T) {
	f := setup(t)
	f.waybill(t, 1, "W1", "3.200", nil)
	f.waybill(t, 2, "W2", "1.000", func(w *waybilldomain.Waybill) {
		w.FirstLegCustomerID = nil
		w.SupplierID = nil
		w.UnitCustomerID = ref(customerB)
	})

	res, err := f.svc.Recompute(context.Background(), recomputedomain.Request{CustomerID: customerB.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchedCount)
	assert.False(t, f.load(t, 1).FirstLegFee.Valid)

	res, err = f.svc.Recompute(context.Background(), recomputedomain.Request{OrderNos: []string{"W1", "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchedCount)
	assert.True(t, f.load(t, 1).FirstLegFee.Valid)

	_, err = f.svc.Recompute(context.Background(), recomputedomain.Request{CustomerID: "abc"})
	assert.ErrorIs(t, err, recomputedomain.ErrInvalidRequest)
}

func TestRecomputeConcurrentPassesConverge(t *testing.T) {
	f := setup(t)
	for i := 1; i <= 6; i++ {
		f.waybill(t, snowflake.ID(i), fmt.Sprintf("W%d", i), fmt.Sprintf("%d.500", i%4), nil)
	}
	req := recomputedomain.Request{CustomerID: customerA.String()}
	ctx := context.Background()

	results := make([]*recomputedomain.Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Recompute(ctx, req)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	for _, res := range results {
		assert.Equal(t, 6, res.MatchedCount)
		assert.Equal(t, 6, res.UpdatedCount+res.UnchangedCount)
	}
	assert.Equal(t, 6, results[0].UpdatedCount+results[1].UpdatedCount, "each waybill is written by exactly one pass")

	var checksums []string
	require.NoError(t, f.db.Model(&waybilldomain.Waybill{}).Distinct("fee_checksum").Pluck("fee_checksum", &checksums).Error)
	assert.NotContains(t, checksums, "")

	w1 := f.load(t, 1)
	assert.Equal(t, "18.75", w1.FirstLegFee.Decimal.StringFixed(2))
	stored := make(map[snowflake.ID]string, 6)
	for i := 1; i <= 6; i++ {
		stored[snowflake.ID(i)] = f.load(t, snowflake.ID(i)).FeeChecksum
	}

	again, err := f.svc.Recompute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, again.UpdatedCount)
	assert.Equal(t, 6, again.UnchangedCount)
	for id, checksum := range stored {
		assert.Equal(t, checksum, f.load(t, id).FeeChecksum)
	}
}
