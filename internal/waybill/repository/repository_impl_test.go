package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Waybill{}))
	return db
}

func ref(id snowflake.ID) *snowflake.ID { return &id }

func seed(t *testing.T, db *gorm.DB, w domain.Waybill) domain.Waybill {
	t.Helper()
	if w.Weight.IsZero() {
		w.Weight = decimal.NewFromInt(1)
	}
	w.CreatedAt = w.OrderTime
	w.UpdatedAt = w.OrderTime
	require.NoError(t, Provide().Insert(context.Background(), db, &w))
	return w
}

func TestListIDsFilters(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, db, domain.Waybill{ID: 1, OrderNo: "A1", OrderTime: base, ProductID: 7, UnitCustomerID: ref(100)})
	seed(t, db, domain.Waybill{ID: 2, OrderNo: "A2", OrderTime: base.Add(23*time.Hour + 59*time.Minute), ProductID: 7, LastLegCustomerID: ref(100)})
	seed(t, db, domain.Waybill{ID: 3, OrderNo: "A3", OrderTime: base.AddDate(0, 0, 1), ProductID: 8, DifferentialCustomerID: ref(100), SupplierID: ref(500)})
	seed(t, db, domain.Waybill{ID: 4, OrderNo: "A4", OrderTime: base, ProductID: 8, FirstLegCustomerID: ref(200), SupplierID: ref(500)})

	ids, err := r.ListIDs(ctx, db, domain.Filter{CustomerID: 100}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2, 3}, ids)

	to := base
	ids, err = r.ListIDs(ctx, db, domain.Filter{CustomerID: 100, OrderTimeTo: &to}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2}, ids, "order_time_to includes the whole day")

	ids, err = r.ListIDs(ctx, db, domain.Filter{SupplierID: 500, ProductID: 8}, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{4}, ids)

	ids, err = r.ListIDs(ctx, db, domain.Filter{IDs: []snowflake.ID{2, 4}}, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{2}, ids)
}

func TestListIDsChunksOrderNumbers(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, db, domain.Waybill{ID: 1, OrderNo: "N0005", OrderTime: at, ProductID: 1})
	seed(t, db, domain.Waybill{ID: 2, OrderNo: "N2400", OrderTime: at, ProductID: 1})
	seed(t, db, domain.Waybill{ID: 3, OrderNo: "X0001", OrderTime: at, ProductID: 1})

	orderNos := make([]string, 0, 2500)
	for i := 0; i < 2500; i++ {
		orderNos = append(orderNos, fmt.Sprintf("N%04d", i))
	}
	filter := domain.Filter{OrderNos: orderNos}
	assert.Len(t, filter.OrderNoChunks(), 3)

	ids, err := r.ListIDs(ctx, db, filter, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1, 2}, ids)

	ids, err = r.ListIDs(ctx, db, domain.Filter{OrderNos: orderNos, ProductID: 2}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestApplyFeesWritesNulls(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, db, domain.Waybill{
		ID: 1, OrderNo: "A1", OrderTime: at, ProductID: 1,
		FirstLegFee: decimal.NewNullDecimal(decimal.NewFromInt(9)),
		OtherFee:    decimal.NewNullDecimal(decimal.NewFromInt(5)),
	})

	err := r.ApplyFees(ctx, db, 1, domain.FeeUpdate{
		Amounts: map[ratingdomain.Component]decimal.Decimal{
			ratingdomain.ComponentUnitFee: decimal.RequireFromString("3.30"),
		},
		Errors:     "first_leg_fee: uncovered",
		Checksum:   "abc",
		ComputedAt: at.Add(time.Hour),
	})
	require.NoError(t, err)

	got, err := r.FindByID(ctx, db, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.FirstLegFee.Valid)
	require.True(t, got.UnitFee.Valid)
	assert.Equal(t, "3.30", got.UnitFee.Decimal.StringFixed(2))
	assert.True(t, got.OtherFee.Valid, "manual fee is never touched")
	assert.Equal(t, "abc", got.FeeChecksum)

	missing, err := r.FindByID(ctx, db, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListForPeriod(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	march := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	seed(t, db, domain.Waybill{ID: 1, OrderNo: "A1", OrderTime: march, ProductID: 1, FirstLegCustomerID: ref(100)})
	seed(t, db, domain.Waybill{ID: 2, OrderNo: "A2", OrderTime: march.AddDate(0, 1, 0).Add(-time.Second), ProductID: 1, FirstLegCustomerID: ref(200), SupplierID: ref(500)})
	seed(t, db, domain.Waybill{ID: 3, OrderNo: "A3", OrderTime: march.AddDate(0, 1, 0), ProductID: 1, FirstLegCustomerID: ref(100)})
	seed(t, db, domain.Waybill{ID: 4, OrderNo: "A4", OrderTime: march, ProductID: 1, UnitCustomerID: ref(100)})

	items, err := r.ListForPeriod(ctx, db, domain.PeriodQuery{
		From: march, To: march.AddDate(0, 1, 0), CustomerColumn: "first_leg_customer_id",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, snowflake.ID(1), items[0].ID)
	assert.Equal(t, snowflake.ID(2), items[1].ID)

	items, err = r.ListForPeriod(ctx, db, domain.PeriodQuery{
		From: march, To: march.AddDate(0, 1, 0), CustomerColumn: "first_leg_customer_id", CounterpartyIDs: []snowflake.ID{100},
	})
	require.NoError(t, err)
	require.Len(t, items, 1)

	items, err = r.ListForPeriod(ctx, db, domain.PeriodQuery{From: march, To: march.AddDate(0, 1, 0), Supplier: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, snowflake.ID(2), items[0].ID)
}

func TestListIDsLargeIdentifierLists(t *testing.T) {
	db := openDB(t)
	r := Provide()
	ctx := context.Background()

	at := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	seed(t, db, domain.Waybill{ID: 10, OrderNo: "N000007", OrderTime: at, ProductID: 1})
	seed(t, db, domain.Waybill{ID: 20, OrderNo: "N054321", OrderTime: at, ProductID: 1})
	seed(t, db, domain.Waybill{ID: 30, OrderNo: "N099999", OrderTime: at, ProductID: 2})
	seed(t, db, domain.Waybill{ID: 40, OrderNo: "X000001", OrderTime: at, ProductID: 1})

	orderNos := make([]string, 0, 100000)
	for i := 0; i < 100000; i++ {
		orderNos = append(orderNos, fmt.Sprintf("N%06d", i))
	}
	filter := domain.Filter{OrderNos: orderNos}

	ids, err := r.ListIDs(ctx, db, filter, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{10, 20}, ids)

	ids, err = r.ListIDs(ctx, db, filter, 20, 2)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{30}, ids)

	ids, err = r.ListIDs(ctx, db, domain.Filter{OrderNos: orderNos, ProductID: 1}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{10, 20}, ids)

	idList := make([]snowflake.ID, 0, 70000)
	for i := 70000; i > 0; i-- {
		idList = append(idList, snowflake.ID(i))
	}
	idFilter := domain.Filter{IDs: idList}
	assert.Len(t, idFilter.IDChunks(0), 70)
	assert.Len(t, idFilter.IDChunks(69500), 1)

	ids, err = r.ListIDs(ctx, db, idFilter, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{10, 20, 30}, ids)

	ids, err = r.ListIDs(ctx, db, domain.Filter{IDs: idList[len(idList)-50:], OrderNos: orderNos}, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{20, 30}, ids)
}
