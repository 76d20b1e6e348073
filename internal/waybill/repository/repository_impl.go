package repository

import (
	"context"
	"errors"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/waybill/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, waybill *domain.Waybill) error {
	return db.WithContext(ctx).Create(waybill).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Waybill, error) {
	return r.take(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByOrderNo(ctx context.Context, db *gorm.DB, orderNo string) (*domain.Waybill, error) {
	return r.take(db.WithContext(ctx).Where("order_no = ?", orderNo))
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Waybill, error) {
	return r.take(db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *repo) take(stmt *gorm.DB) (*domain.Waybill, error) {
	var w domain.Waybill
	err := stmt.Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListIDs pages through matching ids. Identifier lists are bound one chunk per
// query so that no statement carries more than OrderNoChunkSize list values.
func (r *repo) ListIDs(ctx context.Context, db *gorm.DB, filter domain.Filter, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	if limit <= 0 {
		return nil, nil
	}
	idChunks := [][]snowflake.ID{nil}
	if len(filter.IDs) > 0 {
		idChunks = filter.IDChunks(afterID)
	}

	var out []snowflake.ID
	for _, ids := range idChunks {
		found, err := r.listIDChunk(ctx, db, filter, ids, afterID, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
		// id chunks are ascending and disjoint
		if len(out) >= limit {
			return out[:limit], nil
		}
	}
	return out, nil
}

func (r *repo) listIDChunk(ctx context.Context, db *gorm.DB, filter domain.Filter, ids []snowflake.ID, afterID snowflake.ID, limit int) ([]snowflake.ID, error) {
	query := func(orderNos []string) ([]snowflake.ID, error) {
		stmt := applyFilter(db.WithContext(ctx).Model(&domain.Waybill{}), filter)
		if ids != nil {
			stmt = stmt.Where("id IN ?", ids)
		}
		if orderNos != nil {
			stmt = stmt.Where("order_no IN ?", orderNos)
		}
		if afterID != 0 {
			stmt = stmt.Where("id > ?", afterID)
		}
		var found []snowflake.ID
		if err := stmt.Order("id ASC").Limit(limit).Pluck("id", &found).Error; err != nil {
			return nil, err
		}
		return found, nil
	}

	chunks := filter.OrderNoChunks()
	if len(chunks) == 0 {
		return query(nil)
	}
	var merged []snowflake.ID
	for _, chunk := range chunks {
		found, err := query(chunk)
		if err != nil {
			return nil, err
		}
		merged = append(merged, found...)
	}
	slices.Sort(merged)
	merged = slices.Compact(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// applyFilter adds the scalar predicates; identifier lists are bound per chunk.
func applyFilter(stmt *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.CustomerID != 0 {
		stmt = stmt.Where(
			"unit_customer_id = ? OR first_leg_customer_id = ? OR last_leg_customer_id = ? OR differential_customer_id = ?",
			filter.CustomerID, filter.CustomerID, filter.CustomerID, filter.CustomerID,
		)
	}
	if filter.SupplierID != 0 {
		stmt = stmt.Where("supplier_id = ?", filter.SupplierID)
	}
	if filter.ProductID != 0 {
		stmt = stmt.Where("product_id = ?", filter.ProductID)
	}
	if filter.OrderTimeFrom != nil {
		stmt = stmt.Where("order_time >= ?", filter.OrderTimeFrom.UTC())
	}
	if upper, ok := filter.UpperBound(); ok {
		stmt = stmt.Where("order_time < ?", upper)
	}
	return stmt
}

func (r *repo) ApplyFees(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.FeeUpdate) error {
	return db.WithContext(ctx).
		Model(&domain.Waybill{}).
		Where("id = ?", id).
		Updates(update.Columns()).Error
}

func (r *repo) ListForPeriod(ctx context.Context, db *gorm.DB, query domain.PeriodQuery) ([]domain.Waybill, error) {
	column := query.CustomerColumn
	if query.Supplier {
		column = "supplier_id"
	}
	if column == "" {
		return nil, gorm.ErrInvalidField
	}

	stmt := db.WithContext(ctx).
		Where("order_time >= ? AND order_time < ?", query.From, query.To).
		Where(column + " IS NOT NULL")
	if len(query.CounterpartyIDs) > 0 {
		stmt = stmt.Where(column+" IN ?", query.CounterpartyIDs)
	}

	var items []domain.Waybill
	if err := stmt.Order("order_time ASC").Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
