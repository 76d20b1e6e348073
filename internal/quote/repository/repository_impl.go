package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/quote/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, schedule *domain.RateSchedule) error {
	if schedule == nil {
		return gorm.ErrInvalidData
	}
	if err := db.WithContext(ctx).Create(schedule).Error; err != nil {
		return err
	}
	return r.insertTiers(ctx, db, schedule.Tiers)
}

func (r *repo) Replace(ctx context.Context, db *gorm.DB, schedule *domain.RateSchedule) error {
	if schedule == nil {
		return gorm.ErrInvalidData
	}
	err := db.WithContext(ctx).
		Model(&domain.RateSchedule{}).
		Where("id = ?", schedule.ID).
		Updates(map[string]any{
			"name":            schedule.Name,
			"side":            schedule.Side,
			"counterparty_id": schedule.CounterpartyID,
			"fee_type":        schedule.FeeType,
			"product_ids":     schedule.ProductIDs,
			"valid_from":      schedule.ValidFrom,
			"valid_to":        schedule.ValidTo,
			"rate":            schedule.Rate,
			"rate_per_kg":     schedule.RatePerKg,
			"rate_per_piece":  schedule.RatePerPiece,
			"min_weight":      schedule.MinWeight,
			"updated_at":      schedule.UpdatedAt,
		}).Error
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("schedule_id = ?", schedule.ID).Delete(&domain.Tier{}).Error; err != nil {
		return err
	}
	return r.insertTiers(ctx, db, schedule.Tiers)
}

func (r *repo) insertTiers(ctx context.Context, db *gorm.DB, tiers domain.TierTable) error {
	if len(tiers) == 0 {
		return nil
	}
	rows := make([]domain.Tier, len(tiers))
	copy(rows, tiers)
	return db.WithContext(ctx).CreateInBatches(&rows, 100).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Where("schedule_id = ?", id).Delete(&domain.Tier{}).Error; err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.RateSchedule{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.RateSchedule, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.RateSchedule, error) {
	return r.findOne(ctx, db, "name = ?", name)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.RateSchedule, error) {
	var schedule domain.RateSchedule
	err := db.WithContext(ctx).Where(query, arg).Take(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	tiers, err := r.tiersFor(ctx, db, []snowflake.ID{schedule.ID})
	if err != nil {
		return nil, err
	}
	schedule.Tiers = tiers[schedule.ID]
	return &schedule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.RateSchedule, error) {
	stmt := db.WithContext(ctx).Model(&domain.RateSchedule{})
	if filter.Side != "" {
		stmt = stmt.Where("side = ?", filter.Side)
	}
	if filter.CounterpartyID != 0 {
		stmt = stmt.Where("counterparty_id = ?", filter.CounterpartyID)
	}
	if filter.FeeType != "" {
		stmt = stmt.Where("fee_type = ?", filter.FeeType)
	}
	if filter.ActiveAt != nil {
		stmt = stmt.Where("valid_from <= ? AND valid_to >= ?", *filter.ActiveAt, *filter.ActiveAt)
	}

	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}

	var items []*domain.RateSchedule
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return r.attachTiers(ctx, db, items)
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]*domain.RateSchedule, error) {
	var items []*domain.RateSchedule
	if err := db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return r.attachTiers(ctx, db, items)
}

func (r *repo) attachTiers(ctx context.Context, db *gorm.DB, items []*domain.RateSchedule) ([]*domain.RateSchedule, error) {
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		if item.Side == domain.SideSupplier {
			ids = append(ids, item.ID)
		}
	}
	tiers, err := r.tiersFor(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		item.Tiers = tiers[item.ID]
	}
	return items, nil
}

func (r *repo) tiersFor(ctx context.Context, db *gorm.DB, scheduleIDs []snowflake.ID) (map[snowflake.ID]domain.TierTable, error) {
	out := make(map[snowflake.ID]domain.TierTable, len(scheduleIDs))
	if len(scheduleIDs) == 0 {
		return out, nil
	}
	var rows []domain.Tier
	err := db.WithContext(ctx).
		Where("schedule_id IN ?", scheduleIDs).
		Order("schedule_id ASC").
		Order("seq ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ScheduleID] = append(out[row.ScheduleID], row)
	}
	return out, nil
}
