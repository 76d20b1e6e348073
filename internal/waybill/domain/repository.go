package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, waybill *Waybill) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Waybill, error)
	FindByOrderNo(ctx context.Context, db *gorm.DB, orderNo string) (*Waybill, error)
	// ListIDs returns up to limit matching ids greater than afterID, ascending.
	ListIDs(ctx context.Context, db *gorm.DB, filter Filter, afterID snowflake.ID, limit int) ([]snowflake.ID, error)
	// FindForUpdate loads a waybill holding a row lock for the surrounding transaction.
	FindForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Waybill, error)
	ApplyFees(ctx context.Context, db *gorm.DB, id snowflake.ID, update FeeUpdate) error
	ListForPeriod(ctx context.Context, db *gorm.DB, query PeriodQuery) ([]Waybill, error)
}
