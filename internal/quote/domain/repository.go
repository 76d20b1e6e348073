package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Side           Side
	CounterpartyID snowflake.ID
	FeeType        feetype.FeeType
	ActiveAt       *time.Time
}

type Repository interface {
	// Insert stores the schedule and its tiers.
	Insert(ctx context.Context, db *gorm.DB, schedule *RateSchedule) error
	// Replace overwrites the schedule row and swaps its tiers wholesale.
	Replace(ctx context.Context, db *gorm.DB, schedule *RateSchedule) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*RateSchedule, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*RateSchedule, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*RateSchedule, error)
	// ListAll loads every schedule with its tiers, for building a resolver snapshot.
	ListAll(ctx context.Context, db *gorm.DB) ([]*RateSchedule, error)
}
