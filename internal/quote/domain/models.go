package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Side tells which billing direction a schedule prices.
type Side string

const (
	SideCustomer Side = "customer"
	SideSupplier Side = "supplier"
)

func (s Side) Valid() bool {
	return s == SideCustomer || s == SideSupplier
}

// RateSchedule is a time-bounded pricing agreement ("quote") with one
// counterparty for one fee type. Both validity bounds are inclusive.
type RateSchedule struct {
	ID             snowflake.ID               `gorm:"primaryKey"`
	Name           string                     `gorm:"type:text;not null;uniqueIndex"`
	Side           Side                       `gorm:"type:text;not null;index:idx_rate_schedules_lookup,priority:1"`
	CounterpartyID snowflake.ID               `gorm:"not null;index:idx_rate_schedules_lookup,priority:2"`
	FeeType        feetype.FeeType            `gorm:"type:text;not null;index:idx_rate_schedules_lookup,priority:3"`
	ProductIDs     datatypes.JSONSlice[int64] `gorm:"column:product_ids"`
	ValidFrom      time.Time                  `gorm:"not null"`
	ValidTo        time.Time                  `gorm:"not null"`
	Rate           decimal.Decimal            `gorm:"type:numeric(12,4);not null;default:0"`
	RatePerKg      decimal.Decimal            `gorm:"type:numeric(12,4);not null;default:0"`
	RatePerPiece   decimal.Decimal            `gorm:"type:numeric(12,4);not null;default:0"`
	MinWeight      decimal.Decimal            `gorm:"type:numeric(10,3);not null;default:0"`
	Tiers          TierTable                  `gorm:"-"`
	CreatedAt      time.Time                  `gorm:"not null"`
	UpdatedAt      time.Time                  `gorm:"not null"`
}

func (RateSchedule) TableName() string { return "rate_schedules" }

// Covers reports whether at falls inside [ValidFrom, ValidTo].
func (s *RateSchedule) Covers(at time.Time) bool {
	return !at.Before(s.ValidFrom) && !at.After(s.ValidTo)
}

// AppliesToProduct reports product membership. Per-shipment schedules are
// not product scoped.
func (s *RateSchedule) AppliesToProduct(productID snowflake.ID) bool {
	if !s.FeeType.RequiresProducts() {
		return true
	}
	for _, id := range s.ProductIDs {
		if snowflake.ID(id) == productID {
			return true
		}
	}
	return false
}

func (s *RateSchedule) Tiered() bool {
	return s.Side == SideSupplier
}

// Tier is one weight band of a supplier schedule: Start < weight <= End.
type Tier struct {
	ID           snowflake.ID    `gorm:"primaryKey"`
	ScheduleID   snowflake.ID    `gorm:"not null;index"`
	Seq          int             `gorm:"not null"`
	Start        decimal.Decimal `gorm:"column:start_weight;type:numeric(10,3);not null"`
	End          decimal.Decimal `gorm:"column:end_weight;type:numeric(10,3);not null"`
	RatePerKg    decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0"`
	RatePerPiece decimal.Decimal `gorm:"type:numeric(12,4);not null;default:0"`
}

func (Tier) TableName() string { return "rate_tiers" }

func (t Tier) Contains(weight decimal.Decimal) bool {
	return weight.GreaterThan(t.Start) && weight.LessThanOrEqual(t.End)
}
