package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
)

// Product is master data. FeeTypes lists the leg fees a product participates
// in; per-shipment fees apply to every product.
type Product struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Name        string       `gorm:"type:text;not null"`
	Description string       `gorm:"type:text"`
	FeeTypes    feetype.Set  `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// Participates reports whether the product carries fees of the given type.
func (p Product) Participates(t feetype.FeeType) bool {
	if t == feetype.PerShipment {
		return true
	}
	return p.FeeTypes.Has(t)
}
