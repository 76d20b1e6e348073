package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
)

// Customer is master data. Categories are the fee types the customer can
// ever be billed for.
type Customer struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ShortName     string       `gorm:"type:text;not null"`
	FullName      string       `gorm:"type:text;not null"`
	Categories    feetype.Set  `gorm:"not null;default:0"`
	ContactPerson string       `gorm:"type:text"`
	Email         string       `gorm:"type:text"`
	Remark        string       `gorm:"type:text"`
	CreatedAt     time.Time    `gorm:"not null"`
}

func (Customer) TableName() string { return "customers" }

func (c Customer) Eligible(t feetype.FeeType) bool {
	return c.Categories.Has(t)
}
