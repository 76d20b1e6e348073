package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Supplier struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ShortName     string       `gorm:"type:text;not null"`
	FullName      string       `gorm:"type:text;not null"`
	ContactPerson string       `gorm:"type:text"`
	Email         string       `gorm:"type:text"`
	Remark        string       `gorm:"type:text"`
	CreatedAt     time.Time    `gorm:"not null"`
}

func (Supplier) TableName() string { return "suppliers" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, supplier *Supplier) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Supplier, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Supplier, error)
}
