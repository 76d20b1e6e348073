package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/shopspring/decimal"
)

// Waybill is one shipment record. Fee fields are NULL until computed and go
// back to NULL when a recompute cannot price them.
type Waybill struct {
	ID                     snowflake.ID        `gorm:"primaryKey"`
	OrderNo                string              `gorm:"type:text;not null;uniqueIndex"`
	TransferNo             string              `gorm:"type:text"`
	OrderTime              time.Time           `gorm:"not null;index"`
	Weight                 decimal.Decimal     `gorm:"type:numeric(10,3);not null"`
	Pieces                 int                 `gorm:"not null;default:1"`
	ProductID              snowflake.ID        `gorm:"not null;index"`
	UnitCustomerID         *snowflake.ID       `gorm:"index"`
	FirstLegCustomerID     *snowflake.ID       `gorm:"index"`
	LastLegCustomerID      *snowflake.ID       `gorm:"index"`
	DifferentialCustomerID *snowflake.ID       `gorm:"index"`
	SupplierID             *snowflake.ID       `gorm:"index"`
	UnitFee                decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	FirstLegFee            decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	LastLegFee             decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	DedicatedLineFee       decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	DifferentialFee        decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	SupplierCost           decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	OtherFee               decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	FeeErrors              string              `gorm:"type:text"`
	FeeChecksum            string              `gorm:"type:text"`
	FeesComputedAt         *time.Time
	Remark                 string    `gorm:"type:text"`
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (Waybill) TableName() string { return "waybills" }

// CustomerColumn is the waybill column referencing the customer billed for t.
func CustomerColumn(t feetype.FeeType) string {
	switch t {
	case feetype.PerShipment:
		return "unit_customer_id"
	case feetype.FirstLeg:
		return "first_leg_customer_id"
	case feetype.LastLeg:
		return "last_leg_customer_id"
	case feetype.DifferentialLine:
		return "differential_customer_id"
	default:
		return ""
	}
}

// CustomerFor returns the customer referenced for t, or zero.
func (w *Waybill) CustomerFor(t feetype.FeeType) snowflake.ID {
	var ref *snowflake.ID
	switch t {
	case feetype.PerShipment:
		ref = w.UnitCustomerID
	case feetype.FirstLeg:
		ref = w.FirstLegCustomerID
	case feetype.LastLeg:
		ref = w.LastLegCustomerID
	case feetype.DifferentialLine:
		ref = w.DifferentialCustomerID
	}
	if ref == nil {
		return 0
	}
	return *ref
}

// Fee returns the stored value of a rated component.
func (w *Waybill) Fee(c ratingdomain.Component) decimal.NullDecimal {
	switch c {
	case ratingdomain.ComponentUnitFee:
		return w.UnitFee
	case ratingdomain.ComponentFirstLegFee:
		return w.FirstLegFee
	case ratingdomain.ComponentLastLegFee:
		return w.LastLegFee
	case ratingdomain.ComponentDedicatedLineFee:
		return w.DedicatedLineFee
	case ratingdomain.ComponentDifferentialFee:
		return w.DifferentialFee
	case ratingdomain.ComponentSupplierCost:
		return w.SupplierCost
	default:
		return decimal.NullDecimal{}
	}
}

func (w *Waybill) ToShipment() ratingdomain.Shipment {
	customers := make(map[feetype.FeeType]snowflake.ID, len(feetype.All))
	for _, t := range feetype.All {
		if id := w.CustomerFor(t); id != 0 {
			customers[t] = id
		}
	}
	var supplierID snowflake.ID
	if w.SupplierID != nil {
		supplierID = *w.SupplierID
	}
	return ratingdomain.Shipment{
		ID:         w.ID,
		OrderTime:  w.OrderTime,
		Weight:     w.Weight,
		Pieces:     w.Pieces,
		ProductID:  w.ProductID,
		Customers:  customers,
		SupplierID: supplierID,
	}
}

// FeeUpdate is the full set of computed columns written by a recompute.
type FeeUpdate struct {
	Amounts    map[ratingdomain.Component]decimal.Decimal
	Errors     string
	Checksum   string
	ComputedAt time.Time
}

// Columns maps the update onto waybill columns; components missing from
// Amounts are written as NULL.
func (u FeeUpdate) Columns() map[string]any {
	cols := make(map[string]any, len(ratingdomain.Components)+4)
	for _, c := range ratingdomain.Components {
		v, ok := u.Amounts[c]
		cols[string(c)] = decimal.NullDecimal{Decimal: v, Valid: ok}
	}
	cols["fee_errors"] = u.Errors
	cols["fee_checksum"] = u.Checksum
	cols["fees_computed_at"] = u.ComputedAt
	cols["updated_at"] = u.ComputedAt
	return cols
}
