package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Side is the billing direction: receivables from customers or payables to
// suppliers.
type Side string

const (
	SideCustomer Side = "customer"
	SideSupplier Side = "supplier"
	SideAll      Side = "all"
)

func (s Side) Valid() bool {
	return s == SideCustomer || s == SideSupplier
}

// Period is a calendar month in UTC, formatted YYYY-MM.
type Period string

const periodLayout = "2006-01"

func ParsePeriod(value string) (Period, error) {
	value = strings.TrimSpace(value)
	t, err := time.Parse(periodLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, value)
	}
	return Period(t.Format(periodLayout)), nil
}

func PeriodOf(t time.Time) Period {
	return Period(t.UTC().Format(periodLayout))
}

// Bounds returns the half-open interval [start of month, start of next month).
func (p Period) Bounds() (time.Time, time.Time) {
	start, err := time.Parse(periodLayout, string(p))
	if err != nil {
		return time.Time{}, time.Time{}
	}
	return start, start.AddDate(0, 1, 0)
}

// Compact renders the period as YYYYMM for document names.
func (p Period) Compact() string {
	return strings.ReplaceAll(string(p), "-", "")
}

// LineItem is one waybill's contribution to an invoice total.
type LineItem struct {
	WaybillID   string    `json:"waybill_id"`
	OrderNo     string    `json:"order_no"`
	TransferNo  string    `json:"transfer_no,omitempty"`
	OrderTime   time.Time `json:"order_time"`
	ProductName string    `json:"product_name,omitempty"`
	Weight      string    `json:"weight"`
	Pieces      int       `json:"pieces"`
	Amount      string    `json:"amount"`
}

// Invoice is the receivable for one (customer, fee type, period).
type Invoice struct {
	ID            snowflake.ID                  `gorm:"primaryKey"`
	CustomerID    snowflake.ID                  `gorm:"not null;uniqueIndex:ux_invoices_key,priority:1"`
	FeeType       feetype.FeeType               `gorm:"type:text;not null;uniqueIndex:ux_invoices_key,priority:2"`
	Period        Period                        `gorm:"type:text;not null;uniqueIndex:ux_invoices_key,priority:3;index"`
	Amount        decimal.Decimal               `gorm:"type:numeric(12,2);not null;default:0"`
	ShipmentCount int                           `gorm:"not null;default:0"`
	Paid          bool                          `gorm:"not null;default:false"`
	DocumentRef   string                        `gorm:"type:text"`
	LineItems     datatypes.JSONSlice[LineItem] `gorm:"column:line_items"`
	CreatedAt     time.Time                     `gorm:"not null"`
	UpdatedAt     time.Time                     `gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }

// SupplierInvoice is the payable for one (supplier, period).
type SupplierInvoice struct {
	ID            snowflake.ID                  `gorm:"primaryKey"`
	SupplierID    snowflake.ID                  `gorm:"not null;uniqueIndex:ux_supplier_invoices_key,priority:1"`
	Period        Period                        `gorm:"type:text;not null;uniqueIndex:ux_supplier_invoices_key,priority:2;index"`
	Amount        decimal.Decimal               `gorm:"type:numeric(12,2);not null;default:0"`
	ShipmentCount int                           `gorm:"not null;default:0"`
	Paid          bool                          `gorm:"not null;default:false"`
	DocumentRef   string                        `gorm:"type:text"`
	LineItems     datatypes.JSONSlice[LineItem] `gorm:"column:line_items"`
	CreatedAt     time.Time                     `gorm:"not null"`
	UpdatedAt     time.Time                     `gorm:"not null"`
}

func (SupplierInvoice) TableName() string { return "supplier_invoices" }
