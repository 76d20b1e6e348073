package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	// DirectionReceipt is money received from a customer.
	DirectionReceipt Direction = "receipt"
	// DirectionDisbursement is money paid to a supplier.
	DirectionDisbursement Direction = "disbursement"
)

type CounterpartyType string

const (
	CounterpartyCustomer CounterpartyType = "customer"
	CounterpartySupplier CounterpartyType = "supplier"
)

// Payment records a settlement. It may link at most one invoice: a customer
// invoice for receipts or a supplier invoice for disbursements.
type Payment struct {
	ID                snowflake.ID     `json:"id" gorm:"primaryKey"`
	Direction         Direction        `json:"direction" gorm:"type:text;not null"`
	CounterpartyType  CounterpartyType `json:"counterparty_type" gorm:"type:text;not null"`
	CounterpartyID    snowflake.ID     `json:"counterparty_id" gorm:"not null;index"`
	Amount            decimal.Decimal  `json:"amount" gorm:"type:numeric(12,2);not null"`
	PaidAt            time.Time        `json:"paid_at" gorm:"not null"`
	InvoiceID         *snowflake.ID    `json:"invoice_id" gorm:"index"`
	SupplierInvoiceID *snowflake.ID    `json:"supplier_invoice_id" gorm:"index"`
	Remark            string           `json:"remark" gorm:"type:text"`
	CreatedAt         time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }
