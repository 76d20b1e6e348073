package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidID              = errors.New("invalid_payment_id")
	ErrNotFound               = errors.New("payment_not_found")
	ErrInvalidDirection       = errors.New("invalid_direction")
	ErrInvalidCounterparty    = errors.New("invalid_counterparty")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidPaidAt          = errors.New("invalid_paid_at")
	ErrInvalidInvoice         = errors.New("invalid_invoice")
	ErrInvoiceNotFound        = errors.New("linked_invoice_not_found")
	ErrInvoiceSideMismatch    = errors.New("invoice_side_mismatch")
	ErrCounterpartyMismatch   = errors.New("invoice_counterparty_mismatch")
	ErrMultipleInvoicesLinked = errors.New("multiple_invoices_linked")
)

// Request creates or replaces a payment. IDs travel as strings.
type Request struct {
	Direction         string          `json:"direction"`
	CounterpartyType  string          `json:"counterparty_type"`
	CounterpartyID    string          `json:"counterparty_id"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAt            time.Time       `json:"paid_at"`
	InvoiceID         string          `json:"invoice_id,omitempty"`
	SupplierInvoiceID string          `json:"supplier_invoice_id,omitempty"`
	Remark            string          `json:"remark,omitempty"`
}

type Response struct {
	ID                string    `json:"id"`
	Direction         Direction `json:"direction"`
	CounterpartyType  string    `json:"counterparty_type"`
	CounterpartyID    string    `json:"counterparty_id"`
	Amount            string    `json:"amount"`
	PaidAt            time.Time `json:"paid_at"`
	InvoiceID         string    `json:"invoice_id,omitempty"`
	SupplierInvoiceID string    `json:"supplier_invoice_id,omitempty"`
	Remark            string    `json:"remark,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Service keeps the paid flag of linked invoices in step with payments.
type Service interface {
	Create(ctx context.Context, req Request) (*Response, error)
	Update(ctx context.Context, id string, req Request) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
}
