package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	CounterpartyID snowflake.ID
	FeeType        feetype.FeeType
	Period         Period
	Paid           *bool
}

type Repository interface {
	FindInvoiceByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, ft feetype.FeeType, period Period) (*Invoice, error)
	FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	// UpsertInvoice inserts or, on a key conflict, replaces the computed
	// columns. ID, Paid and CreatedAt of an existing row are kept.
	UpsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	DeleteInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ListInvoices(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Invoice, error)

	FindSupplierInvoiceByKey(ctx context.Context, db *gorm.DB, supplierID snowflake.ID, period Period) (*SupplierInvoice, error)
	FindSupplierInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SupplierInvoice, error)
	UpsertSupplierInvoice(ctx context.Context, db *gorm.DB, invoice *SupplierInvoice) error
	DeleteSupplierInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	ListSupplierInvoices(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*SupplierInvoice, error)

	// SetPaid sets the flag directly; SyncPaid derives it from linked payments.
	SetPaid(ctx context.Context, db *gorm.DB, side Side, id snowflake.ID, paid bool) (bool, error)
	SyncPaid(ctx context.Context, db *gorm.DB, side Side, id snowflake.ID) error
	UnlinkPayments(ctx context.Context, db *gorm.DB, side Side, id snowflake.ID) error
}
