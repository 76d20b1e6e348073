package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns are replaced when a regenerated invoice hits an existing key.
var upsertColumns = []string{"amount", "shipment_count", "document_ref", "line_items", "updated_at"}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindInvoiceByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, ft feetype.FeeType, period domain.Period) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := db.WithContext(ctx).
		Where("customer_id = ? AND fee_type = ? AND period = ?", customerID, ft, period).
		Take(&inv).Error
	return found(&inv, err)
}

func (r *repo) FindInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := db.WithContext(ctx).Where("id = ?", id).Take(&inv).Error
	return found(&inv, err)
}

func (r *repo) UpsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	if invoice == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}, {Name: "fee_type"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(invoice).Error
}

func (r *repo) DeleteInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{})
	return res.RowsAffected > 0, res.Error
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	stmt := applyListFilter(db.WithContext(ctx).Model(&domain.Invoice{}), "customer_id", filter)
	if filter.FeeType != "" {
		stmt = stmt.Where("fee_type = ?", filter.FeeType)
	}
	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}
	var items []*domain.Invoice
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindSupplierInvoiceByKey(ctx context.Context, db *gorm.DB, supplierID snowflake.ID, period domain.Period) (*domain.SupplierInvoice, error) {
	var inv domain.SupplierInvoice
	err := db.WithContext(ctx).
		Where("supplier_id = ? AND period = ?", supplierID, period).
		Take(&inv).Error
	return found(&inv, err)
}

func (r *repo) FindSupplierInvoiceByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SupplierInvoice, error) {
	var inv domain.SupplierInvoice
	err := db.WithContext(ctx).Where("id = ?", id).Take(&inv).Error
	return found(&inv, err)
}

func (r *repo) UpsertSupplierInvoice(ctx context.Context, db *gorm.DB, invoice *domain.SupplierInvoice) error {
	if invoice == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "supplier_id"}, {Name: "period"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(invoice).Error
}

func (r *repo) DeleteSupplierInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.SupplierInvoice{})
	return res.RowsAffected > 0, res.Error
}

func (r *repo) ListSupplierInvoices(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.SupplierInvoice, error) {
	stmt := applyListFilter(db.WithContext(ctx).Model(&domain.SupplierInvoice{}), "supplier_id", filter)
	stmt, err := page.Apply(stmt)
	if err != nil {
		return nil, err
	}
	var items []*domain.SupplierInvoice
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func applyListFilter(stmt *gorm.DB, counterpartyColumn string, filter domain.ListFilter) *gorm.DB {
	if filter.CounterpartyID != 0 {
		stmt = stmt.Where(counterpartyColumn+" = ?", filter.CounterpartyID)
	}
	if filter.Period != "" {
		stmt = stmt.Where("period = ?", filter.Period)
	}
	if filter.Paid != nil {
		stmt = stmt.Where("paid = ?", *filter.Paid)
	}
	return stmt
}

func (r *repo) SetPaid(ctx context.Context, db *gorm.DB, side domain.Side, id snowflake.ID, paid bool) (bool, error) {
	table, _, err := tables(side)
	if err != nil {
		return false, err
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE `+table+` SET paid = ?, updated_at = ? WHERE id = ?`,
		paid, time.Now().UTC(), id,
	)
	return res.RowsAffected > 0, res.Error
}

func (r *repo) SyncPaid(ctx context.Context, db *gorm.DB, side domain.Side, id snowflake.ID) error {
	table, column, err := tables(side)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`UPDATE `+table+`
		 SET paid = EXISTS (SELECT 1 FROM payments WHERE payments.`+column+` = `+table+`.id),
		     updated_at = ?
		 WHERE id = ?`,
		time.Now().UTC(), id,
	).Error
}

func (r *repo) UnlinkPayments(ctx context.Context, db *gorm.DB, side domain.Side, id snowflake.ID) error {
	_, column, err := tables(side)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payments SET `+column+` = NULL, updated_at = ? WHERE `+column+` = ?`,
		time.Now().UTC(), id,
	).Error
}

// tables maps a side to its invoice table and the payments column linking it.
func tables(side domain.Side) (string, string, error) {
	switch side {
	case domain.SideCustomer:
		return "invoices", "invoice_id", nil
	case domain.SideSupplier:
		return "supplier_invoices", "supplier_invoice_id", nil
	default:
		return "", "", fmt.Errorf("%w: %q", domain.ErrInvalidSide, side)
	}
}

func found[T any](item *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}
