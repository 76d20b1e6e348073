package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidID        = errors.New("invalid_waybill_id")
	ErrNotFound         = errors.New("waybill_not_found")
	ErrInvalidOrderNo   = errors.New("invalid_order_no")
	ErrDuplicateOrderNo = errors.New("duplicate_order_no")
	ErrInvalidOrderTime = errors.New("invalid_order_time")
	ErrInvalidWeight    = errors.New("invalid_weight")
	ErrUnknownProduct   = errors.New("unknown_product")
	ErrInvalidReference = errors.New("invalid_counterparty_reference")
)

type CreateRequest struct {
	OrderNo                string           `json:"order_no"`
	TransferNo             string           `json:"transfer_no"`
	OrderTime              time.Time        `json:"order_time"`
	Weight                 decimal.Decimal  `json:"weight"`
	Pieces                 int              `json:"pieces"`
	ProductID              string           `json:"product_id"`
	UnitCustomerID         string           `json:"unit_customer_id"`
	FirstLegCustomerID     string           `json:"first_leg_customer_id"`
	LastLegCustomerID      string           `json:"last_leg_customer_id"`
	DifferentialCustomerID string           `json:"differential_customer_id"`
	SupplierID             string           `json:"supplier_id"`
	OtherFee               *decimal.Decimal `json:"other_fee"`
	Remark                 string           `json:"remark"`
}

type Response struct {
	ID                     string     `json:"id"`
	OrderNo                string     `json:"order_no"`
	TransferNo             string     `json:"transfer_no,omitempty"`
	OrderTime              time.Time  `json:"order_time"`
	Weight                 string     `json:"weight"`
	Pieces                 int        `json:"pieces"`
	ProductID              string     `json:"product_id"`
	UnitCustomerID         string     `json:"unit_customer_id,omitempty"`
	FirstLegCustomerID     string     `json:"first_leg_customer_id,omitempty"`
	LastLegCustomerID      string     `json:"last_leg_customer_id,omitempty"`
	DifferentialCustomerID string     `json:"differential_customer_id,omitempty"`
	SupplierID             string     `json:"supplier_id,omitempty"`
	UnitFee                *string    `json:"unit_fee"`
	FirstLegFee            *string    `json:"first_leg_fee"`
	LastLegFee             *string    `json:"last_leg_fee"`
	DedicatedLineFee       *string    `json:"dedicated_line_fee"`
	DifferentialFee        *string    `json:"differential_fee"`
	SupplierCost           *string    `json:"supplier_cost"`
	OtherFee               *string    `json:"other_fee"`
	FeeErrors              string     `json:"fee_errors,omitempty"`
	FeesComputedAt         *time.Time `json:"fees_computed_at,omitempty"`
	Remark                 string     `json:"remark,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
}
