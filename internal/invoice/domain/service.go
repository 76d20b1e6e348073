package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
)

var (
	ErrInvalidID       = errors.New("invalid_invoice_id")
	ErrNotFound        = errors.New("invoice_not_found")
	ErrInvalidPeriod   = errors.New("invalid_period")
	ErrInvalidSide     = errors.New("invalid_side")
	ErrInvalidScope    = errors.New("invalid_invoice_scope")
	ErrInvalidFeeType  = errors.New("invalid_fee_type")
	ErrDocumentFailure = errors.New("document_generation_failed")
)

// Skip reasons reported by generation.
const (
	ReasonFeeNotComputed = "fee not computed"
	ReasonDocumentFailed = "document generation failed"
	ReasonPersistFailed  = "invoice upsert failed"
)

// GenerateRequest is the payload of an invoice generation job. An empty
// side means both sides; empty lists do not constrain.
type GenerateRequest struct {
	Period          string   `json:"period"`
	Side            string   `json:"side,omitempty"`
	CounterpartyIDs []string `json:"counterparty_ids,omitempty"`
	FeeTypes        []string `json:"fee_types,omitempty"`
}

// Scope is the parsed form of a GenerateRequest.
type Scope struct {
	Period          Period
	Side            Side
	CounterpartyIDs []snowflake.ID
	FeeTypes        feetype.Set
}

func (s Scope) Includes(side Side) bool {
	return s.Side == SideAll || s.Side == side
}

func (r GenerateRequest) Scope() (Scope, error) {
	period, err := ParsePeriod(r.Period)
	if err != nil {
		return Scope{}, err
	}
	scope := Scope{Period: period, Side: SideAll, FeeTypes: feetype.NewSet(feetype.All...)}
	if v := strings.ToLower(strings.TrimSpace(r.Side)); v != "" {
		scope.Side = Side(v)
		if !scope.Side.Valid() && scope.Side != SideAll {
			return Scope{}, ErrInvalidSide
		}
	}
	for _, raw := range r.CounterpartyIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			return Scope{}, fmt.Errorf("%w: counterparty_ids", ErrInvalidScope)
		}
		scope.CounterpartyIDs = append(scope.CounterpartyIDs, id)
	}
	if len(r.FeeTypes) > 0 {
		set, err := feetype.ParseSet(r.FeeTypes)
		if err != nil {
			return Scope{}, ErrInvalidFeeType
		}
		scope.FeeTypes = set
	}
	return scope, nil
}

// ScopeKey identifies overlapping generation requests for job bookkeeping.
func (r GenerateRequest) ScopeKey() string {
	side := strings.ToLower(strings.TrimSpace(r.Side))
	if side == "" {
		side = string(SideAll)
	}
	return "generate_invoices;period=" + strings.TrimSpace(r.Period) + ";side=" + side
}

// SkipEntry reports a waybill or counterparty that did not make it into an
// invoice.
type SkipEntry struct {
	WaybillID      string `json:"waybill_id,omitempty"`
	Side           Side   `json:"side"`
	CounterpartyID string `json:"counterparty_id"`
	FeeType        string `json:"fee_type,omitempty"`
	Reason         string `json:"reason"`
}

type GenerateResult struct {
	Created int         `json:"created"`
	Updated int         `json:"updated"`
	Skipped []SkipEntry `json:"skipped"`
}

func (r *GenerateResult) Summary() string {
	return fmt.Sprintf("created=%d updated=%d skipped=%d", r.Created, r.Updated, len(r.Skipped))
}

type ListRequest struct {
	CounterpartyID string
	FeeType        string
	Period         string
	Paid           *bool
	pagination.Pagination
}

type Response struct {
	ID             string     `json:"id"`
	Side           Side       `json:"side"`
	CounterpartyID string     `json:"counterparty_id"`
	FeeType        string     `json:"fee_type,omitempty"`
	Period         Period     `json:"period"`
	Amount         string     `json:"amount"`
	ShipmentCount  int        `json:"shipment_count"`
	Paid           bool       `json:"paid"`
	DocumentRef    string     `json:"document_ref,omitempty"`
	LineItems      []LineItem `json:"line_items,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type ListResponse struct {
	Invoices []Response          `json:"invoices"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	GenerateInvoices(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Recalculate(ctx context.Context, id string) (*Response, error)
	Delete(ctx context.Context, id string) error
	SetPaid(ctx context.Context, id string, paid bool) (*Response, error)

	GetSupplier(ctx context.Context, id string) (*Response, error)
	ListSupplier(ctx context.Context, req ListRequest) (ListResponse, error)
	RecalculateSupplier(ctx context.Context, id string) (*Response, error)
	DeleteSupplier(ctx context.Context, id string) error
	SetSupplierPaid(ctx context.Context, id string, paid bool) (*Response, error)

	// SyncPaid re-derives the paid flag from the payments linked to the invoice.
	SyncPaid(ctx context.Context, side Side, id snowflake.ID) error
	// Exists reports whether the invoice exists and which counterparty it bills.
	Exists(ctx context.Context, side Side, id snowflake.ID) (snowflake.ID, bool, error)
}
