package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	waybilldomain "github.com/railzwaylabs/cargoledger/internal/waybill/domain"
)

var ErrInvalidRequest = errors.New("invalid_recompute_request")

// Request selects the waybills to re-rate. It is also the payload of a
// recompute job.
type Request struct {
	CustomerID    string     `json:"customer_id,omitempty"`
	SupplierID    string     `json:"supplier_id,omitempty"`
	ProductID     string     `json:"product_id,omitempty"`
	OrderTimeFrom *time.Time `json:"order_time_from,omitempty"`
	OrderTimeTo   *time.Time `json:"order_time_to,omitempty"`
	OrderNos      []string   `json:"order_nos,omitempty"`
	IDs           []string   `json:"ids,omitempty"`
}

// ScopeKey identifies overlapping requests for job bookkeeping.
func (r Request) ScopeKey() string {
	parts := []string{"recompute"}
	add := func(name, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, name+"="+v)
		}
	}
	add("customer", r.CustomerID)
	add("supplier", r.SupplierID)
	add("product", r.ProductID)
	if r.OrderTimeFrom != nil {
		add("from", r.OrderTimeFrom.UTC().Format(time.DateOnly))
	}
	if r.OrderTimeTo != nil {
		add("to", r.OrderTimeTo.UTC().Format(time.DateOnly))
	}
	if len(r.OrderNos) > 0 {
		add("order_nos", fmt.Sprint(len(r.OrderNos)))
	}
	if len(r.IDs) > 0 {
		add("ids", fmt.Sprint(len(r.IDs)))
	}
	return strings.Join(parts, ";")
}

func (r Request) Filter() (waybilldomain.Filter, error) {
	var (
		f   waybilldomain.Filter
		err error
	)
	if f.CustomerID, err = optionalID(r.CustomerID, "customer_id"); err != nil {
		return f, err
	}
	if f.SupplierID, err = optionalID(r.SupplierID, "supplier_id"); err != nil {
		return f, err
	}
	if f.ProductID, err = optionalID(r.ProductID, "product_id"); err != nil {
		return f, err
	}
	f.OrderTimeFrom = r.OrderTimeFrom
	f.OrderTimeTo = r.OrderTimeTo
	for _, no := range r.OrderNos {
		if no = strings.TrimSpace(no); no != "" {
			f.OrderNos = append(f.OrderNos, no)
		}
	}
	for _, raw := range r.IDs {
		id, err := optionalID(raw, "ids")
		if err != nil {
			return f, err
		}
		if id != 0 {
			f.IDs = append(f.IDs, id)
		}
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return f, nil
}

func optionalID(raw, field string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidRequest, field)
	}
	return id, nil
}

// ItemError is one fee that could not be computed, or a waybill that could
// not be written when Component is empty.
type ItemError struct {
	WaybillID string `json:"waybill_id"`
	OrderNo   string `json:"order_no,omitempty"`
	Component string `json:"fee_type,omitempty"`
	Reason    string `json:"reason"`
}

type Result struct {
	MatchedCount   int         `json:"matched_count"`
	UpdatedCount   int         `json:"updated_count"`
	UnchangedCount int         `json:"unchanged_count"`
	ErrorCount     int         `json:"error_count"`
	Errors         []ItemError `json:"errors"`
}

func (r *Result) Summary() string {
	return fmt.Sprintf("matched=%d updated=%d unchanged=%d errors=%d",
		r.MatchedCount, r.UpdatedCount, r.UnchangedCount, r.ErrorCount)
}

type Service interface {
	Recompute(ctx context.Context, req Request) (*Result, error)
}
