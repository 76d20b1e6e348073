package domain

import (
	"context"
	"time"

	"github.com/railzwaylabs/cargoledger/pkg/db/pagination"
	"github.com/shopspring/decimal"
)

type TierInput struct {
	Start        decimal.Decimal `json:"start"`
	End          decimal.Decimal `json:"end"`
	RatePerKg    decimal.Decimal `json:"rate_per_kg"`
	RatePerPiece decimal.Decimal `json:"rate_per_piece"`
}

type UpsertRequest struct {
	Name           string          `json:"name"`
	Side           string          `json:"side"`
	CounterpartyID string          `json:"counterparty_id"`
	FeeType        string          `json:"fee_type"`
	ProductIDs     []string        `json:"product_ids"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidTo        time.Time       `json:"valid_to"`
	Rate           decimal.Decimal `json:"rate"`
	RatePerKg      decimal.Decimal `json:"rate_per_kg"`
	RatePerPiece   decimal.Decimal `json:"rate_per_piece"`
	MinWeight      decimal.Decimal `json:"min_weight"`
	Tiers          []TierInput     `json:"tiers"`
}

type ListRequest struct {
	Side           string
	CounterpartyID string
	FeeType        string
	ActiveAt       *time.Time
	pagination.Pagination
}

type TierResponse struct {
	Start        string `json:"start"`
	End          string `json:"end"`
	RatePerKg    string `json:"rate_per_kg"`
	RatePerPiece string `json:"rate_per_piece"`
}

type Response struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Side           string         `json:"side"`
	CounterpartyID string         `json:"counterparty_id"`
	FeeType        string         `json:"fee_type"`
	ProductIDs     []string       `json:"product_ids"`
	ValidFrom      time.Time      `json:"valid_from"`
	ValidTo        time.Time      `json:"valid_to"`
	Rate           string         `json:"rate"`
	RatePerKg      string         `json:"rate_per_kg"`
	RatePerPiece   string         `json:"rate_per_piece"`
	MinWeight      string         `json:"min_weight"`
	Tiers          []TierResponse `json:"tiers,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type ListResponse struct {
	Schedules []Response          `json:"schedules"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Create(ctx context.Context, req UpsertRequest) (*Response, error)
	Update(ctx context.Context, id string, req UpsertRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Delete(ctx context.Context, id string) error
}
