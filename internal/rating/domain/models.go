// Package domain contains the inputs and outputs of waybill rating.
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/shopspring/decimal"
)

var (
	// ErrUncovered means no rate schedule applies at the shipment's timestamp.
	ErrUncovered = errors.New("uncovered")
	// ErrOutOfRange means the billable weight falls outside every tier.
	ErrOutOfRange = errors.New("weight_out_of_range")
)

// Component names one stored monetary field of a waybill.
type Component string

const (
	ComponentUnitFee          Component = "unit_fee"
	ComponentFirstLegFee      Component = "first_leg_fee"
	ComponentLastLegFee       Component = "last_leg_fee"
	ComponentDedicatedLineFee Component = "dedicated_line_fee"
	ComponentSupplierCost     Component = "supplier_cost"
	ComponentDifferentialFee  Component = "differential_fee"
)

// Components lists every rated component in storage order.
var Components = []Component{
	ComponentUnitFee,
	ComponentFirstLegFee,
	ComponentLastLegFee,
	ComponentDedicatedLineFee,
	ComponentSupplierCost,
	ComponentDifferentialFee,
}

// CustomerComponent maps a customer fee type to the waybill field holding it.
func CustomerComponent(t feetype.FeeType) Component {
	switch t {
	case feetype.PerShipment:
		return ComponentUnitFee
	case feetype.FirstLeg:
		return ComponentFirstLegFee
	case feetype.LastLeg:
		return ComponentLastLegFee
	case feetype.DifferentialLine:
		return ComponentDedicatedLineFee
	default:
		return ""
	}
}

// Shipment is the subset of a waybill the rater reads.
type Shipment struct {
	ID         snowflake.ID
	OrderTime  time.Time
	Weight     decimal.Decimal
	Pieces     int
	ProductID  snowflake.ID
	Customers  map[feetype.FeeType]snowflake.ID
	SupplierID snowflake.ID
}

// PieceCount treats a missing piece count as a single piece.
func (s Shipment) PieceCount() decimal.Decimal {
	if s.Pieces <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(int64(s.Pieces))
}

// FeeError records why one component could not be computed.
type FeeError struct {
	Component Component
	Err       error
	Detail    string
}

func (e *FeeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Component, e.Err, e.Detail)
}

func (e *FeeError) Unwrap() error { return e.Err }

// Outcome holds the persisted amounts of one rating pass. A component that
// is absent from Amounts must be stored as unset.
type Outcome struct {
	Amounts   map[Component]decimal.Decimal
	Schedules map[Component]snowflake.ID
	Errors    []*FeeError
}

func NewOutcome() *Outcome {
	return &Outcome{
		Amounts:   make(map[Component]decimal.Decimal, len(Components)),
		Schedules: make(map[Component]snowflake.ID, len(Components)),
	}
}

func (o *Outcome) Amount(c Component) (decimal.Decimal, bool) {
	v, ok := o.Amounts[c]
	return v, ok
}

// Fail records a per-component failure.
func (o *Outcome) Fail(c Component, err error, detail string) {
	o.Errors = append(o.Errors, &FeeError{Component: c, Err: err, Detail: detail})
}
