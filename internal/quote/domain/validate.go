package domain

import (
	"strings"

	"github.com/railzwaylabs/cargoledger/internal/feetype"
)

// Validate enforces the write-time invariants of a schedule. Overlapping
// validity windows are allowed and resolved at lookup time.
func (s *RateSchedule) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return configError("name", ErrInvalidName)
	}
	if !s.Side.Valid() {
		return configError("side", ErrInvalidSide)
	}
	if s.CounterpartyID == 0 {
		return configError("counterparty_id", ErrInvalidCounterparty)
	}
	if !s.FeeType.Valid() {
		return configError("fee_type", ErrInvalidFeeType)
	}
	if s.ValidFrom.IsZero() || s.ValidTo.IsZero() || s.ValidFrom.After(s.ValidTo) {
		return configError("valid_to", ErrInvalidValidity)
	}
	if s.FeeType.RequiresProducts() && len(s.ProductIDs) == 0 {
		return configError("product_ids", ErrMissingProducts)
	}
	if s.Rate.IsNegative() || s.RatePerKg.IsNegative() || s.RatePerPiece.IsNegative() {
		return configError("rate", ErrNegativeRate)
	}

	if s.Side == SideSupplier {
		return s.validateSupplier()
	}
	return s.validateCustomer()
}

func (s *RateSchedule) validateCustomer() error {
	if len(s.Tiers) > 0 {
		return configError("tiers", ErrUnexpectedTiers)
	}
	if !s.MinWeight.IsZero() {
		return configError("min_weight", ErrInvalidMinWeight)
	}
	if s.FeeType == feetype.DifferentialLine && s.RatePerKg.IsZero() && s.RatePerPiece.IsZero() {
		return configError("rate_per_kg", ErrZeroRates)
	}
	return nil
}

func (s *RateSchedule) validateSupplier() error {
	if s.FeeType != feetype.DifferentialLine {
		return configError("fee_type", ErrSupplierFeeType)
	}
	if s.MinWeight.IsNegative() {
		return configError("min_weight", ErrInvalidMinWeight)
	}
	return s.Tiers.Validate()
}

// Normalize drops parameters that do not apply to the schedule's type and
// orders its tiers.
func (s *RateSchedule) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.ValidFrom = s.ValidFrom.UTC()
	s.ValidTo = s.ValidTo.UTC()
	if !s.FeeType.RequiresProducts() {
		s.ProductIDs = nil
	}
	s.Tiers = s.Tiers.Sorted()
	for i := range s.Tiers {
		s.Tiers[i].Seq = i + 1
		s.Tiers[i].ScheduleID = s.ID
	}
}
