package service

import (
	"fmt"

	"github.com/railzwaylabs/cargoledger/internal/feetype"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/shopspring/decimal"
)

// Calculate prices one shipment against a resolved schedule. The result is
// not rounded; callers round once when persisting.
func Calculate(schedule *quotedomain.RateSchedule, weight, pieces decimal.Decimal) (decimal.Decimal, error) {
	if schedule == nil {
		return decimal.Zero, ratingdomain.ErrUncovered
	}
	if schedule.Tiered() {
		return calculateTiered(schedule, weight, pieces)
	}

	switch schedule.FeeType {
	case feetype.PerShipment:
		return schedule.Rate, nil
	case feetype.FirstLeg:
		return schedule.RatePerKg.Mul(weight), nil
	case feetype.LastLeg, feetype.DifferentialLine:
		return schedule.RatePerKg.Mul(weight).Add(schedule.RatePerPiece.Mul(pieces)), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported fee type %q", schedule.FeeType)
	}
}

// calculateTiered lifts the weight to the schedule's minimum and prices it
// with the band that contains it.
func calculateTiered(schedule *quotedomain.RateSchedule, weight, pieces decimal.Decimal) (decimal.Decimal, error) {
	effective := decimal.Max(weight, schedule.MinWeight)
	tier, ok := schedule.Tiers.Lookup(effective)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: weight %s outside (%s, %s]",
			ratingdomain.ErrOutOfRange,
			effective.String(),
			firstStart(schedule.Tiers).String(),
			schedule.Tiers.Ceiling().String(),
		)
	}
	return tier.RatePerKg.Mul(effective).Add(tier.RatePerPiece.Mul(pieces)), nil
}

func firstStart(t quotedomain.TierTable) decimal.Decimal {
	if len(t) == 0 {
		return decimal.Zero
	}
	return t[0].Start
}
