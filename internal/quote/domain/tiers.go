package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// TierTable is the ordered set of weight bands of one supplier schedule.
type TierTable []Tier

// Sorted returns a copy ordered by Start.
func (t TierTable) Sorted() TierTable {
	out := make(TierTable, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.LessThan(out[j].Start)
	})
	return out
}

// Lookup returns the band with Start < weight <= End. The table must be
// sorted and contiguous, which Validate guarantees for stored schedules.
func (t TierTable) Lookup(weight decimal.Decimal) (Tier, bool) {
	i := sort.Search(len(t), func(i int) bool {
		return t[i].End.GreaterThanOrEqual(weight)
	})
	if i < len(t) && t[i].Contains(weight) {
		return t[i], true
	}
	return Tier{}, false
}

// Ceiling is the largest weight the table can price.
func (t TierTable) Ceiling() decimal.Decimal {
	if len(t) == 0 {
		return decimal.Zero
	}
	return t[len(t)-1].End
}

// Validate checks the bands are non-empty, non-overlapping and contiguous
// when ordered by Start.
func (t TierTable) Validate() error {
	if len(t) == 0 {
		return configError("tiers", ErrMissingTiers)
	}
	sorted := t.Sorted()
	for i, tier := range sorted {
		field := fmt.Sprintf("tiers[%d]", i)
		if tier.Start.IsNegative() {
			return configError(field+".start", ErrInvalidTierBounds)
		}
		if !tier.End.GreaterThan(tier.Start) {
			return configError(field+".end", ErrInvalidTierBounds)
		}
		if tier.RatePerKg.IsNegative() || tier.RatePerPiece.IsNegative() {
			return configError(field, ErrNegativeRate)
		}
		if tier.RatePerKg.IsZero() && tier.RatePerPiece.IsZero() {
			return configError(field, ErrZeroRates)
		}
		if i > 0 && !sorted[i-1].End.Equal(tier.Start) {
			return configError(field+".start", ErrTiersNotContiguous)
		}
	}
	return nil
}
