package service

import (
	"fmt"

	"github.com/railzwaylabs/cargoledger/internal/feetype"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
	ratingdomain "github.com/railzwaylabs/cargoledger/internal/rating/domain"
	"github.com/shopspring/decimal"
)

// Rate computes every applicable component of a shipment. Each component is
// resolved independently: a failure leaves only that component unset.
func (b *Book) Rate(shipment ratingdomain.Shipment) *ratingdomain.Outcome {
	out := ratingdomain.NewOutcome()
	pieces := shipment.PieceCount()
	product, hasProduct := b.Product(shipment.ProductID)

	applicable := make(map[feetype.FeeType]bool, len(feetype.All))
	for _, ft := range feetype.All {
		customerID := shipment.Customers[ft]
		if customerID == 0 {
			continue
		}
		component := ratingdomain.CustomerComponent(ft)
		if ft.RequiresProducts() {
			if !hasProduct {
				out.Fail(component, ratingdomain.ErrUncovered, fmt.Sprintf("product %s not found", shipment.ProductID))
				applicable[ft] = true
				continue
			}
			if !product.Participates(ft) {
				continue
			}
		}
		applicable[ft] = true

		customer, ok := b.Customer(customerID)
		if !ok {
			out.Fail(component, ratingdomain.ErrUncovered, fmt.Sprintf("customer %s not found", customerID))
			continue
		}
		if !customer.Eligible(ft) {
			out.Fail(component, ratingdomain.ErrUncovered, fmt.Sprintf("customer %s not eligible for %s", customer.ShortName, ft))
			continue
		}

		schedule := b.Resolve(quotedomain.SideCustomer, customerID, ft, shipment.ProductID, shipment.OrderTime)
		b.price(out, component, schedule, shipment, pieces, fmt.Sprintf("no %s quote for customer %s", ft, customer.ShortName))
	}

	if shipment.SupplierID != 0 {
		schedule := b.Resolve(quotedomain.SideSupplier, shipment.SupplierID, feetype.DifferentialLine, shipment.ProductID, shipment.OrderTime)
		b.price(out, ratingdomain.ComponentSupplierCost, schedule, shipment, pieces, fmt.Sprintf("no supplier quote for supplier %s", shipment.SupplierID))
	}

	deriveDifferential(out, applicable)
	return out
}

func (b *Book) price(
	out *ratingdomain.Outcome,
	component ratingdomain.Component,
	schedule *quotedomain.RateSchedule,
	shipment ratingdomain.Shipment,
	pieces decimal.Decimal,
	uncoveredDetail string,
) {
	if schedule == nil {
		out.Fail(component, ratingdomain.ErrUncovered, fmt.Sprintf("%s at %s", uncoveredDetail, shipment.OrderTime.UTC().Format("2006-01-02 15:04:05")))
		return
	}
	amount, err := Calculate(schedule, shipment.Weight, pieces)
	if err != nil {
		out.Fail(component, err, "schedule "+schedule.Name)
		return
	}
	out.Amounts[component] = roundAmount(amount)
	out.Schedules[component] = schedule.ID
}

// deriveDifferential computes the differential margin
// supplier_cost - first_leg_fee - last_leg_fee + dedicated_line_fee from the
// rounded components. Legs that do not apply count as zero; a leg that
// applies but failed leaves the margin unset.
func deriveDifferential(out *ratingdomain.Outcome, applicable map[feetype.FeeType]bool) {
	if !applicable[feetype.DifferentialLine] {
		return
	}
	dedicated, ok := out.Amount(ratingdomain.ComponentDedicatedLineFee)
	if !ok {
		return
	}
	cost, ok := out.Amount(ratingdomain.ComponentSupplierCost)
	if !ok {
		return
	}
	margin := cost.Add(dedicated)
	for _, leg := range []feetype.FeeType{feetype.FirstLeg, feetype.LastLeg} {
		if !applicable[leg] {
			continue
		}
		fee, ok := out.Amount(ratingdomain.CustomerComponent(leg))
		if !ok {
			return
		}
		margin = margin.Sub(fee)
	}
	out.Amounts[ratingdomain.ComponentDifferentialFee] = margin
}
