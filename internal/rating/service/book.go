package service

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/railzwaylabs/cargoledger/internal/customer/domain"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	productdomain "github.com/railzwaylabs/cargoledger/internal/product/domain"
	quotedomain "github.com/railzwaylabs/cargoledger/internal/quote/domain"
)

type scheduleKey struct {
	side           quotedomain.Side
	counterpartyID snowflake.ID
	feeType        feetype.FeeType
}

// Book is an immutable snapshot of rate schedules and the master data the
// rater consults. It is safe for concurrent use.
type Book struct {
	schedules map[scheduleKey][]*quotedomain.RateSchedule
	products  map[snowflake.ID]productdomain.Product
	customers map[snowflake.ID]customerdomain.Customer
}

func NewBook(
	schedules []*quotedomain.RateSchedule,
	products []productdomain.Product,
	customers []customerdomain.Customer,
) *Book {
	b := &Book{
		schedules: make(map[scheduleKey][]*quotedomain.RateSchedule),
		products:  make(map[snowflake.ID]productdomain.Product, len(products)),
		customers: make(map[snowflake.ID]customerdomain.Customer, len(customers)),
	}
	for _, s := range schedules {
		if s == nil {
			continue
		}
		snapshot := *s
		if snapshot.Side == quotedomain.SideSupplier {
			snapshot.Tiers = s.Tiers.Sorted()
		}
		key := scheduleKey{side: snapshot.Side, counterpartyID: snapshot.CounterpartyID, feeType: snapshot.FeeType}
		b.schedules[key] = append(b.schedules[key], &snapshot)
	}
	for key := range b.schedules {
		sortByPrecedence(b.schedules[key])
	}
	for _, p := range products {
		b.products[p.ID] = p
	}
	for _, c := range customers {
		b.customers[c.ID] = c
	}
	return b
}

// sortByPrecedence orders candidates so the first covering schedule wins:
// latest ValidFrom first, then highest ID.
func sortByPrecedence(items []*quotedomain.RateSchedule) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ValidFrom.Equal(items[j].ValidFrom) {
			return items[i].ValidFrom.After(items[j].ValidFrom)
		}
		return items[i].ID > items[j].ID
	})
}

// Resolve returns the effective schedule for the counterparty and fee type at
// the given instant, or nil when none is in effect. productID is ignored for
// fee types that are not product scoped.
func (b *Book) Resolve(side quotedomain.Side, counterpartyID snowflake.ID, ft feetype.FeeType, productID snowflake.ID, at time.Time) *quotedomain.RateSchedule {
	for _, s := range b.schedules[scheduleKey{side: side, counterpartyID: counterpartyID, feeType: ft}] {
		if !s.Covers(at) {
			continue
		}
		if !s.AppliesToProduct(productID) {
			continue
		}
		return s
	}
	return nil
}

func (b *Book) Product(id snowflake.ID) (productdomain.Product, bool) {
	p, ok := b.products[id]
	return p, ok
}

func (b *Book) Customer(id snowflake.ID) (customerdomain.Customer, bool) {
	c, ok := b.customers[id]
	return c, ok
}
