package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
)

// OrderNoChunkSize caps the number of identifiers bound to one IN clause.
const OrderNoChunkSize = 1000

var ErrInvalidFilter = errors.New("invalid_waybill_filter")

// Filter selects waybills for a recompute. Empty fields do not constrain.
// OrderTimeTo is a calendar day and includes that whole day.
type Filter struct {
	CustomerID    snowflake.ID
	SupplierID    snowflake.ID
	ProductID     snowflake.ID
	OrderTimeFrom *time.Time
	OrderTimeTo   *time.Time
	OrderNos      []string
	IDs           []snowflake.ID
}

func (f Filter) Validate() error {
	upper, ok := f.UpperBound()
	if ok && f.OrderTimeFrom != nil && !upper.After(*f.OrderTimeFrom) {
		return fmt.Errorf("%w: order_time_to before order_time_from", ErrInvalidFilter)
	}
	return nil
}

// UpperBound is the exclusive end of the OrderTimeTo day.
func (f Filter) UpperBound() (time.Time, bool) {
	if f.OrderTimeTo == nil {
		return time.Time{}, false
	}
	to := f.OrderTimeTo.UTC()
	day := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, 1), true
}

// OrderNoChunks splits the order number list into IN-clause sized groups.
func (f Filter) OrderNoChunks() [][]string {
	if len(f.OrderNos) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(f.OrderNos)+OrderNoChunkSize-1)/OrderNoChunkSize)
	for start := 0; start < len(f.OrderNos); start += OrderNoChunkSize {
		end := min(start+OrderNoChunkSize, len(f.OrderNos))
		chunks = append(chunks, f.OrderNos[start:end])
	}
	return chunks
}

// IDChunks returns the distinct ids greater than afterID, ascending, split
// into IN-clause sized groups.
func (f Filter) IDChunks(afterID snowflake.ID) [][]snowflake.ID {
	ids := make([]snowflake.ID, 0, len(f.IDs))
	for _, id := range f.IDs {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	chunks := make([][]snowflake.ID, 0, (len(ids)+OrderNoChunkSize-1)/OrderNoChunkSize)
	for start := 0; start < len(ids); start += OrderNoChunkSize {
		end := min(start+OrderNoChunkSize, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// PeriodQuery selects the waybills billed to one side within [From, To).
type PeriodQuery struct {
	From            time.Time
	To              time.Time
	CustomerColumn  string
	CounterpartyIDs []snowflake.ID
	Supplier        bool
}
