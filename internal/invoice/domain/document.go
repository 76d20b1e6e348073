package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/cargoledger/internal/feetype"
	"github.com/shopspring/decimal"
)

// Document is everything a generator needs to render one invoice.
type Document struct {
	Side             Side
	InvoiceID        snowflake.ID
	CounterpartyID   snowflake.ID
	CounterpartyName string
	FeeType          feetype.FeeType
	Period           Period
	Amount           decimal.Decimal
	Lines            []LineItem
	IssuedAt         time.Time
}

// DocumentGenerator persists a downloadable rendition of an invoice and
// returns a reference to it.
type DocumentGenerator interface {
	Generate(ctx context.Context, doc Document) (string, error)
	// Remove deletes a previously generated document. Unknown refs are not an error.
	Remove(ctx context.Context, ref string) error
}
