package render

import (
	"fmt"

	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/railzwaylabs/cargoledger/internal/invoice/domain"
)

var (
	titleStyle  = props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Center}
	headerStyle = props.Text{Size: 8, Style: fontstyle.Bold}
	cellStyle   = props.Text{Size: 8}
	amountStyle = props.Text{Size: 8, Align: align.Right}
	totalStyle  = props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}
)

func title(doc domain.Document) string {
	if doc.Side == domain.SideSupplier {
		return "Supplier Statement"
	}
	return "Customer Invoice"
}

func rows(doc domain.Document) []core.Row {
	out := []core.Row{
		text.NewRow(12, title(doc), titleStyle),
		row.New(6).Add(
			text.NewCol(6, "Counterparty: "+doc.CounterpartyName, cellStyle),
			text.NewCol(6, "Period: "+string(doc.Period), amountStyle),
		),
	}
	if doc.FeeType != "" {
		out = append(out, row.New(6).Add(
			text.NewCol(6, "Fee type: "+string(doc.FeeType), cellStyle),
			text.NewCol(6, "Issued: "+doc.IssuedAt.UTC().Format("2006-01-02"), amountStyle),
		))
	} else {
		out = append(out, row.New(6).Add(
			text.NewCol(12, "Issued: "+doc.IssuedAt.UTC().Format("2006-01-02"), amountStyle),
		))
	}
	out = append(out,
		line.NewRow(4),
		row.New(6).Add(
			text.NewCol(3, "Order no", headerStyle),
			text.NewCol(2, "Transfer no", headerStyle),
			text.NewCol(2, "Date", headerStyle),
			text.NewCol(2, "Product", headerStyle),
			text.NewCol(1, "Weight", headerStyle),
			text.NewCol(2, "Amount", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}),
		),
	)
	for _, l := range doc.Lines {
		out = append(out, row.New(5).Add(
			text.NewCol(3, l.OrderNo, cellStyle),
			text.NewCol(2, l.TransferNo, cellStyle),
			text.NewCol(2, l.OrderTime.Format("2006-01-02"), cellStyle),
			text.NewCol(2, l.ProductName, cellStyle),
			text.NewCol(1, l.Weight, cellStyle),
			text.NewCol(2, l.Amount, amountStyle),
		))
	}
	out = append(out,
		line.NewRow(4),
		row.New(8).Add(
			text.NewCol(8, fmt.Sprintf("%d shipments", len(doc.Lines)), cellStyle),
			text.NewCol(4, "Total "+doc.Amount.StringFixed(2), totalStyle),
		),
	)
	return out
}
