package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	invoicedomain "github.com/railzwaylabs/cargoledger/internal/invoice/domain"
	recomputedomain "github.com/railzwaylabs/cargoledger/internal/recompute/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newRecomputeCmd(flags *rootFlags) *cobra.Command {
	var (
		req     recomputedomain.Request
		from    string
		to      string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute waybill fees synchronously and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.OrderTimeFrom, err = parseOptionalTime("from", from); err != nil {
				return err
			}
			if req.OrderTimeTo, err = parseOptionalTime("to", to); err != nil {
				return err
			}
			if _, err := req.Filter(); err != nil {
				return err
			}

			var result *recomputedomain.Result
			err = oneShot(flags.configFile, timeout, func(lc fx.Lifecycle, svc recomputedomain.Service) {
				lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
					res, runErr := svc.Recompute(ctx, req)
					result = res
					return runErr
				}})
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&req.CustomerID, "customer", "", "only waybills referencing this customer")
	cmd.Flags().StringVar(&req.SupplierID, "supplier", "", "only waybills carried by this supplier")
	cmd.Flags().StringVar(&req.ProductID, "product", "", "only waybills of this product")
	cmd.Flags().StringVar(&from, "from", "", "order time lower bound, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "order time upper bound, RFC3339 or YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&req.OrderNos, "order-no", nil, "explicit order numbers")
	cmd.Flags().StringSliceVar(&req.IDs, "id", nil, "explicit waybill ids")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "abort the run after this long")
	return cmd
}

func newGenerateInvoicesCmd(flags *rootFlags) *cobra.Command {
	var (
		req     invoicedomain.GenerateRequest
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate-invoices",
		Short: "Generate invoices for a billing period synchronously",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *invoicedomain.GenerateResult
			err := oneShot(flags.configFile, timeout, func(lc fx.Lifecycle, svc invoicedomain.Service) {
				lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
					res, runErr := svc.GenerateInvoices(ctx, req)
					result = res
					return runErr
				}})
			})
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().StringVar(&req.Period, "period", "", "billing period YYYY-MM")
	cmd.Flags().StringVar(&req.Side, "side", "", "customer, supplier or empty for both")
	cmd.Flags().StringSliceVar(&req.CounterpartyIDs, "counterparty", nil, "restrict to these counterparty ids")
	cmd.Flags().StringSliceVar(&req.FeeTypes, "fee-type", nil, "restrict customer invoices to these fee types")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "abort the run after this long")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func parseOptionalTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("--%s: expected RFC3339 or YYYY-MM-DD, got %q", name, value)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
