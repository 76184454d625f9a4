package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var feesJSON bool

var feesCmd = &cobra.Command{
	Use:   "fees",
	Short: "Estimate the current priority fee and print the speed tiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc := newFees(cfg.Solana, nil, log)
		est := svc.Refresh(ctx)
		tiers := svc.Tiers(ctx)
		if feesJSON {
			return printJSON(map[string]any{"estimate": est, "tiers": tiers})
		}
		fmt.Printf("unit price: %d micro-lamports/CU (%d samples)\n", est.UnitPrice, est.SampleSize)
		fmt.Printf("total fee:  %.9f SOL\n", est.TotalFee)
		for _, n := range est.Notes {
			fmt.Printf("  - %s\n", n)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIER\tUNIT PRICE\tCOST SOL\tSPEED")
		for _, t := range tiers {
			fmt.Fprintf(w, "%s\t%d\t%.9f\t%s\n", t.Level, t.UnitPrice, t.Cost, t.Speed)
		}
		return w.Flush()
	},
}

func init() {
	feesCmd.Flags().BoolVar(&feesJSON, "json", false, "print JSON")
}
