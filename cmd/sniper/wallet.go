package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"solsniper/internal/db"
	"solsniper/internal/execution"
	"solsniper/internal/notify"
	"solsniper/internal/wallet"
)

var (
	walletCount  int
	walletPrefix string
	walletAmount string
	walletDest   string
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage wallet batches",
}

var walletCreateCmd = &cobra.Command{
	Use:   "create <batch>",
	Short: "Generate a batch of fresh keypairs",
	Args:  cobra.ExactArgs(1),
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, _ execution.Account, args []string) error {
		b, err := c.Create(ctx, args[0], walletCount, walletPrefix)
		if err != nil {
			return err
		}
		return printJSON(b)
	}),
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List wallet batches",
	Args:  cobra.NoArgs,
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, _ execution.Account, _ []string) error {
		items, err := c.List(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "BATCH\tACCOUNTS\tCREATED")
		for _, b := range items {
			fmt.Fprintf(w, "%s\t%d\t%s\n", b.Name, len(b.Accounts), b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	}),
}

var walletBalancesCmd = &cobra.Command{
	Use:   "balances <batch>",
	Short: "Show SOL balances of every account in a batch",
	Args:  cobra.ExactArgs(1),
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, _ execution.Account, args []string) error {
		items, err := c.Balances(ctx, args[0])
		if err != nil && !errors.Is(err, wallet.ErrAllFailed) {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "LABEL\tADDRESS\tSOL\tERROR")
		total := decimal.Zero
		for _, b := range items {
			total = total.Add(b.SOL)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Label, b.Address, b.SOL.StringFixed(6), b.Error)
		}
		fmt.Fprintf(w, "TOTAL\t\t%s\t\n", total.StringFixed(6))
		if ferr := w.Flush(); ferr != nil {
			return ferr
		}
		return err
	}),
}

var walletFundCmd = &cobra.Command{
	Use:   "fund <batch>",
	Short: "Send SOL from the main account to every account in a batch",
	Args:  cobra.ExactArgs(1),
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, funder execution.Account, args []string) error {
		if funder.Secret == "" {
			return errors.New("solana.private_key is required to fund a batch")
		}
		amount, err := decimal.NewFromString(walletAmount)
		if err != nil {
			return fmt.Errorf("invalid --amount: %w", err)
		}
		res, err := c.Fund(ctx, args[0], funder, amount)
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err
	}),
}

var walletSweepCmd = &cobra.Command{
	Use:   "sweep <batch>",
	Short: "Return every account's SOL to a destination, keeping rent behind",
	Args:  cobra.ExactArgs(1),
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, funder execution.Account, args []string) error {
		dest := walletDest
		if dest == "" {
			dest = funder.Address
		}
		if dest == "" {
			return errors.New("--to is required without solana.private_key")
		}
		res, err := c.Sweep(ctx, args[0], dest)
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err
	}),
}

var walletDeleteCmd = &cobra.Command{
	Use:   "delete <batch>",
	Short: "Forget a batch. Sweep it first: deleted keys are gone",
	Args:  cobra.ExactArgs(1),
	RunE: withCoordinator(func(ctx context.Context, c *wallet.Coordinator, _ execution.Account, args []string) error {
		return c.Delete(ctx, args[0])
	}),
}

func init() {
	walletCreateCmd.Flags().IntVar(&walletCount, "count", 5, "number of accounts to generate")
	walletCreateCmd.Flags().StringVar(&walletPrefix, "prefix", "", "account label prefix (default wallet)")
	walletFundCmd.Flags().StringVar(&walletAmount, "amount", "0.01", "SOL per account")
	walletSweepCmd.Flags().StringVar(&walletDest, "to", "", "destination address (default main account)")
	walletCmd.AddCommand(walletCreateCmd, walletListCmd, walletBalancesCmd, walletFundCmd, walletSweepCmd, walletDeleteCmd)
}

// withCoordinator opens storage and builds a coordinator for one command.
// Batches only persist across invocations when a DB is configured.
func withCoordinator(fn func(ctx context.Context, c *wallet.Coordinator, funder execution.Account, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		repo, conn, err := openRepo(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close(conn)
		acct, err := mainAccount(cfg.Solana)
		if err != nil {
			return err
		}
		exec, err := newExecutor(cfg, acct)
		if err != nil {
			return err
		}
		c := newCoordinator(cfg, repo, exec, notify.Log{Logger: log}, nil, log)
		return fn(ctx, c, acct, args)
	}
}
