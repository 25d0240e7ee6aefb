package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/config"
	"github.com/b0ase/path402/apps/clawwallet/internal/gateway"
	"github.com/b0ase/path402/apps/clawwallet/internal/ledger"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	server     string
	user       string
	timeout    time.Duration
}

// session resolves config and flags into an engine for one command.
func (o *options) session() (*reconcile.Engine, ledger.Identity, error) {
	path := o.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if o.server != "" {
		cfg.Server.URL = o.server
	}
	if o.user != "" {
		cfg.Wallet.Username = o.user
	}
	if o.timeout > 0 {
		cfg.Server.Timeout = o.timeout
	}
	id := ledger.Identity(cfg.Wallet.Username)
	gw := gateway.NewHTTPClient(cfg.Server.URL, cfg.Server.Timeout)
	return reconcile.New(ledger.NewStore(id), gw, nil), id, nil
}

// load fetches balance and history; a partial failure is reported but
// does not stop the command.
func load(ctx context.Context, e *reconcile.Engine, id ledger.Identity, errOut io.Writer) {
	if err := e.LoadInitialState(ctx, id); err != nil {
		fmt.Fprintf(errOut, "warning: %v\n", err)
	}
}

func RootCommand() *cobra.Command {
	o := &options{}
	rootCmd := &cobra.Command{
		Use:           "clawwallet",
		Short:         "Command-line client for the ledger backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&o.configPath, "config", "c", "", "path to clawwallet.yaml")
	rootCmd.PersistentFlags().StringVarP(&o.server, "server", "s", "", "ledger backend URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&o.user, "user", "u", "", "identity to act as (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 0, "per-request timeout (overrides config)")

	balance := &cobra.Command{
		Use:   "balance",
		Short: "show the identity's balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, id, err := o.session()
			if err != nil {
				return err
			}
			load(cmd.Context(), e, id, cmd.ErrOrStderr())
			snap := e.Store().Snapshot()
			if !snap.BalanceLoaded {
				return fmt.Errorf("balance for %s unavailable", id)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", snap.Identity, snap.Balance)
			return nil
		},
	}
	rootCmd.AddCommand(balance)

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "list confirmed transactions involving the identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, id, err := o.session()
			if err != nil {
				return err
			}
			load(cmd.Context(), e, id, cmd.ErrOrStderr())
			snap := e.Store().Snapshot()
			if !snap.TransactionsLoaded {
				return fmt.Errorf("history for %s unavailable", id)
			}
			txs := snap.Transactions
			if limit > 0 && len(txs) > limit {
				txs = txs[len(txs)-limit:]
			}
			out := cmd.OutOrStdout()
			for _, tx := range txs {
				fmt.Fprintf(out, "%-16s -> %-16s %s\n", tx.Sender, tx.Recipient, tx.Amount)
			}
			fmt.Fprintf(out, "%d transactions, balance %s\n", len(snap.Transactions), snap.Balance)
			return nil
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 0, "show only the most recent N transactions")
	rootCmd.AddCommand(history)

	rename := &cobra.Command{
		Use:   "rename NEW",
		Short: "rename the identity on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, id, err := o.session()
			if err != nil {
				return err
			}
			if err := e.RenameIdentity(cmd.Context(), ledger.Identity(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s -> %s\n", id, e.Store().Identity())
			return nil
		},
	}
	rootCmd.AddCommand(rename)

	send := &cobra.Command{
		Use:   "send RECIPIENT AMOUNT",
		Short: "submit a transfer; it is confirmed by a later mining round",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("amount %q is not a number", args[1])
			}
			e, id, err := o.session()
			if err != nil {
				return err
			}
			load(cmd.Context(), e, id, cmd.ErrOrStderr())
			ack, err := e.SendTransaction(cmd.Context(), ledger.Identity(args[0]), amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack.Message)
			return nil
		},
	}
	rootCmd.AddCommand(send)

	mine := &cobra.Command{
		Use:   "mine",
		Short: "run one mining round and show what it settled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, id, err := o.session()
			if err != nil {
				return err
			}
			load(cmd.Context(), e, id, cmd.ErrOrStderr())
			s, err := e.StartMining(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "block settled: %d of %d transactions involve %s, delta %s\n",
				len(s.Applied), s.Observed, s.Identity, s.Delta)
			fmt.Fprintf(out, "balance %s\n", e.Store().Balance())
			return nil
		},
	}
	rootCmd.AddCommand(mine)

	return rootCmd
}
