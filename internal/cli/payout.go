package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/engine"
	"github.com/contenthub/hubdispatch/internal/stripepay"
)

// NewPayoutCommand creates the payout command.
func NewPayoutCommand(cfg config.Config, rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "payout",
		Short: "Run the three-phase creator payout pipeline",
		Long: `Payout runs the payout pipeline against Stripe: collect automatic payout
requests from creator account balances, process pending requests, and
sweep the platform's own balance to its destination. Individual phases
can be skipped via SKIP_COLLECT, SKIP_PROCESS and SKIP_SWEEP.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPayout(cmd, cfg, rootOpts)
		},
	}
}

func runPayout(cmd *cobra.Command, cfg config.Config, rootOpts *RootOptions) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	stripe, err := stripepay.NewClient(stripepay.WithSecretKey(cfg.StripeSecretKey))
	if err != nil {
		return fmt.Errorf("configuring stripe client: %w", err)
	}

	e := engine.NewPayoutEngine(st, stripe, cfg, engine.WithPayoutDryRun(rootOpts.dryRun(cfg)))
	counters, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("payout: run finished",
		"collected", counters.Collect.Succeeded,
		"processed", counters.Process.Succeeded,
		"swept", counters.Sweep.Succeeded,
		"failures", counters.Failures())

	if failures := counters.Failures(); failures > 0 {
		return fmt.Errorf("%d payout operations failed", failures)
	}
	return nil
}
