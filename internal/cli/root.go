// Package cli wires the hubdispatch commands. Each subcommand resolves its
// dependencies from the environment-derived configuration, runs one batch,
// and exits; scheduling is the operator's job (cron, systemd timers).
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	DryRun  bool
}

// NewRootCommand creates the root command for the hubdispatch CLI.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hubdispatch",
		Short: "ContentHub batch dispatcher",
		Long: `hubdispatch runs ContentHub's periodic batches: publishing scheduled
posts to their social platforms and paying out creator balances through
Stripe. Each invocation processes one batch and exits.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "log intended actions without writing anything")

	cmd.AddCommand(NewPublishCommand(cfg, opts))
	cmd.AddCommand(NewPayoutCommand(cfg, opts))

	return cmd
}

// dryRun combines the environment switch with the command line flag; either
// one forces a dry run.
func (o *RootOptions) dryRun(cfg config.Config) bool {
	return o.DryRun || cfg.DryRun
}

// openStore builds the record store from the configured backend.
func openStore(cfg config.Config) (store.Store, error) {
	return store.New(
		store.WithSupabase(cfg.SupabaseURL, cfg.SupabaseKey),
		store.WithPostgresDSN(cfg.DatabaseURL),
		store.WithSQLitePath(cfg.SQLitePath),
	)
}
