package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/contenthub/hubdispatch/internal/captions"
	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/engine"
	"github.com/contenthub/hubdispatch/internal/publisher"
)

// NewPublishCommand creates the publish command.
func NewPublishCommand(cfg config.Config, rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish due scheduled posts to their platforms",
		Long: `Publish selects scheduled posts whose time has come and dispatches each
one to its configured platforms. A post with at least one successful
platform is marked published; a post where every platform failed is
marked erro with a summary of the failures.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd, cfg, rootOpts)
		},
	}
}

func runPublish(cmd *cobra.Command, cfg config.Config, rootOpts *RootOptions) error {
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	opts := []engine.PublishOption{engine.WithDryRun(rootOpts.dryRun(cfg))}
	if cfg.OpenAIKey != "" {
		gen, err := captions.NewGenerator(cfg.OpenAIKey)
		if err != nil {
			return fmt.Errorf("configuring caption generator: %w", err)
		}
		opts = append(opts, engine.WithCaptionGenerator(gen))
	}

	e := engine.NewPublishEngine(st, publisher.NewRegistry(cfg), opts...)
	counters, err := e.Run(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("publish: batch finished", "published", counters.Succeeded, "failed", counters.Failed)

	// A partially successful batch is still a success; only a batch where
	// everything failed signals the scheduler.
	if counters.Failed > 0 && counters.Succeeded == 0 {
		return fmt.Errorf("all %d posts failed to publish", counters.Failed)
	}
	return nil
}
