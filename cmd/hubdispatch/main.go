package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/contenthub/hubdispatch/internal/cli"
	"github.com/contenthub/hubdispatch/internal/config"
)

func main() {
	// Initialize structured logger; the root command tightens the level
	// once flags are parsed.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg := config.Load()

	if err := cli.NewRootCommand(cfg).Execute(); err != nil {
		slog.Error("hubdispatch failed", "error", err)
		os.Exit(1)
	}
}
