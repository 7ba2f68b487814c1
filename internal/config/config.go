// Package config resolves the process configuration once at startup.
//
// Every credential and tunable is read here and handed to the engines and
// adapters at construction time; nothing else in the codebase touches the
// environment.
package config

import (
	"log/slog"
	"os"

	"github.com/contenthub/hubdispatch/internal/util"
)

// DefaultPayoutMinAmount is the minimum connected-account balance, in minor
// currency units, that triggers an automatic payout request.
const DefaultPayoutMinAmount = 1000

// DefaultPayoutCurrency is the currency assumed when a payout row or the
// platform sweep does not specify one.
const DefaultPayoutCurrency = "eur"

// Config holds the full configuration for one run. It is resolved once in
// main and immutable afterwards.
type Config struct {
	// Record store. The first configured backend wins: Supabase REST, then
	// Postgres, then SQLite.
	SupabaseURL string
	SupabaseKey string
	DatabaseURL string
	SQLitePath  string

	// Publishing platform credentials. Each one is independently optional;
	// a missing token disables that platform, it is not an error.
	InstagramToken string
	FacebookToken  string
	TikTokToken    string
	YouTubeToken   string

	// Optional caption generation for posts scheduled without one.
	OpenAIKey string

	// Payouts.
	StripeSecretKey     string
	PayoutMinAmount     int64
	PayoutCurrency      string
	PlatformDestination string
	SkipCollect         bool
	SkipProcess         bool
	SkipSweep           bool

	// DryRun can also be forced from the environment; the --dry-run flag
	// ORs on top of it.
	DryRun bool
}

// Load reads the configuration from the environment.
func Load() Config {
	cfg := Config{
		SupabaseURL:         os.Getenv("SUPABASE_URL"),
		SupabaseKey:         os.Getenv("SUPABASE_KEY"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		SQLitePath:          os.Getenv("SQLITE_PATH"),
		InstagramToken:      os.Getenv("INSTAGRAM_TOKEN"),
		FacebookToken:       os.Getenv("FACEBOOK_TOKEN"),
		TikTokToken:         os.Getenv("TIKTOK_TOKEN"),
		YouTubeToken:        os.Getenv("YOUTUBE_TOKEN"),
		OpenAIKey:           os.Getenv("OPENAI_API_KEY"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		PayoutMinAmount:     util.ParseInt64Env("PAYOUT_MIN_AMOUNT", DefaultPayoutMinAmount),
		PayoutCurrency:      os.Getenv("PAYOUT_CURRENCY"),
		PlatformDestination: os.Getenv("PAYOUT_PLATFORM_DESTINATION"),
		SkipCollect:         util.ParseBoolEnv("PAYOUT_SKIP_COLLECT", false),
		SkipProcess:         util.ParseBoolEnv("PAYOUT_SKIP_PROCESS", false),
		SkipSweep:           util.ParseBoolEnv("PAYOUT_SKIP_SWEEP", false),
		DryRun:              util.ParseBoolEnv("DRY_RUN", false),
	}
	if cfg.PayoutCurrency == "" {
		cfg.PayoutCurrency = DefaultPayoutCurrency
	}

	slog.Debug("Config.Load: configuration resolved",
		"supabase_set", cfg.SupabaseURL != "" && cfg.SupabaseKey != "",
		"database_url_set", cfg.DatabaseURL != "",
		"sqlite_path_set", cfg.SQLitePath != "",
		"instagram_set", cfg.InstagramToken != "",
		"facebook_set", cfg.FacebookToken != "",
		"tiktok_set", cfg.TikTokToken != "",
		"youtube_set", cfg.YouTubeToken != "",
		"openai_set", cfg.OpenAIKey != "",
		"stripe_set", cfg.StripeSecretKey != "",
		"payout_min_amount", cfg.PayoutMinAmount,
		"platform_destination_set", cfg.PlatformDestination != "")
	return cfg
}
