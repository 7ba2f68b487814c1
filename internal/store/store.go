// Package store provides record store backends for hubdispatch.
//
// The primary backend speaks the Supabase PostgREST dialect; Postgres and
// SQLite backends cover self-hosted and local runs, and an in-memory store
// backs the tests. All backends implement the same Store interface.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contenthub/hubdispatch/internal/models"
)

// Store is the typed contract every backend implements. The engines never
// retry store calls; a failure is reported to the caller as-is.
type Store interface {
	// ListDuePosts returns scheduled posts due at or before now, oldest first.
	ListDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error)

	// MarkPost writes a post's final status for this run, stamped with the
	// caller's clock. errSummary is only written when non-empty.
	MarkPost(ctx context.Context, id string, status models.PostStatus, errSummary string, at time.Time) error

	// InsertPublication records one successful platform publish.
	InsertPublication(ctx context.Context, pub models.Publication) error

	// ListPendingPayouts returns pending payout requests, oldest first.
	ListPendingPayouts(ctx context.Context, limit int) ([]models.PayoutRequest, error)

	// MarkPayout writes a payout request's final status for this run,
	// stamped with the caller's clock. stripePayoutID is only written when
	// non-empty.
	MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error

	// ListAutoPayoutAccounts returns bank accounts enabled for automatic
	// payouts that have a Stripe account reference.
	ListAutoPayoutAccounts(ctx context.Context) ([]models.BankAccount, error)

	// HasAutoPayoutToday reports whether an auto-created payout request
	// already exists for the account on the given UTC calendar day, in a
	// status that still counts (pending, in_transit or paid).
	HasAutoPayoutToday(ctx context.Context, accountID string, dayUTC time.Time) (bool, error)

	// InsertPayoutRequest creates a new payout request and returns it with
	// the store-assigned id.
	InsertPayoutRequest(ctx context.Context, req models.PayoutRequest) (models.PayoutRequest, error)
}

// StoreError is returned on a non-2xx response from the REST backend. The
// caller decides whether the run can continue.
type StoreError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Opts holds configuration options for store backends.
type Opts struct {
	SupabaseURL string
	SupabaseKey string
	PostgresDSN string
	SQLitePath  string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSupabase configures the Supabase REST backend.
func WithSupabase(url, key string) Option {
	return func(o *Opts) { o.SupabaseURL = url; o.SupabaseKey = key }
}

// WithPostgresDSN configures the Postgres backend.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.PostgresDSN = dsn }
}

// WithSQLitePath configures the SQLite backend.
func WithSQLitePath(path string) Option {
	return func(o *Opts) { o.SQLitePath = path }
}

// New selects and opens a backend. Preference order: Supabase REST, then
// Postgres, then SQLite.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case cfg.SupabaseURL != "" && cfg.SupabaseKey != "":
		slog.Debug("store.New: using Supabase REST backend")
		return NewRestStore(opts...)
	case cfg.PostgresDSN != "":
		slog.Debug("store.New: using Postgres backend")
		return NewPostgresStore(opts...)
	case cfg.SQLitePath != "":
		slog.Debug("store.New: using SQLite backend")
		return NewSQLiteStore(opts...)
	default:
		slog.Error("store.New: no backend configured")
		return nil, models.ErrNoStoreConfigured
	}
}
