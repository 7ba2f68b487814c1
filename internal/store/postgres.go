// Package store provides record store backends for hubdispatch.
//
// This file implements a PostgreSQL-backed store for self-hosted deployments.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/contenthub/hubdispatch/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.PostgresDSN != "")
	dsn := cfg.PostgresDSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, platforms, caption, hashtags, image_url, video_url, avatar_id, avatar_niche, scheduled_for, last_error
		 FROM posts WHERE status = $1 AND scheduled_for <= $2 ORDER BY scheduled_for ASC LIMIT $3`,
		models.PostStatusScheduled, now.UTC(), limit)
	if err != nil {
		slog.Error("PostgresStore ListDuePosts query failed", "error", err)
		return nil, fmt.Errorf("failed to query due posts: %w", err)
	}
	defer rows.Close()
	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var platforms []byte
		if err := rows.Scan(&p.ID, &p.Status, &platforms, &p.Caption, &p.Hashtags, &p.ImageURL, &p.VideoURL, &p.AvatarID, &p.AvatarNiche, &p.ScheduledFor, &p.LastError); err != nil {
			slog.Error("PostgresStore ListDuePosts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		if err := json.Unmarshal(platforms, &p.Platforms); err != nil {
			slog.Error("PostgresStore ListDuePosts platforms decode failed", "error", err, "post", p.ID)
			return nil, fmt.Errorf("failed to decode platforms for post %s: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	slog.Debug("PostgresStore.ListDuePosts succeeded", "count", len(posts))
	return posts, nil
}

func (s *PostgresStore) MarkPost(ctx context.Context, id string, status models.PostStatus, errSummary string, at time.Time) error {
	var err error
	if errSummary != "" {
		_, err = s.db.ExecContext(ctx, `UPDATE posts SET status = $1, last_error = $2, updated_at = $3 WHERE id = $4`, status, errSummary, at.UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`, status, at.UTC(), id)
	}
	if err != nil {
		slog.Error("PostgresStore MarkPost failed", "error", err, "post", id)
		return fmt.Errorf("failed to mark post %s: %w", id, err)
	}
	slog.Info("PostgresStore.MarkPost succeeded", "post", id, "status", status)
	return nil
}

func (s *PostgresStore) InsertPublication(ctx context.Context, pub models.Publication) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (id, post_id, avatar_id, platform, external_id, url, published_at, likes, comments, views)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, 0, 0, 0)`,
		pub.PostID, pub.AvatarID, pub.Platform, pub.ExternalID, pub.URL, pub.PublishedAt)
	if err != nil {
		slog.Error("PostgresStore InsertPublication failed", "error", err, "post", pub.PostID, "platform", pub.Platform)
		return fmt.Errorf("failed to insert publication for post %s: %w", pub.PostID, err)
	}
	slog.Debug("PostgresStore.InsertPublication succeeded", "post", pub.PostID, "platform", pub.Platform)
	return nil
}

func (s *PostgresStore) ListPendingPayouts(ctx context.Context, limit int) ([]models.PayoutRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, account_id, stripe_account_id, amount, currency, description, stripe_payout_id, auto_created, created_at
		 FROM payout_requests WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		models.PayoutStatusPending, limit)
	if err != nil {
		slog.Error("PostgresStore ListPendingPayouts query failed", "error", err)
		return nil, fmt.Errorf("failed to query pending payouts: %w", err)
	}
	defer rows.Close()
	var reqs []models.PayoutRequest
	for rows.Next() {
		var r models.PayoutRequest
		if err := rows.Scan(&r.ID, &r.Status, &r.AccountID, &r.StripeAccountID, &r.Amount, &r.Currency, &r.Description, &r.StripePayoutID, &r.AutoCreated, &r.CreatedAt); err != nil {
			slog.Error("PostgresStore ListPendingPayouts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout rows: %w", err)
	}
	slog.Debug("PostgresStore.ListPendingPayouts succeeded", "count", len(reqs))
	return reqs, nil
}

func (s *PostgresStore) MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error {
	var err error
	if stripePayoutID != "" {
		_, err = s.db.ExecContext(ctx, `UPDATE payout_requests SET status = $1, stripe_payout_id = $2, updated_at = $3 WHERE id = $4`, status, stripePayoutID, at.UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE payout_requests SET status = $1, updated_at = $2 WHERE id = $3`, status, at.UTC(), id)
	}
	if err != nil {
		slog.Error("PostgresStore MarkPayout failed", "error", err, "payout_request", id)
		return fmt.Errorf("failed to mark payout request %s: %w", id, err)
	}
	slog.Info("PostgresStore.MarkPayout succeeded", "payout_request", id, "status", status)
	return nil
}

func (s *PostgresStore) ListAutoPayoutAccounts(ctx context.Context) ([]models.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stripe_account_id, currency, auto_payout_enabled, holder_name, country
		 FROM bank_accounts WHERE auto_payout_enabled AND stripe_account_id <> ''`)
	if err != nil {
		slog.Error("PostgresStore ListAutoPayoutAccounts query failed", "error", err)
		return nil, fmt.Errorf("failed to query auto payout accounts: %w", err)
	}
	defer rows.Close()
	var accounts []models.BankAccount
	for rows.Next() {
		var a models.BankAccount
		if err := rows.Scan(&a.ID, &a.StripeAccountID, &a.Currency, &a.AutoPayoutEnabled, &a.HolderName, &a.Country); err != nil {
			return nil, fmt.Errorf("failed to scan bank account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bank account rows: %w", err)
	}
	slog.Debug("PostgresStore.ListAutoPayoutAccounts succeeded", "count", len(accounts))
	return accounts, nil
}

func (s *PostgresStore) HasAutoPayoutToday(ctx context.Context, accountID string, dayUTC time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM payout_requests
		   WHERE account_id = $1 AND auto_created AND created_at >= $2 AND created_at < $3 AND status IN ($4, $5, $6)
		 )`,
		accountID, dayUTC.UTC(), dayUTC.UTC().Add(24*time.Hour),
		models.PayoutStatusPending, models.PayoutStatusInTransit, models.PayoutStatusPaid).Scan(&exists)
	if err != nil {
		slog.Error("PostgresStore HasAutoPayoutToday query failed", "error", err, "account", accountID)
		return false, fmt.Errorf("failed to check auto payout for account %s: %w", accountID, err)
	}
	return exists, nil
}

func (s *PostgresStore) InsertPayoutRequest(ctx context.Context, req models.PayoutRequest) (models.PayoutRequest, error) {
	created := req
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO payout_requests (id, status, account_id, stripe_account_id, amount, currency, description, auto_created, created_at, updated_at)
		 VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $8) RETURNING id`,
		req.Status, req.AccountID, req.StripeAccountID, req.Amount, req.Currency, req.Description, req.AutoCreated, req.CreatedAt.UTC()).Scan(&created.ID)
	if err != nil {
		slog.Error("PostgresStore InsertPayoutRequest failed", "error", err, "account", req.AccountID)
		return models.PayoutRequest{}, fmt.Errorf("failed to insert payout request for account %s: %w", req.AccountID, err)
	}
	slog.Info("PostgresStore.InsertPayoutRequest succeeded", "payout_request", created.ID, "account", req.AccountID, "amount", req.Amount)
	return created, nil
}
