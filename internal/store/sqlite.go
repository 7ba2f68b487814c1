// Package store provides record store backends for hubdispatch.
//
// This file implements an SQLite-backed store for local runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/contenthub/hubdispatch/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given path.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore invoked", "path_set", cfg.SQLitePath != "")
	path := cfg.SQLitePath
	if path == "" {
		slog.Error("SQLiteStore path not set")
		return nil, fmt.Errorf("database path not set")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, platforms, caption, hashtags, image_url, video_url, avatar_id, avatar_niche, scheduled_for, last_error
		 FROM posts WHERE status = ? AND scheduled_for <= ? ORDER BY scheduled_for ASC LIMIT ?`,
		models.PostStatusScheduled, models.WireTime(now), limit)
	if err != nil {
		slog.Error("SQLiteStore ListDuePosts query failed", "error", err)
		return nil, fmt.Errorf("failed to query due posts: %w", err)
	}
	defer rows.Close()
	var posts []models.Post
	for rows.Next() {
		var p models.Post
		var platforms, scheduledFor string
		if err := rows.Scan(&p.ID, &p.Status, &platforms, &p.Caption, &p.Hashtags, &p.ImageURL, &p.VideoURL, &p.AvatarID, &p.AvatarNiche, &scheduledFor, &p.LastError); err != nil {
			slog.Error("SQLiteStore ListDuePosts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		if err := json.Unmarshal([]byte(platforms), &p.Platforms); err != nil {
			return nil, fmt.Errorf("failed to decode platforms for post %s: %w", p.ID, err)
		}
		if p.ScheduledFor, err = time.Parse(time.RFC3339, scheduledFor); err != nil {
			return nil, fmt.Errorf("failed to parse scheduled_for for post %s: %w", p.ID, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListDuePosts succeeded", "count", len(posts))
	return posts, nil
}

func (s *SQLiteStore) MarkPost(ctx context.Context, id string, status models.PostStatus, errSummary string, at time.Time) error {
	var err error
	if errSummary != "" {
		_, err = s.db.ExecContext(ctx, `UPDATE posts SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`, status, errSummary, models.WireTime(at), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`, status, models.WireTime(at), id)
	}
	if err != nil {
		slog.Error("SQLiteStore MarkPost failed", "error", err, "post", id)
		return fmt.Errorf("failed to mark post %s: %w", id, err)
	}
	slog.Info("SQLiteStore.MarkPost succeeded", "post", id, "status", status)
	return nil
}

func (s *SQLiteStore) InsertPublication(ctx context.Context, pub models.Publication) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications (id, post_id, avatar_id, platform, external_id, url, published_at, likes, comments, views)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, 0)`,
		uuid.NewString(), pub.PostID, pub.AvatarID, pub.Platform, pub.ExternalID, pub.URL, pub.PublishedAt)
	if err != nil {
		slog.Error("SQLiteStore InsertPublication failed", "error", err, "post", pub.PostID, "platform", pub.Platform)
		return fmt.Errorf("failed to insert publication for post %s: %w", pub.PostID, err)
	}
	slog.Debug("SQLiteStore.InsertPublication succeeded", "post", pub.PostID, "platform", pub.Platform)
	return nil
}

func (s *SQLiteStore) ListPendingPayouts(ctx context.Context, limit int) ([]models.PayoutRequest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, account_id, stripe_account_id, amount, currency, description, stripe_payout_id, auto_created, created_at
		 FROM payout_requests WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		models.PayoutStatusPending, limit)
	if err != nil {
		slog.Error("SQLiteStore ListPendingPayouts query failed", "error", err)
		return nil, fmt.Errorf("failed to query pending payouts: %w", err)
	}
	defer rows.Close()
	var reqs []models.PayoutRequest
	for rows.Next() {
		var r models.PayoutRequest
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Status, &r.AccountID, &r.StripeAccountID, &r.Amount, &r.Currency, &r.Description, &r.StripePayoutID, &r.AutoCreated, &createdAt); err != nil {
			slog.Error("SQLiteStore ListPendingPayouts scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		if createdAt != "" {
			if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
				return nil, fmt.Errorf("failed to parse created_at for payout request %s: %w", r.ID, err)
			}
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout rows: %w", err)
	}
	slog.Debug("SQLiteStore.ListPendingPayouts succeeded", "count", len(reqs))
	return reqs, nil
}

func (s *SQLiteStore) MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error {
	var err error
	if stripePayoutID != "" {
		_, err = s.db.ExecContext(ctx, `UPDATE payout_requests SET status = ?, stripe_payout_id = ?, updated_at = ? WHERE id = ?`, status, stripePayoutID, models.WireTime(at), id)
	} else {
		_, err = s.db.ExecContext(ctx, `UPDATE payout_requests SET status = ?, updated_at = ? WHERE id = ?`, status, models.WireTime(at), id)
	}
	if err != nil {
		slog.Error("SQLiteStore MarkPayout failed", "error", err, "payout_request", id)
		return fmt.Errorf("failed to mark payout request %s: %w", id, err)
	}
	slog.Info("SQLiteStore.MarkPayout succeeded", "payout_request", id, "status", status)
	return nil
}

func (s *SQLiteStore) ListAutoPayoutAccounts(ctx context.Context) ([]models.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stripe_account_id, currency, auto_payout_enabled, holder_name, country
		 FROM bank_accounts WHERE auto_payout_enabled = 1 AND stripe_account_id <> ''`)
	if err != nil {
		slog.Error("SQLiteStore ListAutoPayoutAccounts query failed", "error", err)
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
	slog.Debug("SQLiteStore.ListAutoPayoutAccounts succeeded", "count", len(accounts))
	return accounts, nil
}

func (s *SQLiteStore) HasAutoPayoutToday(ctx context.Context, accountID string, dayUTC time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM payout_requests
		 WHERE account_id = ? AND auto_created = 1 AND created_at >= ? AND created_at < ? AND status IN (?, ?, ?)`,
		accountID, models.WireTime(dayUTC), models.WireTime(dayUTC.Add(24*time.Hour)),
		models.PayoutStatusPending, models.PayoutStatusInTransit, models.PayoutStatusPaid).Scan(&count)
	if err != nil {
		slog.Error("SQLiteStore HasAutoPayoutToday query failed", "error", err, "account", accountID)
		return false, fmt.Errorf("failed to check auto payout for account %s: %w", accountID, err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) InsertPayoutRequest(ctx context.Context, req models.PayoutRequest) (models.PayoutRequest, error) {
	created := req
	created.ID = uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payout_requests (id, status, account_id, stripe_account_id, amount, currency, description, auto_created, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		created.ID, req.Status, req.AccountID, req.StripeAccountID, req.Amount, req.Currency, req.Description, req.AutoCreated,
		models.WireTime(req.CreatedAt), models.WireTime(req.CreatedAt))
	if err != nil {
		slog.Error("SQLiteStore InsertPayoutRequest failed", "error", err, "account", req.AccountID)
		return models.PayoutRequest{}, fmt.Errorf("failed to insert payout request for account %s: %w", req.AccountID, err)
	}
	slog.Info("SQLiteStore.InsertPayoutRequest succeeded", "payout_request", created.ID, "account", req.AccountID, "amount", req.Amount)
	return created, nil
}
