// Package models defines the core data structures for hubdispatch.
//
// It includes types for scheduled posts, publication records, payout requests
// and bank accounts, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// PostStatus represents the lifecycle state of a scheduled post.
type PostStatus string

const (
	// PostStatusScheduled marks a post waiting to be published.
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusPublished marks a post published to at least one platform.
	PostStatusPublished PostStatus = "published"
	// PostStatusError marks a post with no successful platform. The wire value
	// is "erro": it predates this tool and the dashboard queries it as-is.
	PostStatusError PostStatus = "erro"
)

// PayoutStatus represents the lifecycle state of a payout request.
type PayoutStatus string

const (
	// PayoutStatusPending marks a payout request awaiting processing.
	PayoutStatusPending PayoutStatus = "pending"
	// PayoutStatusPaid marks a payout request submitted to Stripe.
	PayoutStatusPaid PayoutStatus = "paid"
	// PayoutStatusManual marks a payout request that needs human handling.
	PayoutStatusManual PayoutStatus = "manual"
	// PayoutStatusFailed marks a payout request rejected by Stripe.
	PayoutStatusFailed PayoutStatus = "failed"
	// PayoutStatusInTransit marks a payout Stripe has accepted but not settled.
	// Written by the reconciliation webhook, never by this tool; it still counts
	// for the same-day idempotency guard.
	PayoutStatusInTransit PayoutStatus = "in_transit"
)

// Validation constants shared across the dispatch engines.
const (
	// MaxErrorSummaryLength is the maximum length of the error summary written
	// to a post's last_error column.
	MaxErrorSummaryLength = 500
)

// Error variables for better error handling and testability.
var (
	ErrMissingStripeAccount = errors.New("payout request has no stripe account")
	ErrNonPositiveAmount    = errors.New("payout amount must be positive")
	ErrNoStoreConfigured    = errors.New("no record store configured")
)

// Post is a scheduled unit of publishing work selected by the dispatch engine.
type Post struct {
	ID           string     `json:"id"`
	Status       PostStatus `json:"status"`
	Platforms    []string   `json:"platforms"`
	Caption      string     `json:"caption"`
	Hashtags     string     `json:"hashtags"`
	ImageURL     string     `json:"image_url"`
	VideoURL     string     `json:"video_url"`
	AvatarID     string     `json:"avatar_id"`
	AvatarNiche  string     `json:"avatar_niche"`
	ScheduledFor time.Time  `json:"scheduled_for"`
	LastError    string     `json:"last_error"`
}

// FullCaption joins the caption and hashtag block the way every platform
// receives them.
func (p Post) FullCaption() string {
	return strings.TrimSpace(strings.TrimSpace(p.Caption) + "\n\n" + strings.TrimSpace(p.Hashtags))
}

// Publication is an immutable record of one successful platform publish.
// Engagement counters start at zero and are filled in later by the metrics
// sync, outside this tool.
type Publication struct {
	PostID      string `json:"post_id"`
	AvatarID    string `json:"avatar_id"`
	Platform    string `json:"platform"`
	ExternalID  string `json:"external_id"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Likes       int    `json:"likes"`
	Comments    int    `json:"comments"`
	Views       int    `json:"views"`
}

// PayoutRequest is a pending unit of payout work.
type PayoutRequest struct {
	ID              string       `json:"id"`
	Status          PayoutStatus `json:"status"`
	AccountID       string       `json:"account_id"`
	StripeAccountID string       `json:"stripe_account_id"`
	Amount          int64        `json:"amount"`
	Currency        string       `json:"currency"`
	Description     string       `json:"description"`
	StripePayoutID  string       `json:"stripe_payout_id"`
	AutoCreated     bool         `json:"auto_created"`
	CreatedAt       time.Time    `json:"created_at"`
}

// BankAccount is a payout destination eligible for automatic balance sweeps.
type BankAccount struct {
	ID                string `json:"id"`
	StripeAccountID   string `json:"stripe_account_id"`
	Currency          string `json:"currency"`
	AutoPayoutEnabled bool   `json:"auto_payout_enabled"`
	HolderName        string `json:"holder_name"`
	Country           string `json:"country"`
}

// Outcome is the result of one adapter attempt against one platform.
// Exactly one of Published or SkipReason is meaningful; transport and API
// failures are returned as errors by the adapter, not encoded here.
type Outcome struct {
	Published  bool
	SkipReason string
	ExternalID string
	URL        string
}

// Skip builds a not-attempted outcome with the given reason.
func Skip(reason string) Outcome {
	return Outcome{SkipReason: reason}
}

// WireTime formats a timestamp the way every store write expects it.
func WireTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// TruncateErrorSummary caps an error summary at MaxErrorSummaryLength runes
// so status writes never balloon past what the last_error column holds.
func TruncateErrorSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxErrorSummaryLength {
		return s
	}
	return string(runes[:MaxErrorSummaryLength])
}
