// Package store provides record store backends for hubdispatch.
//
// This file implements the Supabase PostgREST backend.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contenthub/hubdispatch/internal/models"
)

// DefaultRestTimeout bounds every store round trip. Store calls carry small
// JSON payloads, so this sits at the short end of the timeout tiers.
const DefaultRestTimeout = 15 * time.Second

// RestStore talks to a Supabase project over the PostgREST API.
type RestStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRestStore creates a Supabase REST store from the provided options.
func NewRestStore(opts ...Option) (*RestStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("RestStore.NewRestStore: creating REST store", "url_set", cfg.SupabaseURL != "", "key_set", cfg.SupabaseKey != "")
	if cfg.SupabaseURL == "" || cfg.SupabaseKey == "" {
		return nil, fmt.Errorf("supabase URL and key must be provided")
	}
	return &RestStore{
		baseURL: strings.TrimRight(cfg.SupabaseURL, "/") + "/rest/v1",
		apiKey:  cfg.SupabaseKey,
		client:  &http.Client{Timeout: DefaultRestTimeout},
	}, nil
}

// do performs one PostgREST request. Non-2xx responses become a StoreError
// carrying the status code and body; out, when non-nil, receives the decoded
// JSON response.
func (s *RestStore) do(ctx context.Context, method, resource string, query url.Values, body, out any) error {
	fullURL := s.baseURL + "/" + resource
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s body: %w", resource, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", resource, err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("store %s %s: %w", method, resource, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("store %s %s: reading response: %w", method, resource, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("RestStore request failed", "method", method, "resource", resource, "status", resp.StatusCode)
		return &StoreError{Op: method + " " + resource, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("store %s %s: decoding response: %w", method, resource, err)
		}
	}
	return nil
}

func (s *RestStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("status", "eq."+string(models.PostStatusScheduled))
	q.Set("scheduled_for", "lte."+models.WireTime(now))
	q.Set("order", "scheduled_for.asc")
	q.Set("limit", strconv.Itoa(limit))

	var posts []models.Post
	if err := s.do(ctx, http.MethodGet, "posts", q, nil, &posts); err != nil {
		return nil, err
	}
	slog.Debug("RestStore.ListDuePosts succeeded", "count", len(posts))
	return posts, nil
}

func (s *RestStore) MarkPost(ctx context.Context, id string, status models.PostStatus, errSummary string, at time.Time) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	body := map[string]any{
		"status":     status,
		"updated_at": models.WireTime(at),
	}
	if errSummary != "" {
		body["last_error"] = errSummary
	}
	if err := s.do(ctx, http.MethodPatch, "posts", q, body, nil); err != nil {
		return err
	}
	slog.Info("RestStore.MarkPost succeeded", "post", id, "status", status)
	return nil
}

func (s *RestStore) InsertPublication(ctx context.Context, pub models.Publication) error {
	if err := s.do(ctx, http.MethodPost, "publications", nil, pub, nil); err != nil {
		return err
	}
	slog.Debug("RestStore.InsertPublication succeeded", "post", pub.PostID, "platform", pub.Platform)
	return nil
}

func (s *RestStore) ListPendingPayouts(ctx context.Context, limit int) ([]models.PayoutRequest, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("status", "eq."+string(models.PayoutStatusPending))
	q.Set("order", "created_at.asc")
	q.Set("limit", strconv.Itoa(limit))

	var reqs []models.PayoutRequest
	if err := s.do(ctx, http.MethodGet, "payout_requests", q, nil, &reqs); err != nil {
		return nil, err
	}
	slog.Debug("RestStore.ListPendingPayouts succeeded", "count", len(reqs))
	return reqs, nil
}

func (s *RestStore) MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error {
	q := url.Values{}
	q.Set("id", "eq."+id)
	body := map[string]any{
		"status":     status,
		"updated_at": models.WireTime(at),
	}
	if stripePayoutID != "" {
		body["stripe_payout_id"] = stripePayoutID
	}
	if err := s.do(ctx, http.MethodPatch, "payout_requests", q, body, nil); err != nil {
		return err
	}
	slog.Info("RestStore.MarkPayout succeeded", "payout_request", id, "status", status)
	return nil
}

func (s *RestStore) ListAutoPayoutAccounts(ctx context.Context) ([]models.BankAccount, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("auto_payout_enabled", "eq.true")
	q.Set("stripe_account_id", "not.is.null")

	var accounts []models.BankAccount
	if err := s.do(ctx, http.MethodGet, "bank_accounts", q, nil, &accounts); err != nil {
		return nil, err
	}
	slog.Debug("RestStore.ListAutoPayoutAccounts succeeded", "count", len(accounts))
	return accounts, nil
}

func (s *RestStore) HasAutoPayoutToday(ctx context.Context, accountID string, dayUTC time.Time) (bool, error) {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("account_id", "eq."+accountID)
	q.Set("auto_created", "eq.true")
	q.Set("status", fmt.Sprintf("in.(%s,%s,%s)", models.PayoutStatusPending, models.PayoutStatusInTransit, models.PayoutStatusPaid))
	q.Add("created_at", "gte."+models.WireTime(dayUTC))
	q.Add("created_at", "lt."+models.WireTime(dayUTC.Add(24*time.Hour)))
	q.Set("limit", "1")

	var rows []struct {
		ID string `json:"id"`
	}
	if err := s.do(ctx, http.MethodGet, "payout_requests", q, nil, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *RestStore) InsertPayoutRequest(ctx context.Context, req models.PayoutRequest) (models.PayoutRequest, error) {
	body := map[string]any{
		"status":            req.Status,
		"account_id":        req.AccountID,
		"stripe_account_id": req.StripeAccountID,
		"amount":            req.Amount,
		"currency":          req.Currency,
		"description":       req.Description,
		"auto_created":      req.AutoCreated,
		"created_at":        models.WireTime(req.CreatedAt),
	}
	var created []models.PayoutRequest
	if err := s.do(ctx, http.MethodPost, "payout_requests", nil, body, &created); err != nil {
		return models.PayoutRequest{}, err
	}
	if len(created) == 0 {
		return models.PayoutRequest{}, fmt.Errorf("store POST payout_requests: empty representation returned")
	}
	slog.Info("RestStore.InsertPayoutRequest succeeded", "payout_request", created[0].ID, "account", req.AccountID, "amount", req.Amount)
	return created[0], nil
}
