// Package stripepay wraps the Stripe Connect API for hubdispatch.
//
// It covers the three calls the payout dispatcher needs: platform balance,
// connected-account balance, and payout creation. Requests are form encoded;
// payout creation carries an idempotency key so a retried run cannot double
// a payout Stripe already accepted.
package stripepay

import (
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

	"github.com/google/uuid"
)

// DefaultBaseURL is the Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com/v1"

// DefaultTimeout bounds every Stripe round trip.
const DefaultTimeout = 30 * time.Second

// Opts holds configuration options for the Stripe client.
type Opts struct {
	SecretKey string
	BaseURL   string
}

// Option defines a configuration option for the Stripe client.
type Option func(*Opts)

// WithSecretKey sets the Stripe secret key.
func WithSecretKey(key string) Option {
	return func(o *Opts) { o.SecretKey = key }
}

// WithBaseURL overrides the API endpoint (used by tests).
func WithBaseURL(base string) Option {
	return func(o *Opts) { o.BaseURL = base }
}

// Client calls the Stripe Connect API.
type Client struct {
	key     string
	baseURL string
	client  *http.Client
}

// NewClient creates a Stripe client from the provided options.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("stripepay.NewClient: creating Stripe client", "key_set", cfg.SecretKey != "")
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key must be provided")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		key:     cfg.SecretKey,
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// BalanceAmount is one currency line of a balance.
type BalanceAmount struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Balance is the available/pending funds of an account.
type Balance struct {
	Available []BalanceAmount `json:"available"`
	Pending   []BalanceAmount `json:"pending"`
}

// AvailableIn returns the available amount in the given currency, zero when
// the balance has no line for it.
func (b *Balance) AvailableIn(currency string) int64 {
	currency = strings.ToLower(currency)
	for _, line := range b.Available {
		if strings.ToLower(line.Currency) == currency {
			return line.Amount
		}
	}
	return 0
}

// Payout is the created payout resource.
type Payout struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// do performs one Stripe request. A non-empty account becomes the
// Stripe-Account header, scoping the call to a connected account; a
// non-empty idempotencyKey is sent with write calls.
func (c *Client) do(ctx context.Context, method, path, account, idempotencyKey string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if account != "" {
		req.Header.Set("Stripe-Account", account)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("stripe %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("stripe %s %s: reading response: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("stripe %s %s: status %d: %s", method, path, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("stripe %s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("stripe %s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

// Balance returns the platform account's balance.
func (c *Client) Balance(ctx context.Context) (*Balance, error) {
	var bal Balance
	if err := c.do(ctx, http.MethodGet, "/balance", "", "", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// AccountBalance returns a connected account's balance.
func (c *Client) AccountBalance(ctx context.Context, account string) (*Balance, error) {
	var bal Balance
	if err := c.do(ctx, http.MethodGet, "/balance", account, "", nil, &bal); err != nil {
		return nil, err
	}
	return &bal, nil
}

// CreatePayout creates a payout from a connected account's available balance
// to its default bank account. Amount is in minor currency units.
func (c *Client) CreatePayout(ctx context.Context, account string, amount int64, currency, description string) (*Payout, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("description", description)

	var payout Payout
	if err := c.do(ctx, http.MethodPost, "/payouts", account, uuid.NewString(), form, &payout); err != nil {
		return nil, err
	}
	slog.Info("Stripe payout created", "payout", payout.ID, "account", account, "amount", amount, "currency", currency)
	return &payout, nil
}

// CreatePlatformPayout creates a payout from the platform's own balance,
// optionally to a specific external destination.
func (c *Client) CreatePlatformPayout(ctx context.Context, destination string, amount int64, currency, description string) (*Payout, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("description", description)
	if destination != "" {
		form.Set("destination", destination)
	}

	var payout Payout
	if err := c.do(ctx, http.MethodPost, "/payouts", "", uuid.NewString(), form, &payout); err != nil {
		return nil, err
	}
	slog.Info("Stripe platform payout created", "payout", payout.ID, "destination", destination, "amount", amount, "currency", currency)
	return &payout, nil
}
