package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/models"
	"github.com/contenthub/hubdispatch/internal/store"
	"github.com/contenthub/hubdispatch/internal/stripepay"
)

// DefaultPayoutBatchSize caps how many pending payout requests one run
// processes.
const DefaultPayoutBatchSize = 50

// DefaultFailurePause is the pause inserted after a Stripe failure before
// the next payout attempt, to stay clear of rate limits.
const DefaultFailurePause = time.Second

// PayoutProcessor is the Stripe surface the payout engine needs.
type PayoutProcessor interface {
	Balance(ctx context.Context) (*stripepay.Balance, error)
	AccountBalance(ctx context.Context, account string) (*stripepay.Balance, error)
	CreatePayout(ctx context.Context, account string, amount int64, currency, description string) (*stripepay.Payout, error)
	CreatePlatformPayout(ctx context.Context, destination string, amount int64, currency, description string) (*stripepay.Payout, error)
}

// PayoutEngine runs the three-phase payout pipeline: collect automatic
// payout requests from account balances, process pending requests, and
// sweep the platform balance.
type PayoutEngine struct {
	store  store.Store
	stripe PayoutProcessor

	minAmount      int64
	currency       string
	platformDest   string
	skipCollect    bool
	skipProcess    bool
	skipSweep      bool
	dryRun         bool
	pauseOnFailure time.Duration
	now            func() time.Time
}

// PayoutOption configures a PayoutEngine.
type PayoutOption func(*PayoutEngine)

// WithPayoutDryRun makes the engine log intended actions without calling
// Stripe's write endpoints or writing the store.
func WithPayoutDryRun(dryRun bool) PayoutOption {
	return func(e *PayoutEngine) { e.dryRun = dryRun }
}

// WithFailurePause overrides the post-failure pause (used by tests).
func WithFailurePause(d time.Duration) PayoutOption {
	return func(e *PayoutEngine) { e.pauseOnFailure = d }
}

// WithPayoutClock overrides the engine's clock (used by tests).
func WithPayoutClock(now func() time.Time) PayoutOption {
	return func(e *PayoutEngine) { e.now = now }
}

// NewPayoutEngine creates a payout engine from the resolved configuration.
func NewPayoutEngine(st store.Store, processor PayoutProcessor, cfg config.Config, opts ...PayoutOption) *PayoutEngine {
	e := &PayoutEngine{
		store:          st,
		stripe:         processor,
		minAmount:      cfg.PayoutMinAmount,
		currency:       cfg.PayoutCurrency,
		platformDest:   cfg.PlatformDestination,
		skipCollect:    cfg.SkipCollect,
		skipProcess:    cfg.SkipProcess,
		skipSweep:      cfg.SkipSweep,
		pauseOnFailure: DefaultFailurePause,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline. Each phase is independent: a phase-level store
// failure is recorded against that phase's counters and the next phase still
// runs.
func (e *PayoutEngine) Run(ctx context.Context) (PayoutCounters, error) {
	var pc PayoutCounters

	if e.skipCollect {
		slog.Info("PayoutEngine: collect phase skipped by configuration")
	} else if err := e.collect(ctx, &pc.Collect); err != nil {
		slog.Error("PayoutEngine: collect phase aborted", "error", err)
		pc.Collect.Failed++
	}

	if e.skipProcess {
		slog.Info("PayoutEngine: process phase skipped by configuration")
	} else if err := e.process(ctx, &pc.Process); err != nil {
		slog.Error("PayoutEngine: process phase aborted", "error", err)
		pc.Process.Failed++
	}

	if e.skipSweep {
		slog.Info("PayoutEngine: sweep phase skipped by configuration")
	} else {
		e.sweep(ctx, &pc.Sweep)
	}

	slog.Info("PayoutEngine.Run: finished",
		"collected", pc.Collect.Succeeded, "processed", pc.Process.Succeeded, "swept", pc.Sweep.Succeeded,
		"failures", pc.Failures(), "dry_run", e.dryRun)
	return pc, nil
}

// collect creates a pending payout request for every auto-enabled account
// whose available balance clears the minimum, at most once per UTC day.
func (e *PayoutEngine) collect(ctx context.Context, c *Counters) error {
	accounts, err := e.store.ListAutoPayoutAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing auto payout accounts: %w", err)
	}
	slog.Info("PayoutEngine.collect: accounts enumerated", "count", len(accounts))

	// The guard keys on the calendar day the run started; a run straddling
	// midnight keeps its original day.
	day := e.now().UTC().Truncate(24 * time.Hour)

	for _, account := range accounts {
		exists, err := e.store.HasAutoPayoutToday(ctx, account.ID, day)
		if err != nil {
			slog.Error("PayoutEngine.collect: idempotency check failed", "account", account.ID, "error", err)
			c.Failed++
			continue
		}
		if exists {
			slog.Info("PayoutEngine.collect: already collected today, skipping", "account", account.ID)
			continue
		}

		bal, err := e.stripe.AccountBalance(ctx, account.StripeAccountID)
		if err != nil {
			slog.Error("PayoutEngine.collect: balance query failed", "account", account.ID, "error", err)
			c.Failed++
			continue
		}
		currency := account.Currency
		if currency == "" {
			currency = e.currency
		}
		available := bal.AvailableIn(currency)
		if available < e.minAmount {
			slog.Info("PayoutEngine.collect: balance below threshold, skipping",
				"account", account.ID, "available", available, "minimum", e.minAmount)
			continue
		}

		if e.dryRun {
			slog.Info("PayoutEngine.collect: dry run, would create payout request",
				"account", account.ID, "amount", available, "currency", currency)
			c.Succeeded++
			continue
		}

		created, err := e.store.InsertPayoutRequest(ctx, models.PayoutRequest{
			Status:          models.PayoutStatusPending,
			AccountID:       account.ID,
			StripeAccountID: account.StripeAccountID,
			Amount:          available,
			Currency:        currency,
			Description:     "Automatic payout",
			AutoCreated:     true,
			CreatedAt:       e.now().UTC(),
		})
		if err != nil {
			slog.Error("PayoutEngine.collect: creating payout request failed", "account", account.ID, "error", err)
			c.Failed++
			continue
		}
		slog.Info("PayoutEngine.collect: payout request created",
			"payout_request", created.ID, "account", account.ID, "amount", available)
		c.Succeeded++
	}
	return nil
}

// process submits pending payout requests to Stripe. Requests missing their
// account reference or a positive amount are flagged for manual handling
// without touching Stripe.
func (e *PayoutEngine) process(ctx context.Context, c *Counters) error {
	requests, err := e.store.ListPendingPayouts(ctx, DefaultPayoutBatchSize)
	if err != nil {
		return fmt.Errorf("listing pending payouts: %w", err)
	}
	slog.Info("PayoutEngine.process: pending payout requests selected", "count", len(requests))

	for _, req := range requests {
		if req.StripeAccountID == "" {
			slog.Warn("PayoutEngine.process: no stripe account, flagging manual", "payout_request", req.ID)
			e.markPayout(ctx, req.ID, models.PayoutStatusManual, "")
			c.Failed++
			continue
		}
		if req.Amount <= 0 {
			slog.Warn("PayoutEngine.process: non-positive amount, flagging manual", "payout_request", req.ID, "amount", req.Amount)
			e.markPayout(ctx, req.ID, models.PayoutStatusManual, "")
			c.Failed++
			continue
		}

		currency := req.Currency
		if currency == "" {
			currency = e.currency
		}
		description := req.Description
		if description == "" {
			description = "ContentHub payout"
		}

		if e.dryRun {
			slog.Info("PayoutEngine.process: dry run, would pay out",
				"payout_request", req.ID, "account", req.StripeAccountID, "amount", req.Amount, "currency", currency)
			c.Succeeded++
			continue
		}

		payout, err := e.stripe.CreatePayout(ctx, req.StripeAccountID, req.Amount, currency, description)
		if err != nil {
			slog.Error("PayoutEngine.process: payout failed", "payout_request", req.ID, "error", err)
			e.markPayout(ctx, req.ID, models.PayoutStatusFailed, "")
			c.Failed++
			// Brief pause between requests to stay clear of rate limits.
			time.Sleep(e.pauseOnFailure)
			continue
		}
		if err := e.store.MarkPayout(ctx, req.ID, models.PayoutStatusPaid, payout.ID, e.now().UTC()); err != nil {
			// The payout went through but the status write did not; surface
			// it as a failure so the operator reconciles by hand.
			slog.Error("PayoutEngine.process: paid but status write failed", "payout_request", req.ID, "payout", payout.ID, "error", err)
			c.Failed++
			continue
		}
		slog.Info("PayoutEngine.process: payout request paid", "payout_request", req.ID, "payout", payout.ID)
		c.Succeeded++
	}
	return nil
}

// markPayout writes a status and absorbs the error: on this path the batch
// must keep moving and the counters already reflect the item.
func (e *PayoutEngine) markPayout(ctx context.Context, id string, status models.PayoutStatus, payoutID string) {
	if e.dryRun {
		return
	}
	if err := e.store.MarkPayout(ctx, id, status, payoutID, e.now().UTC()); err != nil {
		slog.Error("PayoutEngine: status write failed", "payout_request", id, "status", status, "error", err)
	}
}

// sweep pays the platform's own available balance out to the configured
// destination, applying the same threshold as collection.
func (e *PayoutEngine) sweep(ctx context.Context, c *Counters) {
	if e.platformDest == "" {
		slog.Debug("PayoutEngine.sweep: no platform destination configured, skipping")
		return
	}

	bal, err := e.stripe.Balance(ctx)
	if err != nil {
		slog.Error("PayoutEngine.sweep: platform balance query failed", "error", err)
		c.Failed++
		return
	}
	available := bal.AvailableIn(e.currency)
	if available < e.minAmount {
		slog.Info("PayoutEngine.sweep: platform balance below threshold, skipping",
			"available", available, "minimum", e.minAmount)
		return
	}

	if e.dryRun {
		slog.Info("PayoutEngine.sweep: dry run, would sweep platform balance",
			"destination", e.platformDest, "amount", available, "currency", e.currency)
		c.Succeeded++
		return
	}

	payout, err := e.stripe.CreatePlatformPayout(ctx, e.platformDest, available, e.currency, "Platform balance sweep")
	if err != nil {
		slog.Error("PayoutEngine.sweep: platform payout failed", "error", err)
		c.Failed++
		return
	}
	slog.Info("PayoutEngine.sweep: platform balance swept", "payout", payout.ID, "amount", available)
	c.Succeeded++
}
