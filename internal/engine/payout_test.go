package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contenthub/hubdispatch/internal/config"
	"github.com/contenthub/hubdispatch/internal/models"
	"github.com/contenthub/hubdispatch/internal/store"
	"github.com/contenthub/hubdispatch/internal/stripepay"
)

type fakeStripe struct {
	platformBalance *stripepay.Balance
	accountBalances map[string]*stripepay.Balance
	payoutErr       error

	balanceCalls        int
	accountBalanceCalls int
	payoutCalls         int
	platformCalls       int
	lastAccount         string
	lastAmount          int64
	lastCurrency        string
	lastDestination     string
}

func (f *fakeStripe) Balance(ctx context.Context) (*stripepay.Balance, error) {
	f.balanceCalls++
	if f.platformBalance == nil {
		return nil, errors.New("no platform balance configured")
	}
	return f.platformBalance, nil
}

func (f *fakeStripe) AccountBalance(ctx context.Context, account string) (*stripepay.Balance, error) {
	f.accountBalanceCalls++
	bal, ok := f.accountBalances[account]
	if !ok {
		return nil, errors.New("unknown account")
	}
	return bal, nil
}

func (f *fakeStripe) CreatePayout(ctx context.Context, account string, amount int64, currency, description string) (*stripepay.Payout, error) {
	f.payoutCalls++
	f.lastAccount = account
	f.lastAmount = amount
	f.lastCurrency = currency
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return &stripepay.Payout{ID: "po_test", Amount: amount, Currency: currency, Status: "pending"}, nil
}

func (f *fakeStripe) CreatePlatformPayout(ctx context.Context, destination string, amount int64, currency, description string) (*stripepay.Payout, error) {
	f.platformCalls++
	f.lastDestination = destination
	f.lastAmount = amount
	f.lastCurrency = currency
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	return &stripepay.Payout{ID: "po_platform", Amount: amount, Currency: currency, Status: "pending"}, nil
}

func eurBalance(amount int64) *stripepay.Balance {
	return &stripepay.Balance{Available: []stripepay.BalanceAmount{{Amount: amount, Currency: "eur"}}}
}

func payoutConfig() config.Config {
	return config.Config{PayoutMinAmount: 1000, PayoutCurrency: "eur"}
}

func payoutByID(t *testing.T, st *store.MemoryStore, id string) models.PayoutRequest {
	t.Helper()
	for _, r := range st.PayoutRequests() {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("payout request %s not found", id)
	return models.PayoutRequest{}
}

func newTestPayoutEngine(st store.Store, stripe PayoutProcessor, cfg config.Config, opts ...PayoutOption) *PayoutEngine {
	opts = append([]PayoutOption{WithFailurePause(0)}, opts...)
	return NewPayoutEngine(st, stripe, cfg, opts...)
}

func TestPayoutProcessSuccess(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 2500, Currency: "eur",
	})
	stripe := &fakeStripe{}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Process.Succeeded != 1 || pc.Process.Failed != 0 {
		t.Errorf("Expected one processed payout, got %+v", pc.Process)
	}
	if stripe.payoutCalls != 1 || stripe.lastAccount != "acct_1" || stripe.lastAmount != 2500 {
		t.Errorf("Expected payout for acct_1/2500, got calls=%d account=%s amount=%d",
			stripe.payoutCalls, stripe.lastAccount, stripe.lastAmount)
	}
	req := payoutByID(t, st, "r1")
	if req.Status != models.PayoutStatusPaid {
		t.Errorf("Expected paid status, got %s", req.Status)
	}
	if req.StripePayoutID != "po_test" {
		t.Errorf("Expected recorded payout id po_test, got %q", req.StripePayoutID)
	}
}

func TestPayoutProcessZeroAmountGoesManual(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 0,
	})
	stripe := &fakeStripe{}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Process.Failed != 1 || pc.Process.Succeeded != 0 {
		t.Errorf("Expected one failure, got %+v", pc.Process)
	}
	if stripe.payoutCalls != 0 {
		t.Errorf("Expected no Stripe call for zero amount, got %d", stripe.payoutCalls)
	}
	if got := payoutByID(t, st, "r1").Status; got != models.PayoutStatusManual {
		t.Errorf("Expected manual status, got %s", got)
	}
}

func TestPayoutProcessMissingAccountGoesManual(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedPayoutRequest(models.PayoutRequest{ID: "r1", Status: models.PayoutStatusPending, Amount: 2000})
	stripe := &fakeStripe{}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stripe.payoutCalls != 0 {
		t.Errorf("Expected no Stripe call without an account, got %d", stripe.payoutCalls)
	}
	if got := payoutByID(t, st, "r1").Status; got != models.PayoutStatusManual {
		t.Errorf("Expected manual status, got %s", got)
	}
}

func TestPayoutProcessStripeFailureGoesFailed(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 2000, Currency: "eur",
	})
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r2", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_2", Amount: 3000, Currency: "eur",
	})
	stripe := &fakeStripe{payoutErr: errors.New("insufficient funds")}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Process.Failed != 2 {
		t.Errorf("Expected both requests to fail, got %+v", pc.Process)
	}
	if stripe.payoutCalls != 2 {
		t.Errorf("Expected batch to continue past a failure, got %d calls", stripe.payoutCalls)
	}
	for _, id := range []string{"r1", "r2"} {
		if got := payoutByID(t, st, id).Status; got != models.PayoutStatusFailed {
			t.Errorf("Expected failed status for %s, got %s", id, got)
		}
	}
}

type payoutWriteFailingStore struct {
	*store.MemoryStore
	writeAttempts int
}

func (s *payoutWriteFailingStore) MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error {
	s.writeAttempts++
	return errors.New("connection reset")
}

func TestPayoutStatusWriteFailureDoesNotAbortBatch(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 2000, Currency: "eur",
	})
	mem.SeedPayoutRequest(models.PayoutRequest{
		ID: "r2", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_2", Amount: 3000, Currency: "eur",
	})
	st := &payoutWriteFailingStore{MemoryStore: mem}
	stripe := &fakeStripe{payoutErr: errors.New("insufficient funds")}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stripe.payoutCalls != 2 {
		t.Errorf("Expected both payouts attempted despite write failures, got %d", stripe.payoutCalls)
	}
	if st.writeAttempts != 2 {
		t.Errorf("Expected a status write per request, got %d", st.writeAttempts)
	}
	if pc.Process.Failed != 2 || pc.Process.Succeeded != 0 {
		t.Errorf("Expected both requests counted as failures, got %+v", pc.Process)
	}
}

func TestPayoutPaidButUnrecordedCountsAsFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 2000, Currency: "eur",
	})
	mem.SeedPayoutRequest(models.PayoutRequest{
		ID: "r2", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_2", Amount: 3000, Currency: "eur",
	})
	st := &payoutWriteFailingStore{MemoryStore: mem}
	stripe := &fakeStripe{}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stripe.payoutCalls != 2 {
		t.Errorf("Expected the batch to continue past an unrecorded payout, got %d calls", stripe.payoutCalls)
	}
	if pc.Process.Failed != 2 || pc.Process.Succeeded != 0 {
		t.Errorf("Expected unrecorded payouts surfaced as failures, got %+v", pc.Process)
	}
	for _, id := range []string{"r1", "r2"} {
		if got := payoutByID(t, mem, id).Status; got != models.PayoutStatusPending {
			t.Errorf("Expected %s still pending for manual reconciliation, got %s", id, got)
		}
	}
}

func TestPayoutProcessFallsBackToConfiguredCurrency(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_1", Amount: 2000,
	})
	stripe := &fakeStripe{}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stripe.lastCurrency != "eur" {
		t.Errorf("Expected configured currency fallback, got %q", stripe.lastCurrency)
	}
}

func TestPayoutCollectCreatesRequest(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	stripe := &fakeStripe{accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)}}
	cfg := payoutConfig()
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Collect.Succeeded != 1 {
		t.Errorf("Expected one collected request, got %+v", pc.Collect)
	}
	requests := st.PayoutRequests()
	if len(requests) != 1 {
		t.Fatalf("Expected one payout request, got %d", len(requests))
	}
	req := requests[0]
	if req.Amount != 5000 || req.Status != models.PayoutStatusPending || !req.AutoCreated {
		t.Errorf("Expected pending auto-created request over 5000, got %+v", req)
	}
	if req.StripeAccountID != "acct_1" {
		t.Errorf("Expected stripe account carried over, got %q", req.StripeAccountID)
	}
}

func TestPayoutCollectBelowThresholdSkips(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	stripe := &fakeStripe{accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(500)}}
	cfg := payoutConfig()
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Collect.Succeeded != 0 || pc.Collect.Failed != 0 {
		t.Errorf("Expected below-threshold skip to touch no counters, got %+v", pc.Collect)
	}
	if got := st.PayoutRequests(); len(got) != 0 {
		t.Errorf("Expected no payout requests, got %d", len(got))
	}
}

func TestPayoutCollectOncePerDay(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "earlier", Status: models.PayoutStatusPaid, AccountID: "ba_1",
		StripeAccountID: "acct_1", Amount: 1500, AutoCreated: true,
		CreatedAt: now.Add(-2 * time.Hour),
	})
	stripe := &fakeStripe{accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)}}
	cfg := payoutConfig()
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg, WithPayoutClock(func() time.Time { return now }))
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Collect.Succeeded != 0 {
		t.Errorf("Expected same-day guard to skip the account, got %+v", pc.Collect)
	}
	if stripe.accountBalanceCalls != 0 {
		t.Errorf("Expected no balance query for a guarded account, got %d", stripe.accountBalanceCalls)
	}
	if got := st.PayoutRequests(); len(got) != 1 {
		t.Errorf("Expected no new payout request, got %d total", len(got))
	}
}

func TestPayoutCollectTwiceSameDayCreatesOne(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	stripe := &fakeStripe{accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)}}
	cfg := payoutConfig()
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg, WithPayoutClock(func() time.Time { return now }))
	for i := 0; i < 2; i++ {
		if _, err := e.Run(context.Background()); err != nil {
			t.Fatalf("Expected no error on run %d, got %v", i, err)
		}
	}
	if got := st.PayoutRequests(); len(got) != 1 {
		t.Errorf("Expected at most one request per account per day, got %d", len(got))
	}
}

func TestPayoutCollectNextDayCreatesAgain(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 10, 0, 0, time.UTC)
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "yesterday", Status: models.PayoutStatusPaid, AccountID: "ba_1",
		StripeAccountID: "acct_1", Amount: 1500, AutoCreated: true,
		CreatedAt: now.Add(-3 * time.Hour),
	})
	stripe := &fakeStripe{accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)}}
	cfg := payoutConfig()
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg, WithPayoutClock(func() time.Time { return now }))
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Collect.Succeeded != 1 {
		t.Errorf("Expected a fresh request after the day boundary, got %+v", pc.Collect)
	}
}

func TestPayoutSweep(t *testing.T) {
	st := store.NewMemoryStore()
	stripe := &fakeStripe{platformBalance: eurBalance(8000)}
	cfg := payoutConfig()
	cfg.PlatformDestination = "ba_platform"
	cfg.SkipCollect = true
	cfg.SkipProcess = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Sweep.Succeeded != 1 {
		t.Errorf("Expected one sweep, got %+v", pc.Sweep)
	}
	if stripe.platformCalls != 1 || stripe.lastDestination != "ba_platform" || stripe.lastAmount != 8000 {
		t.Errorf("Expected platform payout of 8000 to ba_platform, got calls=%d dest=%s amount=%d",
			stripe.platformCalls, stripe.lastDestination, stripe.lastAmount)
	}
}

func TestPayoutSweepWithoutDestinationIsInert(t *testing.T) {
	st := store.NewMemoryStore()
	stripe := &fakeStripe{platformBalance: eurBalance(8000)}
	cfg := payoutConfig()
	cfg.SkipCollect = true
	cfg.SkipProcess = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Sweep.Succeeded != 0 || pc.Sweep.Failed != 0 {
		t.Errorf("Expected no sweep activity, got %+v", pc.Sweep)
	}
	if stripe.balanceCalls != 0 {
		t.Errorf("Expected no balance query without a destination, got %d", stripe.balanceCalls)
	}
}

func TestPayoutSweepBelowThresholdSkips(t *testing.T) {
	st := store.NewMemoryStore()
	stripe := &fakeStripe{platformBalance: eurBalance(500)}
	cfg := payoutConfig()
	cfg.PlatformDestination = "ba_platform"
	cfg.SkipCollect = true
	cfg.SkipProcess = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Sweep.Succeeded != 0 || stripe.platformCalls != 0 {
		t.Errorf("Expected below-threshold balance left alone, got %+v calls=%d", pc.Sweep, stripe.platformCalls)
	}
}

func TestPayoutDryRunWritesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_2", Amount: 2000, Currency: "eur",
	})
	stripe := &fakeStripe{
		platformBalance: eurBalance(8000),
		accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)},
	}
	cfg := payoutConfig()
	cfg.PlatformDestination = "ba_platform"

	e := newTestPayoutEngine(st, stripe, cfg, WithPayoutDryRun(true))
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stripe.payoutCalls != 0 || stripe.platformCalls != 0 {
		t.Errorf("Expected no Stripe writes in dry run, got payout=%d platform=%d", stripe.payoutCalls, stripe.platformCalls)
	}
	if got := len(st.PayoutRequests()); got != 1 {
		t.Errorf("Expected no new payout requests in dry run, got %d total", got)
	}
	if got := payoutByID(t, st, "r1").Status; got != models.PayoutStatusPending {
		t.Errorf("Expected pending request untouched in dry run, got %s", got)
	}
	if pc.Collect.Succeeded != 1 || pc.Process.Succeeded != 1 || pc.Sweep.Succeeded != 1 {
		t.Errorf("Expected dry run counters to mirror live behavior, got %+v", pc)
	}
}

func TestPayoutSkipFlags(t *testing.T) {
	st := store.NewMemoryStore()
	st.SeedBankAccount(models.BankAccount{
		ID: "ba_1", StripeAccountID: "acct_1", Currency: "eur", AutoPayoutEnabled: true,
	})
	st.SeedPayoutRequest(models.PayoutRequest{
		ID: "r1", Status: models.PayoutStatusPending,
		StripeAccountID: "acct_2", Amount: 2000, Currency: "eur",
	})
	stripe := &fakeStripe{
		platformBalance: eurBalance(8000),
		accountBalances: map[string]*stripepay.Balance{"acct_1": eurBalance(5000)},
	}
	cfg := payoutConfig()
	cfg.PlatformDestination = "ba_platform"
	cfg.SkipCollect = true
	cfg.SkipProcess = true
	cfg.SkipSweep = true

	e := newTestPayoutEngine(st, stripe, cfg)
	pc, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if pc.Failures() != 0 || pc.Successes() != 0 {
		t.Errorf("Expected skipped phases to do nothing, got %+v", pc)
	}
	if stripe.accountBalanceCalls != 0 || stripe.payoutCalls != 0 || stripe.balanceCalls != 0 {
		t.Errorf("Expected no Stripe traffic with every phase skipped")
	}
	if got := payoutByID(t, st, "r1").Status; got != models.PayoutStatusPending {
		t.Errorf("Expected pending request untouched, got %s", got)
	}
}
