// Package store provides record store backends for hubdispatch.
//
// This file implements a simple in-memory store used by tests.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/contenthub/hubdispatch/internal/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation. It applies the same
// selection semantics as the remote backends and records every write so
// tests can assert on them.
type MemoryStore struct {
	mu             sync.Mutex
	posts          []models.Post
	publications   []models.Publication
	payoutRequests []models.PayoutRequest
	bankAccounts   []models.BankAccount
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SeedPost adds a post to the store.
func (s *MemoryStore) SeedPost(p models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.posts = append(s.posts, p)
}

// SeedPayoutRequest adds a payout request to the store.
func (s *MemoryStore) SeedPayoutRequest(r models.PayoutRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	s.payoutRequests = append(s.payoutRequests, r)
}

// SeedBankAccount adds a bank account to the store.
func (s *MemoryStore) SeedBankAccount(a models.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.bankAccounts = append(s.bankAccounts, a)
}

// Post returns the stored post with the given id.
func (s *MemoryStore) Post(id string) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// Publications returns all recorded publications.
func (s *MemoryStore) Publications() []models.Publication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Publication(nil), s.publications...)
}

// PayoutRequests returns all payout requests, seeded and inserted.
func (s *MemoryStore) PayoutRequests() []models.PayoutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PayoutRequest(nil), s.payoutRequests...)
}

func (s *MemoryStore) ListDuePosts(ctx context.Context, now time.Time, limit int) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.Post
	for _, p := range s.posts {
		if p.Status == models.PostStatusScheduled && !p.ScheduledFor.After(now) {
			due = append(due, p)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) MarkPost(ctx context.Context, id string, status models.PostStatus, errSummary string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.posts {
		if s.posts[i].ID == id {
			s.posts[i].Status = status
			if errSummary != "" {
				s.posts[i].LastError = errSummary
			}
			return nil
		}
	}
	return &StoreError{Op: "PATCH posts", StatusCode: 404, Body: "post not found"}
}

func (s *MemoryStore) InsertPublication(ctx context.Context, pub models.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publications = append(s.publications, pub)
	return nil
}

func (s *MemoryStore) ListPendingPayouts(ctx context.Context, limit int) ([]models.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pending []models.PayoutRequest
	for _, r := range s.payoutRequests {
		if r.Status == models.PayoutStatusPending {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *MemoryStore) MarkPayout(ctx context.Context, id string, status models.PayoutStatus, stripePayoutID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payoutRequests {
		if s.payoutRequests[i].ID == id {
			s.payoutRequests[i].Status = status
			if stripePayoutID != "" {
				s.payoutRequests[i].StripePayoutID = stripePayoutID
			}
			return nil
		}
	}
	return &StoreError{Op: "PATCH payout_requests", StatusCode: 404, Body: "payout request not found"}
}

func (s *MemoryStore) ListAutoPayoutAccounts(ctx context.Context) ([]models.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var accounts []models.BankAccount
	for _, a := range s.bankAccounts {
		if a.AutoPayoutEnabled && a.StripeAccountID != "" {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

func (s *MemoryStore) HasAutoPayoutToday(ctx context.Context, accountID string, dayUTC time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nextDay := dayUTC.Add(24 * time.Hour)
	for _, r := range s.payoutRequests {
		if r.AccountID != accountID || !r.AutoCreated {
			continue
		}
		if r.CreatedAt.Before(dayUTC) || !r.CreatedAt.Before(nextDay) {
			continue
		}
		switch r.Status {
		case models.PayoutStatusPending, models.PayoutStatusInTransit, models.PayoutStatusPaid:
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) InsertPayoutRequest(ctx context.Context, req models.PayoutRequest) (models.PayoutRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = uuid.NewString()
	s.payoutRequests = append(s.payoutRequests, req)
	return req, nil
}
