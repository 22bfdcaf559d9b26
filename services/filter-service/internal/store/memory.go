package store

import (
	"context"
	"sync"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

// Memory-backed stores. State is process-local; used for development runs
// and tests where a database is not available.

type memorySubscriptionStore struct {
	mu      sync.Mutex
	byOwner map[string]models.Subscription
}

type memoryStatsStore struct {
	mu      sync.Mutex
	byOwner map[string]models.UserStats
}

type memoryCredentialStore struct {
	mu      sync.Mutex
	byOwner map[string]models.AccessCredential
}

func NewMemoryStores() Stores {
	return Stores{
		Subscriptions: &memorySubscriptionStore{byOwner: map[string]models.Subscription{}},
		Stats:         &memoryStatsStore{byOwner: map[string]models.UserStats{}},
		Credentials:   &memoryCredentialStore{byOwner: map[string]models.AccessCredential{}},
	}
}

func (s *memorySubscriptionStore) Upsert(ctx context.Context, sub models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[sub.OwnerID] = sub
	return nil
}

func (s *memorySubscriptionStore) GetByOwner(ctx context.Context, ownerID string) (models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byOwner[ownerID]
	if !ok {
		return models.Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (s *memorySubscriptionStore) GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.byOwner {
		if sub.ExternalID == externalID && sub.State != models.SubscriptionDeleted {
			return sub, nil
		}
	}
	return models.Subscription{}, ErrNotFound
}

func (s *memorySubscriptionStore) SetState(ctx context.Context, ownerID string, state models.SubscriptionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byOwner[ownerID]
	if !ok {
		return ErrNotFound
	}
	sub.State = state
	s.byOwner[ownerID] = sub
	return nil
}

func (s *memorySubscriptionStore) Delete(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOwner, ownerID)
	return nil
}

func (s *memorySubscriptionStore) ListLive(ctx context.Context) ([]models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []models.Subscription
	for _, sub := range s.byOwner {
		if sub.State != models.SubscriptionDeleted {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *memoryStatsStore) Get(ctx context.Context, ownerID string) (models.UserStats, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.byOwner[ownerID]
	if ok {
		return stats, false, nil
	}
	stats = models.UserStats{OwnerID: ownerID}
	s.byOwner[ownerID] = stats
	return stats, true, nil
}

func (s *memoryStatsStore) Increment(ctx context.Context, ownerID string, label models.Label) (models.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats, ok := s.byOwner[ownerID]
	if !ok {
		stats = models.UserStats{OwnerID: ownerID}
	}
	stats.TotalEmails++
	if label == models.LabelSpam {
		stats.SpamCount++
	} else {
		stats.HamCount++
	}
	s.byOwner[ownerID] = stats
	return stats, nil
}

func (s *memoryCredentialStore) Save(ctx context.Context, cred models.AccessCredential) error {
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byOwner[cred.OwnerID] = cred
	return nil
}

func (s *memoryCredentialStore) Get(ctx context.Context, ownerID string) (models.AccessCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.byOwner[ownerID]
	if !ok {
		return models.AccessCredential{}, ErrNotFound
	}
	return cred, nil
}
