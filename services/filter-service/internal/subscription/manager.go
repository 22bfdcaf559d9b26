// Package subscription owns the lifecycle of the provider-side mailbox
// subscriptions: create on onboarding, renew on a per-subscription timer,
// tear down on revocation. At most one live subscription exists per owner.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/graph"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/store"
)

var (
	// ErrCreateFailed means the upstream subscribe call failed and nothing
	// was persisted.
	ErrCreateFailed = errors.New("subscription create failed")

	// ErrRenewFailed means the upstream rejected a renewal. The record
	// transitions to expiring so the next cycle attempts a fresh create
	// instead of renewing a dead handle.
	ErrRenewFailed = errors.New("subscription renew failed")
)

const upstreamTimeout = 30 * time.Second

// Config carries the lease schedule. Renewal fires at expiry minus Margin,
// strictly before the lease runs out.
type Config struct {
	Resource     string
	CallbackURL  string
	InitialLease time.Duration
	RenewalLease time.Duration
	Margin       time.Duration
}

type Manager struct {
	cfg    Config
	graph  graph.Client
	subs   store.SubscriptionStore
	creds  store.CredentialStore
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func NewManager(cfg Config, client graph.Client, subs store.SubscriptionStore, creds store.CredentialStore) *Manager {
	if cfg.Resource == "" {
		cfg.Resource = "/me/mailFolders/inbox/messages"
	}
	if cfg.InitialLease <= 0 {
		cfg.InitialLease = 60 * time.Minute
	}
	if cfg.RenewalLease <= 0 {
		cfg.RenewalLease = 50 * time.Minute
	}
	if cfg.Margin <= 0 || cfg.Margin >= cfg.RenewalLease {
		cfg.Margin = 10 * time.Minute
	}
	return &Manager{
		cfg:    cfg,
		graph:  client,
		subs:   subs,
		creds:  creds,
		timers: map[string]*time.Timer{},
	}
}

// Create registers a subscription for ownerID using token. Duplicate
// onboarding calls are expected: an existing live record is returned as-is
// with no upstream call. An expiring record is replaced by a fresh
// subscribe, since its upstream handle is already dead.
func (m *Manager) Create(ctx context.Context, ownerID, token string) (models.Subscription, error) {
	existing, err := m.subs.GetByOwner(ctx, ownerID)
	if err == nil && existing.Live() {
		log.Printf("[Subscription] Create for %s: already active (%s)", ownerID, existing.ExternalID)
		return existing, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return models.Subscription{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	clientState := uuid.NewString()
	created, err := m.graph.Subscribe(ctx, token, m.cfg.Resource, m.cfg.CallbackURL, m.cfg.InitialLease, clientState)
	if err != nil {
		// Nothing persisted on upstream failure; no partial record.
		return models.Subscription{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	sub := models.Subscription{
		OwnerID:     ownerID,
		ExternalID:  created.ExternalID,
		Resource:    m.cfg.Resource,
		ClientState: clientState,
		ExpiresAt:   created.ExpiresAt,
		State:       models.SubscriptionActive,
	}
	if err := m.subs.Upsert(ctx, sub); err != nil {
		return models.Subscription{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	log.Printf("[Subscription] Created %s for user %s, expires %s",
		sub.ExternalID, ownerID, sub.ExpiresAt.Format(time.RFC3339))
	m.schedule(sub)
	return sub, nil
}

// Delete tears down the owner's subscription. The local record is removed
// regardless of the upstream outcome; a dangling provider-side subscription
// no longer resolves in the correlator and is simply ignored.
func (m *Manager) Delete(ctx context.Context, ownerID string) error {
	m.stopTimer(ownerID)

	sub, err := m.subs.GetByOwner(ctx, ownerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if cred, err := m.creds.Get(ctx, ownerID); err == nil {
		if err := m.graph.Unsubscribe(ctx, cred.Token, sub.ExternalID); err != nil {
			log.Printf("[Subscription] Unsubscribe %s upstream failed (continuing): %v", sub.ExternalID, err)
		}
	} else {
		log.Printf("[Subscription] No credential for %s, skipping upstream unsubscribe", ownerID)
	}

	if err := m.subs.Delete(ctx, ownerID); err != nil {
		return err
	}
	log.Printf("[Subscription] Deleted subscription for user %s", ownerID)
	return nil
}

// RescheduleAll derives the renewal timer set from the store. Called on
// boot: timers are not durable across restarts. Subscriptions already
// inside the margin are renewed eagerly before the timers are armed.
func (m *Manager) RescheduleAll(ctx context.Context) error {
	subs, err := m.subs.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load subscriptions: %w", err)
	}

	for _, sub := range subs {
		if time.Until(sub.ExpiresAt) <= m.cfg.Margin {
			m.renewOwner(sub.OwnerID)
			continue
		}
		m.schedule(sub)
	}
	log.Printf("[Subscription] Rescheduled renewals for %d subscription(s)", len(subs))
	return nil
}

// Close stops all renewal timers. In-flight renewals finish on their own.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for ownerID, timer := range m.timers {
		timer.Stop()
		delete(m.timers, ownerID)
	}
}

// schedule arms (or re-arms) the renewal timer for sub at expiry - margin.
func (m *Manager) schedule(sub models.Subscription) {
	delay := time.Until(sub.ExpiresAt) - m.cfg.Margin
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if old, ok := m.timers[sub.OwnerID]; ok {
		old.Stop()
	}
	ownerID := sub.OwnerID
	m.timers[ownerID] = time.AfterFunc(delay, func() {
		m.renewOwner(ownerID)
	})
}

func (m *Manager) stopTimer(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.timers[ownerID]; ok {
		timer.Stop()
		delete(m.timers, ownerID)
	}
}

// renewOwner runs one renewal attempt for the owner's current subscription.
// On upstream rejection the record becomes expiring, not deleted, and the
// timer is dropped; a later create replaces the dead handle.
func (m *Manager) renewOwner(ownerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), upstreamTimeout)
	defer cancel()

	sub, err := m.subs.GetByOwner(ctx, ownerID)
	if err != nil {
		log.Printf("[Subscription] Renew for %s skipped: %v", ownerID, err)
		m.stopTimer(ownerID)
		return
	}
	if !sub.Live() {
		m.stopTimer(ownerID)
		return
	}

	if err := m.renew(ctx, sub); err != nil {
		log.Printf("[Subscription] Renew %s failed: %v", sub.ExternalID, err)
		m.stopTimer(ownerID)
		if err := m.subs.SetState(ctx, ownerID, models.SubscriptionExpiring); err != nil {
			log.Printf("[Subscription] Failed to mark %s expiring: %v", ownerID, err)
		}
	}
}

func (m *Manager) renew(ctx context.Context, sub models.Subscription) error {
	cred, err := m.creds.Get(ctx, sub.OwnerID)
	if err != nil {
		return fmt.Errorf("%w: no credential: %v", ErrRenewFailed, err)
	}

	expires, err := m.graph.Renew(ctx, cred.Token, sub.ExternalID, m.cfg.RenewalLease)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenewFailed, err)
	}

	sub.ExpiresAt = expires
	sub.State = models.SubscriptionActive
	if err := m.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("%w: %v", ErrRenewFailed, err)
	}

	log.Printf("[Subscription] Renewed %s for user %s until %s",
		sub.ExternalID, sub.OwnerID, expires.Format(time.RFC3339))
	m.schedule(sub)
	return nil
}
