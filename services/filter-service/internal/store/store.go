// Package store holds the durable state of the filter service: subscription
// records, per-user counters and provider access tokens. All mutations are
// single-record atomic operations (upsert-on-conflict, atomic increment), so
// no multi-record transactions or global locks are needed; ownership is
// sharded by owner id.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

// ErrNotFound is returned when a record does not exist for the given key.
var ErrNotFound = errors.New("record not found")

// SubscriptionStore maps user identities to their active subscription. At
// most one non-deleted subscription exists per owner; the external id is
// globally unique and is the key inbound notifications are correlated by.
type SubscriptionStore interface {
	// Upsert inserts or replaces the subscription record for its owner.
	Upsert(ctx context.Context, sub models.Subscription) error

	// GetByOwner returns the subscription owned by ownerID, or ErrNotFound.
	GetByOwner(ctx context.Context, ownerID string) (models.Subscription, error)

	// GetByExternalID is the reverse lookup used by webhook correlation.
	// Deleted subscriptions are never returned.
	GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error)

	// SetState transitions the stored record without touching other fields.
	SetState(ctx context.Context, ownerID string, state models.SubscriptionState) error

	// Delete removes the local record. Removing a missing record is not an
	// error; delete must reach the same end state either way.
	Delete(ctx context.Context, ownerID string) error

	// ListLive returns every non-deleted subscription. Used on boot to
	// derive the renewal timer set from the store rather than from any
	// in-memory state lost on restart.
	ListLive(ctx context.Context) ([]models.Subscription, error)
}

// StatsStore owns the per-user classification counters.
type StatsStore interface {
	// Get returns the counters for ownerID, creating a zero record on first
	// access. created reports whether this call initialized the record.
	Get(ctx context.Context, ownerID string) (stats models.UserStats, created bool, err error)

	// Increment atomically bumps TotalEmails plus the bucket matching label
	// and returns the updated counters. Increments are commutative so
	// concurrent pipelines for the same owner cannot corrupt the totals.
	Increment(ctx context.Context, ownerID string, label models.Label) (models.UserStats, error)
}

// CredentialStore holds provider-issued access tokens, keyed by owner.
type CredentialStore interface {
	// Save overwrites the stored credential for its owner.
	Save(ctx context.Context, cred models.AccessCredential) error

	// Get returns the current credential, or ErrNotFound.
	Get(ctx context.Context, ownerID string) (models.AccessCredential, error)
}

// Stores bundles the three collections behind one handle.
type Stores struct {
	Subscriptions SubscriptionStore
	Stats         StatsStore
	Credentials   CredentialStore
}

// Open selects a backend by name. "postgres" uses the shared pgx pool and
// requires db.Init to have run; "memory" is for development and tests.
func Open(backend string) (Stores, error) {
	switch backend {
	case "", "postgres":
		return NewPostgresStores(), nil
	case "memory", "mem":
		return NewMemoryStores(), nil
	default:
		return Stores{}, fmt.Errorf("unsupported store backend: %s", backend)
	}
}
