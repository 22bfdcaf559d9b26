package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/db"
)

// Postgres-backed stores over the shared pgx pool. Every operation is a
// single statement so concurrent pipelines never race on read-modify-write.

type postgresSubscriptionStore struct{}

type postgresStatsStore struct{}

type postgresCredentialStore struct{}

func NewPostgresStores() Stores {
	return Stores{
		Subscriptions: &postgresSubscriptionStore{},
		Stats:         &postgresStatsStore{},
		Credentials:   &postgresCredentialStore{},
	}
}

func (s *postgresSubscriptionStore) Upsert(ctx context.Context, sub models.Subscription) error {
	query := `
		INSERT INTO subscriptions (owner_id, external_id, resource, client_state, expires_at, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id)
		DO UPDATE SET external_id = EXCLUDED.external_id,
			resource = EXCLUDED.resource,
			client_state = EXCLUDED.client_state,
			expires_at = EXCLUDED.expires_at,
			state = EXCLUDED.state
	`

	_, err := db.Pool.Exec(ctx, query,
		sub.OwnerID, sub.ExternalID, sub.Resource, sub.ClientState, sub.ExpiresAt, string(sub.State))
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (s *postgresSubscriptionStore) GetByOwner(ctx context.Context, ownerID string) (models.Subscription, error) {
	query := `SELECT owner_id, external_id, resource, client_state, expires_at, state
		FROM subscriptions WHERE owner_id = $1`
	return s.scanOne(db.Pool.QueryRow(ctx, query, ownerID))
}

func (s *postgresSubscriptionStore) GetByExternalID(ctx context.Context, externalID string) (models.Subscription, error) {
	query := `SELECT owner_id, external_id, resource, client_state, expires_at, state
		FROM subscriptions WHERE external_id = $1 AND state <> 'deleted'`
	return s.scanOne(db.Pool.QueryRow(ctx, query, externalID))
}

func (s *postgresSubscriptionStore) scanOne(row pgx.Row) (models.Subscription, error) {
	var sub models.Subscription
	var state string
	err := row.Scan(&sub.OwnerID, &sub.ExternalID, &sub.Resource, &sub.ClientState, &sub.ExpiresAt, &state)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Subscription{}, ErrNotFound
	}
	if err != nil {
		return models.Subscription{}, fmt.Errorf("failed to scan subscription: %w", err)
	}
	sub.State = models.SubscriptionState(state)
	return sub, nil
}

func (s *postgresSubscriptionStore) SetState(ctx context.Context, ownerID string, state models.SubscriptionState) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE subscriptions SET state = $2 WHERE owner_id = $1`, ownerID, string(state))
	if err != nil {
		return fmt.Errorf("failed to update subscription state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresSubscriptionStore) Delete(ctx context.Context, ownerID string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM subscriptions WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *postgresSubscriptionStore) ListLive(ctx context.Context) ([]models.Subscription, error) {
	query := `SELECT owner_id, external_id, resource, client_state, expires_at, state
		FROM subscriptions WHERE state <> 'deleted'`

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var state string
		if err := rows.Scan(&sub.OwnerID, &sub.ExternalID, &sub.Resource, &sub.ClientState, &sub.ExpiresAt, &state); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.State = models.SubscriptionState(state)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *postgresStatsStore) Get(ctx context.Context, ownerID string) (models.UserStats, bool, error) {
	// Zero-initializing upsert: the first access creates the record so that
	// reads and increments never observe a missing row.
	query := `
		INSERT INTO user_stats (owner_id, total_emails, spam_count, ham_count)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (owner_id) DO NOTHING
	`
	tag, err := db.Pool.Exec(ctx, query, ownerID)
	if err != nil {
		return models.UserStats{}, false, fmt.Errorf("failed to init stats: %w", err)
	}
	created := tag.RowsAffected() > 0

	var stats models.UserStats
	err = db.Pool.QueryRow(ctx,
		`SELECT owner_id, total_emails, spam_count, ham_count FROM user_stats WHERE owner_id = $1`,
		ownerID,
	).Scan(&stats.OwnerID, &stats.TotalEmails, &stats.SpamCount, &stats.HamCount)
	if err != nil {
		return models.UserStats{}, false, fmt.Errorf("failed to read stats: %w", err)
	}
	return stats, created, nil
}

func (s *postgresStatsStore) Increment(ctx context.Context, ownerID string, label models.Label) (models.UserStats, error) {
	spam, ham := 0, 1
	if label == models.LabelSpam {
		spam, ham = 1, 0
	}

	// Single-statement commutative increment; this is the pipeline's one
	// atomic commit point.
	query := `
		INSERT INTO user_stats (owner_id, total_emails, spam_count, ham_count)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (owner_id)
		DO UPDATE SET total_emails = user_stats.total_emails + 1,
			spam_count = user_stats.spam_count + $2,
			ham_count = user_stats.ham_count + $3
		RETURNING owner_id, total_emails, spam_count, ham_count
	`

	var stats models.UserStats
	err := db.Pool.QueryRow(ctx, query, ownerID, spam, ham).
		Scan(&stats.OwnerID, &stats.TotalEmails, &stats.SpamCount, &stats.HamCount)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to increment stats: %w", err)
	}
	return stats, nil
}

func (s *postgresCredentialStore) Save(ctx context.Context, cred models.AccessCredential) error {
	if cred.SavedAt.IsZero() {
		cred.SavedAt = time.Now()
	}
	query := `
		INSERT INTO access_tokens (owner_id, token, saved_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id)
		DO UPDATE SET token = EXCLUDED.token, saved_at = EXCLUDED.saved_at
	`
	_, err := db.Pool.Exec(ctx, query, cred.OwnerID, cred.Token, cred.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (s *postgresCredentialStore) Get(ctx context.Context, ownerID string) (models.AccessCredential, error) {
	var cred models.AccessCredential
	err := db.Pool.QueryRow(ctx,
		`SELECT owner_id, token, saved_at FROM access_tokens WHERE owner_id = $1`,
		ownerID,
	).Scan(&cred.OwnerID, &cred.Token, &cred.SavedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.AccessCredential{}, ErrNotFound
	}
	if err != nil {
		return models.AccessCredential{}, fmt.Errorf("failed to read credential: %w", err)
	}
	return cred, nil
}
