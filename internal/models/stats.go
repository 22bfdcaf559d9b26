package models

import "time"

// UserStats holds the per-user classification counters. Invariant:
// TotalEmails == SpamCount + HamCount after every completed pipeline run.
// Counters never decrease and the record is never deleted.
type UserStats struct {
	OwnerID     string `json:"owner_id" db:"owner_id"`
	TotalEmails int64  `json:"totalEmails" db:"total_emails"`
	SpamCount   int64  `json:"numSpamEmails" db:"spam_count"`
	HamCount    int64  `json:"numHamEmails" db:"ham_count"`
}

// AccessCredential is the provider-issued token used to read and move a
// user's messages. It is overwritten on refresh and always re-read from the
// store, never cached in memory, because it can be revoked externally.
type AccessCredential struct {
	OwnerID string    `json:"owner_id" db:"owner_id"`
	Token   string    `json:"token" db:"token"`
	SavedAt time.Time `json:"saved_at" db:"saved_at"`
}
