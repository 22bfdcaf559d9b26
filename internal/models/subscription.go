package models

import (
	"time"
)

// SubscriptionState tracks where a subscription is in its lifecycle.
type SubscriptionState string

const (
	SubscriptionPending  SubscriptionState = "pending"
	SubscriptionActive   SubscriptionState = "active"
	SubscriptionExpiring SubscriptionState = "expiring"
	SubscriptionDeleted  SubscriptionState = "deleted"
)

// Subscription represents a push-notification registration on a user's
// mailbox. ExternalID is assigned by the mail provider and is the only
// identifier inbound notifications carry; correlation back to OwnerID is a
// reverse lookup. ClientState is a random token bound at creation and echoed
// back in every genuine notification.
type Subscription struct {
	OwnerID     string            `json:"owner_id" db:"owner_id"`
	ExternalID  string            `json:"external_id" db:"external_id"`
	Resource    string            `json:"resource" db:"resource"`
	ClientState string            `json:"client_state" db:"client_state"`
	ExpiresAt   time.Time         `json:"expires_at" db:"expires_at"`
	State       SubscriptionState `json:"state" db:"state"`
}

// Live reports whether the subscription should still receive notifications.
func (s Subscription) Live() bool {
	return s.State == SubscriptionActive || s.State == SubscriptionPending
}

// Notification is one inbound webhook entry after decoding: the provider's
// subscription reference plus the identifier of the new message. It is
// ephemeral and never persisted beyond processing.
type Notification struct {
	ExternalID        string    `json:"external_id"`
	ChangedResourceID string    `json:"changed_resource_id"`
	ReceivedAt        time.Time `json:"received_at"`
}
