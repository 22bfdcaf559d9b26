package graph

import (
	"context"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
)

// CreatedSubscription is the provider's answer to a subscribe call.
type CreatedSubscription struct {
	ExternalID string
	ExpiresAt  time.Time
}

// Client defines the mail-provider verbs the filter service consumes. Every
// call carries the owner's bearer token and a bounded context; the provider
// is a remote service and each call site is a recoverable boundary.
type Client interface {
	// Subscribe registers a push-notification subscription on resource,
	// delivering to callbackURL for the duration of lease. clientState is
	// echoed back in notifications so the correlator can authenticate them.
	Subscribe(ctx context.Context, token, resource, callbackURL string, lease time.Duration, clientState string) (CreatedSubscription, error)

	// Renew extends an existing subscription by lease and returns the new
	// expiry.
	Renew(ctx context.Context, token, externalID string, lease time.Duration) (time.Time, error)

	// Unsubscribe tears down the provider-side subscription.
	Unsubscribe(ctx context.Context, token, externalID string) error

	// GetMessage retrieves subject and body for a message id.
	GetMessage(ctx context.Context, token, messageID string) (models.Message, error)

	// MoveMessage moves a message into the destination folder.
	MoveMessage(ctx context.Context, token, messageID, destination string) error
}
