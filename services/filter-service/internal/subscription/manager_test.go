package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/RyanEisele1012/Email-Filter/internal/models"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/graph"
	"github.com/RyanEisele1012/Email-Filter/services/filter-service/internal/store"
)

type fakeGraph struct {
	mu               sync.Mutex
	subscribeCalls   int
	subscribeErr     error
	renewCalls       int
	renewErr         error
	unsubscribeCalls int
	unsubscribeErr   error
	nextID           string
}

func (f *fakeGraph) Subscribe(ctx context.Context, token, resource, callbackURL string, lease time.Duration, clientState string) (graph.CreatedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return graph.CreatedSubscription{}, f.subscribeErr
	}
	id := f.nextID
	if id == "" {
		id = "ext_1"
	}
	return graph.CreatedSubscription{ExternalID: id, ExpiresAt: time.Now().Add(lease)}, nil
}

func (f *fakeGraph) Renew(ctx context.Context, token, externalID string, lease time.Duration) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renewCalls++
	if f.renewErr != nil {
		return time.Time{}, f.renewErr
	}
	return time.Now().Add(lease), nil
}

func (f *fakeGraph) Unsubscribe(ctx context.Context, token, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeCalls++
	return f.unsubscribeErr
}

func (f *fakeGraph) GetMessage(ctx context.Context, token, messageID string) (models.Message, error) {
	return models.Message{}, errors.New("not implemented")
}

func (f *fakeGraph) MoveMessage(ctx context.Context, token, messageID, destination string) error {
	return errors.New("not implemented")
}

func newTestManager(t *testing.T, client graph.Client) (*Manager, store.Stores) {
	t.Helper()
	stores := store.NewMemoryStores()
	mgr := NewManager(Config{
		CallbackURL:  "http://localhost:3000/listen",
		InitialLease: time.Hour,
		RenewalLease: 50 * time.Minute,
		Margin:       10 * time.Minute,
	}, client, stores.Subscriptions, stores.Credentials)
	t.Cleanup(mgr.Close)

	if err := stores.Credentials.Save(context.Background(), models.AccessCredential{OwnerID: "user_1", Token: "tok_1"}); err != nil {
		t.Fatalf("seed credential failed: %v", err)
	}
	return mgr, stores
}

func TestCreateIsIdempotent(t *testing.T) {
	client := &fakeGraph{}
	mgr, _ := newTestManager(t, client)
	ctx := context.Background()

	first, err := mgr.Create(ctx, "user_1", "tok_1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.State != models.SubscriptionActive || first.ExternalID == "" || first.ClientState == "" {
		t.Fatalf("unexpected subscription: %+v", first)
	}

	second, err := mgr.Create(ctx, "user_1", "tok_1")
	if err != nil {
		t.Fatalf("duplicate create failed: %v", err)
	}
	if second.ExternalID != first.ExternalID {
		t.Fatalf("duplicate create returned a different subscription: %q vs %q", second.ExternalID, first.ExternalID)
	}
	if client.subscribeCalls != 1 {
		t.Fatalf("expected exactly one upstream subscribe call, got %d", client.subscribeCalls)
	}
}

func TestCreatePersistsNothingOnUpstreamFailure(t *testing.T) {
	client := &fakeGraph{subscribeErr: errors.New("quota exceeded")}
	mgr, stores := newTestManager(t, client)
	ctx := context.Background()

	_, err := mgr.Create(ctx, "user_1", "tok_1")
	if !errors.Is(err, ErrCreateFailed) {
		t.Fatalf("expected ErrCreateFailed, got %v", err)
	}
	if _, err := stores.Subscriptions.GetByOwner(ctx, "user_1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no partial record, got %v", err)
	}
}

func TestRenewFailureMarksExpiringAndCreateReplaces(t *testing.T) {
	client := &fakeGraph{renewErr: errors.New("subscription gone upstream")}
	mgr, stores := newTestManager(t, client)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "user_1", "tok_1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mgr.renewOwner("user_1")

	sub, err := stores.Subscriptions.GetByOwner(ctx, "user_1")
	if err != nil {
		t.Fatalf("get after failed renew: %v", err)
	}
	if sub.State != models.SubscriptionExpiring {
		t.Fatalf("expected expiring state after failed renew, got %s", sub.State)
	}

	// A fresh create replaces the dead handle with a new subscription.
	client.mu.Lock()
	client.renewErr = nil
	client.nextID = "ext_2"
	client.mu.Unlock()

	replaced, err := mgr.Create(ctx, "user_1", "tok_1")
	if err != nil {
		t.Fatalf("replacement create failed: %v", err)
	}
	if replaced.ExternalID != "ext_2" || replaced.State != models.SubscriptionActive {
		t.Fatalf("expected fresh active subscription, got %+v", replaced)
	}
	if client.subscribeCalls != 2 {
		t.Fatalf("expected second subscribe call for replacement, got %d", client.subscribeCalls)
	}
}

func TestRenewSuccessExtendsExpiry(t *testing.T) {
	client := &fakeGraph{}
	mgr, stores := newTestManager(t, client)
	ctx := context.Background()

	created, err := mgr.Create(ctx, "user_1", "tok_1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mgr.renewOwner("user_1")

	sub, err := stores.Subscriptions.GetByOwner(ctx, "user_1")
	if err != nil {
		t.Fatalf("get after renew: %v", err)
	}
	if sub.State != models.SubscriptionActive {
		t.Fatalf("expected active state after renew, got %s", sub.State)
	}
	if !sub.ExpiresAt.After(created.ExpiresAt.Add(-15*time.Minute)) || client.renewCalls != 1 {
		t.Fatalf("expected one renew extending expiry, calls=%d expires=%s", client.renewCalls, sub.ExpiresAt)
	}
}

func TestDeleteRemovesLocalRecordDespiteUpstreamFailure(t *testing.T) {
	client := &fakeGraph{unsubscribeErr: errors.New("network down")}
	mgr, stores := newTestManager(t, client)
	ctx := context.Background()

	if _, err := mgr.Create(ctx, "user_1", "tok_1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mgr.Delete(ctx, "user_1"); err != nil {
		t.Fatalf("delete should not surface upstream failure, got %v", err)
	}

	if _, err := stores.Subscriptions.GetByOwner(ctx, "user_1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
	if client.unsubscribeCalls != 1 {
		t.Fatalf("expected one upstream unsubscribe attempt, got %d", client.unsubscribeCalls)
	}

	// Deleting a missing subscription is a no-op.
	if err := mgr.Delete(ctx, "user_1"); err != nil {
		t.Fatalf("repeat delete failed: %v", err)
	}
}

func TestRescheduleAllRenewsEagerlyInsideMargin(t *testing.T) {
	client := &fakeGraph{}
	mgr, stores := newTestManager(t, client)
	ctx := context.Background()

	// Simulate a restart with a subscription already inside the renewal
	// margin: the timer set is rebuilt from the store and this record is
	// renewed eagerly rather than waiting for a timer.
	sub := models.Subscription{
		OwnerID:     "user_1",
		ExternalID:  "ext_1",
		Resource:    "/me/mailFolders/inbox/messages",
		ClientState: "secret",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		State:       models.SubscriptionActive,
	}
	if err := stores.Subscriptions.Upsert(ctx, sub); err != nil {
		t.Fatalf("seed subscription failed: %v", err)
	}

	if err := mgr.RescheduleAll(ctx); err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if client.renewCalls != 1 {
		t.Fatalf("expected eager renew on boot, got %d calls", client.renewCalls)
	}

	renewed, err := stores.Subscriptions.GetByOwner(ctx, "user_1")
	if err != nil {
		t.Fatalf("get after eager renew: %v", err)
	}
	if time.Until(renewed.ExpiresAt) < 30*time.Minute {
		t.Fatalf("expected extended expiry, got %s", renewed.ExpiresAt)
	}
}
