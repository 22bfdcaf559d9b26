package pipeline

import (
	"sync"
	"time"
)

// dedupSet remembers processed message ids per owner for a bounded window so
// at-least-once webhook redelivery never double-counts. Entries expire after
// the window; the provider does not redeliver beyond it.
type dedupSet struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newDedupSet(window time.Duration) *dedupSet {
	if window <= 0 {
		window = time.Hour
	}
	return &dedupSet{
		window: window,
		seen:   map[string]time.Time{},
	}
}

func dedupKey(ownerID, messageID string) string {
	return ownerID + "\x00" + messageID
}

// Claim marks the message as processed and reports whether this caller won
// the claim. A second claim inside the window returns false.
func (d *dedupSet) Claim(ownerID, messageID string) bool {
	key := dedupKey(ownerID, messageID)
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked(now)
	if expiry, ok := d.seen[key]; ok && now.Before(expiry) {
		return false
	}
	d.seen[key] = now.Add(d.window)
	return true
}

// Release drops a claim so a failed commit can be retried on redelivery.
func (d *dedupSet) Release(ownerID, messageID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, dedupKey(ownerID, messageID))
}

func (d *dedupSet) sweepLocked(now time.Time) {
	for key, expiry := range d.seen {
		if now.After(expiry) {
			delete(d.seen, key)
		}
	}
}
