package pipeline

import (
	"testing"
	"time"
)

func TestDedupClaimOncePerWindow(t *testing.T) {
	set := newDedupSet(time.Minute)

	if !set.Claim("user_1", "msg_1") {
		t.Fatalf("first claim should win")
	}
	if set.Claim("user_1", "msg_1") {
		t.Fatalf("second claim inside the window should lose")
	}
	// Different owner or message is an independent claim.
	if !set.Claim("user_2", "msg_1") {
		t.Fatalf("claim should be scoped per owner")
	}
	if !set.Claim("user_1", "msg_2") {
		t.Fatalf("claim should be scoped per message")
	}
}

func TestDedupReleaseAllowsRetry(t *testing.T) {
	set := newDedupSet(time.Minute)

	if !set.Claim("user_1", "msg_1") {
		t.Fatalf("first claim should win")
	}
	set.Release("user_1", "msg_1")
	if !set.Claim("user_1", "msg_1") {
		t.Fatalf("claim after release should win")
	}
}

func TestDedupEntriesExpire(t *testing.T) {
	set := newDedupSet(20 * time.Millisecond)

	if !set.Claim("user_1", "msg_1") {
		t.Fatalf("first claim should win")
	}
	time.Sleep(40 * time.Millisecond)
	if !set.Claim("user_1", "msg_1") {
		t.Fatalf("claim after window should win again")
	}
	if len(set.seen) != 1 {
		t.Fatalf("expired entries should be swept, have %d", len(set.seen))
	}
}
