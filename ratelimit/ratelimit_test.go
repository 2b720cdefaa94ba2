package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketPerKey(t *testing.T) {
	tb := NewTokenBucket(time.Hour, 1)

	if !tb.Allow("session-1") {
		t.Fatal("first request for session-1 should be allowed")
	}
	if tb.Allow("session-1") {
		t.Error("second request for session-1 should be denied")
	}
	if !tb.Allow("session-2") {
		t.Error("session-2 has its own bucket and should be allowed")
	}
}

func TestTokenBucketCapacity(t *testing.T) {
	tb := NewTokenBucket(time.Hour, 3)

	for i := 0; i < 3; i++ {
		if !tb.Allow("s") {
			t.Fatalf("request %d should be within capacity", i+1)
		}
	}
	if tb.Allow("s") {
		t.Error("request beyond capacity should be denied")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(50*time.Millisecond, 1)

	if !tb.Allow("s") {
		t.Fatal("first request should be allowed")
	}
	if tb.Allow("s") {
		t.Fatal("bucket should be empty")
	}
	time.Sleep(60 * time.Millisecond)
	if !tb.Allow("s") {
		t.Error("bucket should have refilled after the interval")
	}
}

func TestFixedWindowPerKey(t *testing.T) {
	fw := NewFixedWindow(time.Hour)

	if !fw.Allow("session-1") {
		t.Fatal("first request for session-1 should be allowed")
	}
	if fw.Allow("session-1") {
		t.Error("request within the window should be denied")
	}
	if !fw.Allow("session-2") {
		t.Error("session-2 has its own window and should be allowed")
	}
}

func TestFixedWindowReopens(t *testing.T) {
	fw := NewFixedWindow(50 * time.Millisecond)

	if !fw.Allow("s") {
		t.Fatal("first request should be allowed")
	}
	if fw.Allow("s") {
		t.Fatal("request within the window should be denied")
	}
	time.Sleep(60 * time.Millisecond)
	if !fw.Allow("s") {
		t.Error("request after the window should be allowed")
	}
}
