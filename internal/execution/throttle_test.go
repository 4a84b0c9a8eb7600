package execution

import (
	"testing"
	"time"
)

func TestThrottle_BurstThenDeny(t *testing.T) {
	throttle := NewThrottle(0.001, 3)

	for i := 0; i < 3; i++ {
		if !throttle.Allow("c1") {
			t.Fatalf("Request %d within burst was denied", i)
		}
	}
	if throttle.Allow("c1") {
		t.Error("Request beyond burst should be denied")
	}

	// Buckets are per connection
	if !throttle.Allow("c2") {
		t.Error("Another connection must have its own bucket")
	}
}

func TestThrottle_DisabledWithNonPositiveRate(t *testing.T) {
	throttle := NewThrottle(0, 1)
	for i := 0; i < 100; i++ {
		if !throttle.Allow("c1") {
			t.Fatal("Disabled throttle must allow everything")
		}
	}
}

func TestThrottle_ForgetAndCleanup(t *testing.T) {
	throttle := NewThrottle(DefaultThrottleRate, DefaultThrottleBurst)
	throttle.Allow("c1")
	throttle.Allow("c2")

	throttle.Forget("c1")
	if throttle.Tracked() != 1 {
		t.Errorf("Expected 1 tracked connection, got %d", throttle.Tracked())
	}

	if removed := throttle.Cleanup(time.Hour); removed != 0 {
		t.Errorf("Fresh entries must survive cleanup, removed %d", removed)
	}
	time.Sleep(5 * time.Millisecond)
	if removed := throttle.Cleanup(time.Millisecond); removed != 1 {
		t.Errorf("Expected 1 idle entry removed, got %d", removed)
	}
}
