package execution

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default throttle settings: two runs per second with a burst of five
const (
	DefaultThrottleRate  = 2.0
	DefaultThrottleBurst = 5
)

// Throttle implements per-connection rate limiting of execution requests
// ARCHITECTURAL DISCOVERY: Per-connection state tracking with idle cleanup prevents memory leaks
type Throttle struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientLimit
}

// clientLimit tracks the token bucket of a single connection
type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewThrottle creates a throttle allowing perSecond runs with the given burst.
// A non-positive rate disables throttling.
func NewThrottle(perSecond float64, burst int) *Throttle {
	if burst <= 0 {
		burst = DefaultThrottleBurst
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Throttle{
		limit:   limit,
		burst:   burst,
		clients: make(map[string]*clientLimit),
	}
}

// Allow reports whether connectionID may start another run now
func (t *Throttle) Allow(connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	client, exists := t.clients[connectionID]
	if !exists {
		// FUNCTIONAL DISCOVERY: First request always allowed, bucket starts full
		client = &clientLimit{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.clients[connectionID] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// Forget drops the state of a connection that went away
func (t *Throttle) Forget(connectionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.clients, connectionID)
}

// Cleanup removes entries idle for longer than maxIdle and returns how many were dropped
func (t *Throttle) Cleanup(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, client := range t.clients {
		if now.Sub(client.lastSeen) > maxIdle {
			delete(t.clients, id)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of connections with throttle state
func (t *Throttle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}
