package reaper

import (
	"context"
	"log"
	"time"

	"codesync/internal/session"
	"codesync/pkg/interfaces"
)

// DefaultInterval is how often unused rooms are swept
const DefaultInterval = time.Hour

// Reaper evicts session state of rooms nobody is connected to
// FUNCTIONAL DISCOVERY: Membership comes from the transport registry, not the
// store - a room with files but no live members is garbage
type Reaper struct {
	store      *session.Store
	membership interfaces.Membership
	interval   time.Duration
}

// NewReaper creates a reaper. A non-positive interval means DefaultInterval.
func NewReaper(store *session.Store, membership interfaces.Membership, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		store:      store,
		membership: membership,
		interval:   interval,
	}
}

// Interval returns the sweep period
func (r *Reaper) Interval() time.Duration {
	return r.interval
}

// Sweep evicts every room with zero live members and returns the evicted IDs
func (r *Reaper) Sweep() []string {
	var evicted []string
	for _, roomID := range r.store.Rooms() {
		if r.membership.RoomMemberCount(roomID) > 0 {
			continue
		}
		log.Printf("Cleaning up unused room: %s", roomID)
		r.store.Evict(roomID)
		evicted = append(evicted, roomID)
	}
	return evicted
}

// Run sweeps on every tick until ctx is cancelled
// ARCHITECTURAL DISCOVERY: The running server lets the hub drive sweeps from its own
// loop instead; Run serves deployments without an event core
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
