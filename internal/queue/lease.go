package queue

import "sync"

// LeaseSet hands out exclusive in-process leases keyed by payload ID.
// The queue may deliver two jobs for the same video (retry poller racing
// a redelivery, operator requeue racing a sweep); the lease guarantees at
// most one worker executes a stage for a given payload at a time. The
// loser drops its job; the pollers will re-surface the work if the
// holder does not finish it.
type LeaseSet struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLeaseSet() *LeaseSet {
	return &LeaseSet{held: make(map[string]struct{})}
}

// TryAcquire takes the lease for key if free. Never blocks.
func (l *LeaseSet) TryAcquire(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release frees the lease. Releasing an unheld key is a no-op.
func (l *LeaseSet) Release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
}
