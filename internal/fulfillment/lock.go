package fulfillment

import "sync"

// orderLocks serialises concurrent action runs per order id. Entries are
// reference counted and removed once the last holder releases.
type orderLocks struct {
	mu      sync.Mutex
	entries map[int64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{entries: make(map[int64]*lockEntry)}
}

// lock blocks until the order lock is held and returns the release func.
func (l *orderLocks) lock(orderID int64) func() {
	l.mu.Lock()
	entry := l.entries[orderID]
	if entry == nil {
		entry = &lockEntry{}
		l.entries[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, orderID)
		}
		l.mu.Unlock()
	}
}
