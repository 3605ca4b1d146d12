package engine

import (
	"sync"
	"time"
)

// alertDedup suppresses repeats of the same alert key within a TTL. It is
// safe for concurrent use.
type alertDedup struct {
	ttl  time.Duration
	mu   sync.Mutex
	seen map[string]time.Time
}

func newAlertDedup(ttl time.Duration) *alertDedup {
	return &alertDedup{ttl: ttl, seen: make(map[string]time.Time)}
}

// first reports whether key has not fired within the TTL before now, and
// records it when so.
func (d *alertDedup) first(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[key]; ok && now.Sub(last) < d.ttl {
		return false
	}
	d.seen[key] = now

	for k, ts := range d.seen {
		if now.Sub(ts) >= d.ttl {
			delete(d.seen, k)
		}
	}
	return true
}

// forget drops key so the next occurrence fires again.
func (d *alertDedup) forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
}
