// Package dedup discards QoS1 redeliveries by remembering payload hashes for a
// bounded time window.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

type Window struct {
	mu   sync.Mutex
	ttl  time.Duration
	cap  int
	seen map[string]time.Time
}

func New(ttl time.Duration, capacity int) *Window {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if capacity <= 0 {
		capacity = 4096
	}
	return &Window{ttl: ttl, cap: capacity, seen: make(map[string]time.Time, capacity)}
}

// Key hashes a payload into a dedup key.
func Key(payload []byte) string {
	h := sha256.Sum256(payload)
	return hex.EncodeToString(h[:])
}

// Admit reports whether a key is new within the window. The first call for a
// key returns true; repeats within the TTL return false.
func (w *Window) Admit(key string) bool {
	if key == "" {
		return true
	}
	now := time.Now()

	w.mu.Lock()
	defer w.mu.Unlock()

	if exp, ok := w.seen[key]; ok && now.Before(exp) {
		return false
	}
	w.seen[key] = now.Add(w.ttl)

	if len(w.seen) > w.cap {
		for k, exp := range w.seen {
			if now.After(exp) {
				delete(w.seen, k)
			}
			if len(w.seen) <= w.cap {
				break
			}
		}
	}
	return true
}
