// Package inbound holds channel-independent inbound message helpers.
package inbound

import (
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultDedupSize = 2048
	DefaultDedupTTL  = 10 * time.Minute
)

// Deduper remembers recently seen message ids so provider redeliveries are
// processed once. State is in memory only.
type Deduper struct {
	mu    sync.Mutex
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
	now   func() time.Time
}

func NewDeduper(size int, ttl time.Duration) (*Deduper, error) {
	if size <= 0 {
		size = DefaultDedupSize
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("message deduper init: %w", err)
	}
	return &Deduper{cache: cache, ttl: ttl, now: time.Now}, nil
}

// Seen records id and reports whether it was already recorded within the TTL.
// Empty ids are never considered duplicates.
func (d *Deduper) Seen(id string) bool {
	id = strings.TrimSpace(id)
	if d == nil || id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if ts, ok := d.cache.Get(id); ok {
		if now.Sub(ts) <= d.ttl {
			return true
		}
		d.cache.Remove(id)
	}
	d.cache.Add(id, now)
	return false
}
