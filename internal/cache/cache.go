// Package cache holds the latest known snapshot per topic. Pure data:
// it never calls network or broadcast code.
package cache

import (
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/google/go-cmp/cmp"
)

type entry struct {
	snapshot    models.Snapshot
	lastAttempt time.Time
}

// TopicCache is a keyed store of the latest snapshot per topic
type TopicCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty topic cache
func New() *TopicCache {
	return &TopicCache{entries: make(map[string]*entry)}
}

// Get returns the cached snapshot for a topic, if any
func (c *TopicCache) Get(topic string) (models.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[topic]
	if !ok {
		return models.Snapshot{}, false
	}
	return e.snapshot, true
}

// Put stores a snapshot and reports whether the content differs from what
// was cached. An equal snapshot leaves the cached entry in place (its
// FetchedAt is not replaced) but still bumps the last-attempt time.
func (c *TopicCache) Put(topic string, snap models.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[topic]
	if !ok {
		c.entries[topic] = &entry{snapshot: snap, lastAttempt: snap.FetchedAt}
		return true
	}

	e.lastAttempt = snap.FetchedAt
	if cmp.Equal(e.snapshot.Games, snap.Games) {
		return false
	}

	e.snapshot = snap
	return true
}

// LastAttempt returns the time of the most recent Put for a topic,
// whether or not it changed the content.
func (c *TopicCache) LastAttempt(topic string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[topic]
	if !ok {
		return time.Time{}, false
	}
	return e.lastAttempt, true
}

// Topics returns the keys with a cached snapshot
func (c *TopicCache) Topics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
