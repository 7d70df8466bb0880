package application

import (
	"sync"
	"time"

	"github.com/example/hall-scheduler/internal/availability"
	"github.com/example/hall-scheduler/internal/timewindow"
)

// freePeriodCache stores recently computed free periods so repeated
// availability queries for the same room and date skip the repository while
// the room remains unchanged. Every write to a room bumps its generation;
// results computed against an older generation are not stored.
type freePeriodCache struct {
	mu          sync.RWMutex
	now         func() time.Time
	ttl         time.Duration
	maxEntries  int
	entries     map[freePeriodKey]freePeriodEntry
	generations map[string]uint64
}

type freePeriodKey struct {
	roomID         string
	date           timewindow.Date
	subSlotMinutes int
}

type freePeriodEntry struct {
	periods   []availability.FreePeriod
	expiresAt time.Time
}

func newFreePeriodCache(ttl time.Duration, maxEntries int, now func() time.Time) *freePeriodCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &freePeriodCache{
		now:         now,
		ttl:         ttl,
		maxEntries:  maxEntries,
		entries:     make(map[freePeriodKey]freePeriodEntry),
		generations: make(map[string]uint64),
	}
}

func (c *freePeriodCache) Get(key freePeriodKey) ([]availability.FreePeriod, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return clonePeriods(entry.periods), true
}

// Generation returns the current write generation of roomID.
func (c *freePeriodCache) Generation(roomID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[roomID]
}

// Store records periods computed while the room was at generation.
func (c *freePeriodCache) Store(key freePeriodKey, generation uint64, periods []availability.FreePeriod) {
	if c == nil {
		return
	}
	cloned := clonePeriods(periods)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key.roomID] != generation {
		return
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = freePeriodEntry{periods: cloned, expiresAt: expiry}
}

// InvalidateRoom drops every entry of roomID and advances its generation.
func (c *freePeriodCache) InvalidateRoom(roomID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[roomID]++
	for key := range c.entries {
		if key.roomID == roomID {
			delete(c.entries, key)
		}
	}
}

func (c *freePeriodCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *freePeriodCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func clonePeriods(periods []availability.FreePeriod) []availability.FreePeriod {
	if len(periods) == 0 {
		return nil
	}
	out := make([]availability.FreePeriod, len(periods))
	for i, period := range periods {
		out[i] = period
		if period.SubSlots != nil {
			out[i].SubSlots = append([]availability.Interval(nil), period.SubSlots...)
		}
	}
	return out
}
