package market

import (
	"errors"
	"sync"
	"time"
)

// maxCachedDates bounds each exchange table cache. A scan touches about a
// week of sessions, so this covers several pinned evaluation dates.
const maxCachedDates = 64

// errNotPublished marks an exchange table that is empty or flagged not OK,
// which is what the exchange returns before its after-hours publication.
var errNotPublished = errors.New("exchange table not published")

type tableEntry[V any] struct {
	table   map[string]V
	err     error
	expires time.Time // zero for published tables
}

// tableCache keeps exchange-wide tables by date key. Published tables stay
// until evicted; failures are remembered until they expire so a scan does
// not refetch a missing table once per stock.
type tableCache[V any] struct {
	mu      sync.Mutex
	entries map[string]tableEntry[V]
}

func newTableCache[V any]() *tableCache[V] {
	return &tableCache[V]{entries: make(map[string]tableEntry[V])}
}

func (c *tableCache[V]) get(key string, now time.Time) (tableEntry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		delete(c.entries, key)
		return tableEntry[V]{}, false
	}
	return e, true
}

func (c *tableCache[V]) put(key string, e tableEntry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= maxCachedDates {
		// Date keys sort chronologically; drop the oldest.
		oldest := ""
		for k := range c.entries {
			if oldest == "" || k < oldest {
				oldest = k
			}
		}
		delete(c.entries, oldest)
	}
	c.entries[key] = e
}

func (c *tableCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
