package normalizer

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/portfel/internal/domain"
)

var (
	// PushEpsilon is the non-zero threshold for push-fed caches.
	PushEpsilon = decimal.New(1, -6) // 1e-6
	// RestEpsilon is the tighter threshold for REST-polled caches.
	RestEpsilon = decimal.New(1, -8) // 1e-8
)

// Cache keeps the last known non-zero amount per currency for one
// exchange connection. Push feeds deliver partial updates; without the
// cache a holding missing from one update would vanish from the group
// until the next full report. Entries live for the lifetime of the
// connection's monitoring loop.
type Cache struct {
	mu      sync.Mutex
	epsilon decimal.Decimal
	amounts map[string]decimal.Decimal
}

func NewCache(epsilon decimal.Decimal) *Cache {
	return &Cache{
		epsilon: epsilon,
		amounts: make(map[string]decimal.Decimal),
	}
}

// Merge applies a partial snapshot: reported amounts above the epsilon
// overwrite the cached value, reported amounts at or below it delete
// the entry (the balance went to zero). Currencies absent from the
// snapshot are left untouched.
func (c *Cache) Merge(raw domain.RawSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(raw)
}

// MergeFull applies a full snapshot: same overwrite/delete rules as
// Merge, and additionally drops cached currencies the snapshot does not
// mention at all, since a full account report lists everything held.
func (c *Cache) MergeFull(raw domain.RawSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(raw)
	for cur := range c.amounts {
		if _, ok := raw.Total[cur]; !ok {
			delete(c.amounts, cur)
		}
	}
}

func (c *Cache) apply(raw domain.RawSnapshot) {
	for cur, amt := range raw.Total {
		if amt.Abs().GreaterThan(c.epsilon) {
			c.amounts[cur] = amt
			continue
		}
		delete(c.amounts, cur)
	}
}

// Snapshot returns a copy of the cached amounts for iteration.
func (c *Cache) Snapshot() map[string]decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]decimal.Decimal, len(c.amounts))
	for cur, amt := range c.amounts {
		cp[cur] = amt
	}
	return cp
}

// Len returns the number of cached currencies.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.amounts)
}
