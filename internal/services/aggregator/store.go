package aggregator

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/portfel/internal/domain"
	"github.com/vadiminshakov/portfel/internal/events"
)

// Store is the global snapshot: every group's current aggregated
// record, keyed by group name. A group may be fed by several exchange
// connections; each connection owns a disjoint asset slice and replaces
// only its own contribution, serialized by a per-group lock. Records
// are created lazily on first sight and live for the process lifetime.
type Store struct {
	mu          sync.RWMutex
	groups      map[string]*groupState
	broadcaster *events.ChangeBroadcaster
}

type groupState struct {
	mu            sync.Mutex
	record        *domain.GroupRecord
	contributions map[string]domain.AssetMap // connection id -> its asset slice
}

func NewStore() *Store {
	return &Store{
		groups:      make(map[string]*groupState),
		broadcaster: events.NewChangeBroadcaster(256),
	}
}

func (s *Store) group(name, valuation string) *groupState {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		g = &groupState{
			record:        domain.NewGroupRecord(name, valuation),
			contributions: make(map[string]domain.AssetMap),
		}
		s.groups[name] = g
	}
	return g
}

// Replace swaps one connection's asset contribution for the group and
// recomputes the published record under the group lock. Connections in
// a group must agree on the valuation currency; the first writer wins
// on lazy creation.
func (s *Store) Replace(group, valuation, connection string, assets domain.AssetMap) {
	g := s.group(group, valuation)

	g.mu.Lock()
	g.contributions[connection] = assets.Copy()

	merged := make(domain.AssetMap)
	for _, contribution := range g.contributions {
		for symbol, asset := range contribution {
			merged[symbol] = asset
		}
	}
	g.record.Balances = merged
	g.record.RecomputeTotal()
	g.mu.Unlock()

	s.broadcaster.Publish(events.Change{Group: group, At: time.Now()})
}

// SetFundBalances attaches the supplementary spot/earn balances to a
// group record. Nil values leave the previous ones in place, so a
// failed supplementary fetch does not erase the last good reading.
func (s *Store) SetFundBalances(group, valuation string, spot, earn *decimal.Decimal) {
	g := s.group(group, valuation)
	g.mu.Lock()
	if spot != nil {
		v := *spot
		g.record.SpotBalance = &v
	}
	if earn != nil {
		v := *earn
		g.record.EarnBalance = &v
	}
	g.mu.Unlock()
}

// Get returns a deep copy of one group's record.
func (s *Store) Get(group string) (domain.GroupRecord, bool) {
	s.mu.RLock()
	g, ok := s.groups[group]
	s.mu.RUnlock()
	if !ok {
		return domain.GroupRecord{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record.Copy(), true
}

// Groups returns all known group names, sorted.
func (s *Store) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns deep copies of every group record. Readers may see
// some groups newer than others; per-group records are always
// internally consistent.
func (s *Store) Snapshot() map[string]domain.GroupRecord {
	s.mu.RLock()
	states := make(map[string]*groupState, len(s.groups))
	for name, g := range s.groups {
		states[name] = g
	}
	s.mu.RUnlock()

	snapshot := make(map[string]domain.GroupRecord, len(states))
	for name, g := range states {
		g.mu.Lock()
		snapshot[name] = g.record.Copy()
		g.mu.Unlock()
	}
	return snapshot
}

// Subscribe returns a channel of change events for sinks.
func (s *Store) Subscribe() chan events.Change {
	return s.broadcaster.Subscribe()
}

// Unsubscribe releases a subscription channel.
func (s *Store) Unsubscribe(ch chan events.Change) {
	s.broadcaster.Unsubscribe(ch)
}
