package scanner

import (
	"sort"
	"sync"

	"github.com/haaandolo/rotom-sub000/pkg/types"
)

// SpreadKey canonicalizes an (exchange pair, instrument) so symmetric
// pairs dedupe in the ranking: the lower ExchangeId always sits in A.
type SpreadKey struct {
	ExchangeA  types.ExchangeId
	ExchangeB  types.ExchangeId
	Instrument types.Instrument
}

// CanonicalSpreadKey orders (a, b) so the lower id is always ExchangeA.
func CanonicalSpreadKey(a, b types.ExchangeId, inst types.Instrument) SpreadKey {
	if a > b {
		a, b = b, a
	}
	return SpreadKey{ExchangeA: a, ExchangeB: b, Instrument: inst}
}

// SpreadEntry is one ranked entry: a key and its current make-make value.
type SpreadEntry struct {
	Key   SpreadKey
	Value float64
}

// SpreadsSorted keeps two maps in sync — key→value and value→key — plus a
// sorted slice of values, so that inserting/updating an entry is O(log n)
// to locate and the top-10 snapshot is a plain slice slice. Go has no
// built-in ordered map/BTree (see DESIGN.md); for the handful of entries
// this scanner ever tracks (one per exchange-pair per instrument) a
// sorted slice with binary search is simpler and just as fast as a tree.
type SpreadsSorted struct {
	mu      sync.Mutex
	byKey   map[SpreadKey]float64
	byValue map[float64]SpreadKey
	values  []float64 // sorted ascending, mirrors byValue's keys
}

func NewSpreadsSorted() *SpreadsSorted {
	return &SpreadsSorted{
		byKey:   make(map[SpreadKey]float64),
		byValue: make(map[float64]SpreadKey),
	}
}

// Upsert records value for key. If key already held a different value,
// the stale value-keyed entry is removed first so the ranking never
// shows a key twice.
func (s *SpreadsSorted) Upsert(key SpreadKey, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byKey[key]; ok {
		if old == value {
			return
		}
		s.removeValueLocked(old)
	}
	s.byKey[key] = value
	s.byValue[value] = key
	s.insertValueLocked(value)
}

// Remove drops key entirely (used when its spread is no longer positive).
func (s *SpreadsSorted) Remove(key SpreadKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.byKey[key]
	if !ok {
		return
	}
	delete(s.byKey, key)
	s.removeValueLocked(old)
}

func (s *SpreadsSorted) removeValueLocked(v float64) {
	delete(s.byValue, v)
	idx := sort.SearchFloat64s(s.values, v)
	if idx < len(s.values) && s.values[idx] == v {
		s.values = append(s.values[:idx], s.values[idx+1:]...)
	}
}

func (s *SpreadsSorted) insertValueLocked(v float64) {
	idx := sort.SearchFloat64s(s.values, v)
	s.values = append(s.values, 0)
	copy(s.values[idx+1:], s.values[idx:])
	s.values[idx] = v
}

// Snapshot returns up to the top 10 entries by value, descending.
func (s *SpreadsSorted) Snapshot() []SpreadEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.values)
	top := 10
	if n < top {
		top = n
	}
	out := make([]SpreadEntry, 0, top)
	for i := 0; i < top; i++ {
		v := s.values[n-1-i]
		out = append(out, SpreadEntry{Key: s.byValue[v], Value: v})
	}
	return out
}
