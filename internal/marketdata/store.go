package marketdata

import "sync/atomic"

// Store is a struct-of-arrays keyed by SymbolId. It is written exclusively
// by one thread (the detector) and read by many (the strategy runner and
// its monitor). There is no locking: readers accept a stale-by-one-update
// view, which every consumer re-validates before acting on it (spec §4.2).
//
// present is an []int32 of atomics rather than []bool so readers can
// observe it with Load/Store instead of racing on a plain bool.
type Store struct {
	bid     []float64
	ask     []float64
	ts      []uint64
	present []int32
}

// NewStore allocates a store sized for MaxSymbols ids.
func NewStore() *Store {
	return &Store{
		bid:     make([]float64, MaxSymbols),
		ask:     make([]float64, MaxSymbols),
		ts:      make([]uint64, MaxSymbols),
		present: make([]int32, MaxSymbols),
	}
}

// Apply writes an Update into the store. O(1), no allocation. Malformed
// updates (see Update.Valid) are rejected rather than silently stored,
// matching the detector's "never fails, skips bad input" contract.
func (s *Store) Apply(u Update) bool {
	if int(u.SymbolId) >= len(s.bid) || !u.Valid() {
		return false
	}
	i := u.SymbolId
	s.bid[i] = u.Bid
	s.ask[i] = u.Ask
	s.ts[i] = u.TimestampUs
	atomic.StoreInt32(&s.present[i], 1)
	return true
}

// Bid returns the latest bid for id, or (0, false) if never set or out of
// range.
func (s *Store) Bid(id SymbolId) (float64, bool) {
	if int(id) >= len(s.bid) || atomic.LoadInt32(&s.present[id]) == 0 {
		return 0, false
	}
	return s.bid[id], true
}

// Ask returns the latest ask for id, or (0, false) if never set or out of
// range.
func (s *Store) Ask(id SymbolId) (float64, bool) {
	if int(id) >= len(s.ask) || atomic.LoadInt32(&s.present[id]) == 0 {
		return 0, false
	}
	return s.ask[id], true
}

// Timestamp returns the microsecond timestamp of the last write to id.
func (s *Store) Timestamp(id SymbolId) (uint64, bool) {
	if int(id) >= len(s.ts) || atomic.LoadInt32(&s.present[id]) == 0 {
		return 0, false
	}
	return s.ts[id], true
}

// Present reports whether id has ever been written.
func (s *Store) Present(id SymbolId) bool {
	if int(id) >= len(s.present) {
		return false
	}
	return atomic.LoadInt32(&s.present[id]) == 1
}

// SpreadBps computes ((ask-bid)/bid)*10000 for id. Returns (0, false) if
// the symbol is absent or bid <= 0.
func (s *Store) SpreadBps(id SymbolId) (float64, bool) {
	bid, ok := s.Bid(id)
	if !ok || bid <= 0 {
		return 0, false
	}
	ask, ok := s.Ask(id)
	if !ok {
		return 0, false
	}
	return ((ask - bid) / bid) * 10000, true
}

// Snapshot is a point-in-time read of one symbol's quote.
type Snapshot struct {
	SymbolId SymbolId
	Bid      float64
	Ask      float64
	Ts       uint64
}

// IterPresent invokes fn for every currently-present symbol. The view is
// not a consistent point-in-time snapshot of the whole store (the writer
// may be concurrently updating other entries); each individual Snapshot is
// internally consistent only in the single-writer-reads-back-its-own-write
// sense described in spec §4.2.
func (s *Store) IterPresent(fn func(Snapshot)) {
	for i := range s.present {
		if atomic.LoadInt32(&s.present[i]) == 0 {
			continue
		}
		fn(Snapshot{SymbolId: SymbolId(i), Bid: s.bid[i], Ask: s.ask[i], Ts: s.ts[i]})
	}
}
