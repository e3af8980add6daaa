package journal

import (
	"sync"

	"github.com/hupe1980/referralmesh/core"
)

// InMemoryStore is a volatile Journal implementation storing records in a
// process local map. It is safe for concurrent access. Records are returned
// as copies to prevent external mutation of internal state.
//
// A MaxRecords bound keeps long-running meshes from growing without limit;
// once reached, the oldest records are dropped.
type InMemoryStore struct {
	mu         sync.RWMutex
	order      []core.HopRecord
	byQuery    map[string][]int
	offset     int
	maxRecords int
}

// NewInMemoryStore constructs an empty journal. maxRecords <= 0 means unbounded.
func NewInMemoryStore(maxRecords int) *InMemoryStore {
	return &InMemoryStore{byQuery: make(map[string][]int), maxRecords: maxRecords}
}

// Append stores a copy of rec.
func (s *InMemoryStore) Append(rec core.HopRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Vector = rec.Vector.Clone()
	s.order = append(s.order, rec)
	s.byQuery[rec.QueryID] = append(s.byQuery[rec.QueryID], s.offset+len(s.order)-1)
	if s.maxRecords > 0 && len(s.order) > s.maxRecords {
		s.evictLocked(len(s.order) - s.maxRecords)
	}
	return nil
}

// Records returns the records of one query in append order.
func (s *InMemoryStore) Records(queryID string) []core.HopRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.byQuery[queryID]
	out := make([]core.HopRecord, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.order[i-s.offset])
	}
	return out
}

// All returns every retained record in append order.
func (s *InMemoryStore) All() []core.HopRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.HopRecord, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of retained records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Reset drops every record.
func (s *InMemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.byQuery = make(map[string][]int)
	s.offset = 0
}

// evictLocked drops the n oldest records; caller must hold the write lock.
func (s *InMemoryStore) evictLocked(n int) {
	for _, rec := range s.order[:n] {
		idx := s.byQuery[rec.QueryID][1:]
		if len(idx) == 0 {
			delete(s.byQuery, rec.QueryID)
			continue
		}
		s.byQuery[rec.QueryID] = idx
	}
	s.order = append([]core.HopRecord(nil), s.order[n:]...)
	s.offset += n
}
