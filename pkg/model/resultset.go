package model

import "sync"

// ResultSet is the ordered list of users produced by one search. Positions
// are stable for the lifetime of a search generation; every Clear starts a
// new generation and writes tagged with an older one are refused.
type ResultSet struct {
	mu         sync.RWMutex
	records    []Record
	generation uint64
}

// NewResultSet returns an empty result set at generation 0.
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Generation returns the current generation.
func (rs *ResultSet) Generation() uint64 {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.generation
}

// Len returns the number of slots.
func (rs *ResultSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.records)
}

// At returns the slot at idx.
func (rs *ResultSet) At(idx int) (Record, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	if idx < 0 || idx >= len(rs.records) {
		return Record{}, false
	}
	return rs.records[idx], true
}

// Snapshot returns a copy of all slots.
func (rs *ResultSet) Snapshot() []Record {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	out := make([]Record, len(rs.records))
	copy(out, rs.records)
	return out
}

// Clear drops all slots and starts a new generation, which it returns.
func (rs *ResultSet) Clear() uint64 {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.records = nil
	rs.generation++
	return rs.generation
}

// Replace swaps in a freshly built list of summaries. It returns false and
// leaves the set untouched when gen is no longer current.
func (rs *ResultSet) Replace(gen uint64, users []SummaryUser) bool {
	records := make([]Record, len(users))
	for i, u := range users {
		records[i] = Record{Summary: u}
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if gen != rs.generation {
		return false
	}
	rs.records = records
	return true
}

// SetUser stores a fully loaded user at idx. Writes from a stale generation,
// out of range, or for a different id than the slot holds are refused.
func (rs *ResultSet) SetUser(gen uint64, idx int, user *User) bool {
	if user == nil {
		return false
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if gen != rs.generation || idx < 0 || idx >= len(rs.records) {
		return false
	}
	if rs.records[idx].ID() != user.ID {
		return false
	}
	rs.records[idx].Full = user
	return true
}
