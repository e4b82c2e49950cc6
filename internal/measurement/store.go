package measurement

import (
	"math"
	"sync"
)

// Store owns the finalized series and the single pending series being built
// by the parser. Finalized series are only ever appended or removed in bulk
// (RemoveAll, RemoveLast); the pending series is never visible in the
// finalized list.
//
// All methods are safe for concurrent use so that ingestion, exports and
// HTTP readers can run on separate goroutines.
type Store struct {
	mu      sync.RWMutex
	series  []Series
	pending Series
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// AddPoint appends a point to the pending series. Values are not validated.
func (s *Store) AddPoint(voltage, current float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending.add(Point{Voltage: voltage, Current: current})
}

// ResetPending replaces the pending series with a fresh empty one. Callers
// holding a copy of the previous pending series keep their own data.
func (s *Store) ResetPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = Series{}
}

// FinalizePending moves the pending series into the finalized list if it is
// non-empty and resets the pending series. It reports whether a series was
// stored.
func (s *Store) FinalizePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending.Empty() {
		s.pending = Series{}
		return false
	}
	s.series = append(s.series, s.pending)
	s.pending = Series{}
	return true
}

// Append adds an already complete series to the finalized list, e.g. when
// restoring from the archive. Empty series are refused.
func (s *Store) Append(series Series) bool {
	if series.Empty() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = append(s.series, NewSeries(series.points...))
	return true
}

// RemoveAll clears the finalized list. The pending series is untouched.
func (s *Store) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = nil
}

// RemoveLast drops the most recently finalized series, if any.
func (s *Store) RemoveLast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.series) == 0 {
		return
	}
	s.series[len(s.series)-1] = Series{}
	s.series = s.series[:len(s.series)-1]
}

// Len returns the number of finalized series.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// Series returns the finalized series at index i (0-based).
func (s *Store) Series(i int) (Series, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.series) {
		return Series{}, false
	}
	return s.series[i], true
}

// All returns the finalized series in arrival order. The returned slice is
// owned by the caller.
func (s *Store) All() []Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Series, len(s.series))
	copy(out, s.series)
	return out
}

// Pending returns a copy of the series currently being received.
func (s *Store) Pending() Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSeries(s.pending.points...)
}

// PendingLen returns the number of points in the pending series.
func (s *Store) PendingLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Len()
}

// MaxVoltage scans every finalized point and the pending series. It returns
// 0 when there are no points, and never less than 0.
func (s *Store) MaxVoltage() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.pending.MaxVoltage()
	for _, series := range s.series {
		m = math.Max(m, series.MaxVoltage())
	}
	return m
}

// MaxCurrent is the current counterpart of MaxVoltage.
func (s *Store) MaxCurrent() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.pending.MaxCurrent()
	for _, series := range s.series {
		m = math.Max(m, series.MaxCurrent())
	}
	return m
}

// RoundUpToHalf rounds v up to the next multiple of 0.5, used for chart axis
// bounds.
func RoundUpToHalf(v float64) float64 {
	return math.Ceil(v*2) / 2
}
