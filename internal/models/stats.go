package models

import "go.uber.org/atomic"

// Stats holds per-instance operation counters. Counters are monotonically
// increasing for the lifetime of the owning cache; they reset only when the
// cache is reconstructed. TotalOperations counts lookups (hits + misses +
// errors); mutating operations do not move the hit rate.
type Stats struct {
	Hits   atomic.Int64
	Misses atomic.Int64
	Errors atomic.Int64
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// TotalOperations returns hits + misses + errors.
func (s *Stats) TotalOperations() int64 {
	return s.Hits.Load() + s.Misses.Load() + s.Errors.Load()
}

// HitRate returns hits / total operations, or 0 when nothing was counted.
func (s *Stats) HitRate() float64 {
	total := s.TotalOperations()
	if total == 0 {
		return 0
	}
	return float64(s.Hits.Load()) / float64(total)
}

// Snapshot exports the counters as a map for monitoring consumers. The
// returned map is a point-in-time copy; mutating it has no effect on the
// live counters.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"hits":             s.Hits.Load(),
		"misses":           s.Misses.Load(),
		"errors":           s.Errors.Load(),
		"total_operations": s.TotalOperations(),
		"hit_rate":         s.HitRate(),
	}
}
