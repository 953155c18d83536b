package models

// Snapshot is a read-only copy of the session metrics.
// ResponseTimesMs and QueryTypeLabels are index-paired.
type Snapshot struct {
	ResponseTimesMs []float64 `json:"response_times_ms"`
	QueryTypeLabels []string  `json:"query_type_labels"`
	CacheHitCount   int       `json:"cache_hit_count"`
	CacheMissCount  int       `json:"cache_miss_count"`
	ErrorLog        []string  `json:"error_log"`
}

// Total returns the number of successful submissions.
func (s Snapshot) Total() int {
	return s.CacheHitCount + s.CacheMissCount
}

// HitRate returns hits / total, or 0 when nothing was recorded.
func (s Snapshot) HitRate() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.CacheHitCount) / float64(total)
}
