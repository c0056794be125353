package models

import "time"

// SystemMetrics is a lightweight summary of engine counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	ExtensionTransitions     uint64    `json:"extension_transitions"`
	PeriodToggles            uint64    `json:"period_toggles"`
	MirrorsCreated           uint64    `json:"mirrors_created"`
	EventsDropped            uint64    `json:"events_dropped"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
