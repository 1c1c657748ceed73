package models

import "time"

// SystemMetrics is a lightweight snapshot of in-process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	AllocationsSucceeded     uint64    `json:"allocations_succeeded"`
	AllocationsFailed        uint64    `json:"allocations_failed"`
	ExportsFinished          uint64    `json:"exports_finished"`
	ExportsFailed            uint64    `json:"exports_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
