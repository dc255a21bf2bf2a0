package domain

import "time"

// ProviderStats holds per-provider counters for one fetch cycle.
type ProviderStats struct {
	Provider      string
	Requests      int
	Inserted      int
	Duplicates    int
	CacheHits     int
	FailedCountry int
	Skipped       bool // gated out by cooldown or cap before any call
	RateLimited   bool
	Duration      time.Duration
}

// CycleStats aggregates the outcome of one orchestration cycle.
type CycleStats struct {
	Providers []ProviderStats
	Duration  time.Duration
}
