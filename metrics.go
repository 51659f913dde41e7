package texstream

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordRequest is called for every texture request.
	// hit reports whether the frame was already cached.
	RecordRequest(priority Priority, hit bool)

	// RecordLoad is called after each load pipeline run.
	// duration covers loader plus binder; err is nil on success.
	RecordLoad(frameIndex int, duration time.Duration, err error)

	// RecordPreload is called after each preload plan, with the number of
	// candidates actually enqueued.
	RecordPreload(enqueued int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRequest(Priority, bool)         {}
func (NoopMetricsCollector) RecordLoad(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordPreload(int)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RequestCount   atomic.Int64
	RequestHits    atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadTotalNanos atomic.Int64
	PreloadCount   atomic.Int64
	PreloadFrames  atomic.Int64
}

// RecordRequest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRequest(_ Priority, hit bool) {
	b.RequestCount.Add(1)
	if hit {
		b.RequestHits.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ int, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordPreload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPreload(enqueued int) {
	b.PreloadCount.Add(1)
	b.PreloadFrames.Add(int64(enqueued))
}

// Stats is a point-in-time snapshot of engine counters. All counters
// accumulate for the lifetime of the engine instance and reset only on
// Destroy.
type Stats struct {
	Hits             int64
	Misses           int64
	ResidentBytes    int64
	ResidentEntries  int
	Evictions        int64
	PolicyViolations int64

	Loads        int64
	LoadFailures int64
	BindFailures int64

	TotalLoadNanos int64
	AvgLoadNanos   int64
}

// engineStats tracks load pipeline counters. Cache-side counters (hits,
// misses, evictions, policy violations) live in the cache itself.
type engineStats struct {
	loads          atomic.Int64
	loadFailures   atomic.Int64
	bindFailures   atomic.Int64
	totalLoadNanos atomic.Int64
}

func (s *engineStats) recordLoad(d time.Duration) {
	s.loads.Add(1)
	s.totalLoadNanos.Add(d.Nanoseconds())
}

func (s *engineStats) avgLoadNanos() int64 {
	n := s.loads.Load()
	if n == 0 {
		return 0
	}
	return s.totalLoadNanos.Load() / n
}
