package mandcluster

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/mandcluster/internal/interfaces"
)

// LatencyBuckets defines the harvest-latency histogram buckets in
// nanoseconds, covering timings from the worker's intake of a request to
// its harvested result, from a few
// microseconds (tight busy-poll) up into the hundreds of milliseconds
// (deep backlog).
var LatencyBuckets = []uint64{
	10_000,      // 10us
	100_000,     // 100us
	1_000_000,   // 1ms
	10_000_000,  // 10ms
	100_000_000, // 100ms
	1_000_000_000, // 1s
}

const numLatencyBuckets = 6

// Metrics tracks dispatch and harvest statistics for a Scheduler.
type Metrics struct {
	Submits          atomic.Uint64
	HarvestSuccesses atomic.Uint64
	CoreResets       atomic.Uint64
	RetryExhausted   atomic.Uint64
	DispatchRejected atomic.Uint64
	ResponseDropped  atomic.Uint64

	TotalLatencyNs atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with its clock started.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the scheduler as stopped, freezing uptime calculations.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics safe to serialize.
type MetricsSnapshot struct {
	Submits          uint64
	HarvestSuccesses uint64
	CoreResets       uint64
	RetryExhausted   uint64
	DispatchRejected uint64
	ResponseDropped  uint64

	AvgHarvestLatencyNs uint64
	LatencyHistogram    [numLatencyBuckets]uint64

	UptimeNs uint64
}

// Snapshot returns a point-in-time snapshot of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Submits:          m.Submits.Load(),
		HarvestSuccesses: m.HarvestSuccesses.Load(),
		CoreResets:       m.CoreResets.Load(),
		RetryExhausted:   m.RetryExhausted.Load(),
		DispatchRejected: m.DispatchRejected.Load(),
		ResponseDropped:  m.ResponseDropped.Load(),
	}

	if snap.HarvestSuccesses > 0 {
		snap.AvgHarvestLatencyNs = m.TotalLatencyNs.Load() / snap.HarvestSuccesses
	}
	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	return snap
}

// Reset zeroes all counters, restarting the uptime clock. Useful for tests.
func (m *Metrics) Reset() {
	m.Submits.Store(0)
	m.HarvestSuccesses.Store(0)
	m.CoreResets.Store(0)
	m.RetryExhausted.Store(0)
	m.DispatchRejected.Store(0)
	m.ResponseDropped.Store(0)
	m.TotalLatencyNs.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver discards every scheduler event; the default when no metrics
// backend is configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit()               {}
func (NoOpObserver) ObserveHarvestSuccess(uint64) {}
func (NoOpObserver) ObserveCoreReset()            {}
func (NoOpObserver) ObserveRetryExhausted()       {}
func (NoOpObserver) ObserveDispatchRejected()     {}
func (NoOpObserver) ObserveResponseDropped()      {}

// MetricsObserver implements interfaces.Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit() { o.metrics.Submits.Add(1) }

func (o *MetricsObserver) ObserveHarvestSuccess(latencyNs uint64) {
	o.metrics.HarvestSuccesses.Add(1)
	o.metrics.recordLatency(latencyNs)
}

func (o *MetricsObserver) ObserveCoreReset()        { o.metrics.CoreResets.Add(1) }
func (o *MetricsObserver) ObserveRetryExhausted()   { o.metrics.RetryExhausted.Add(1) }
func (o *MetricsObserver) ObserveDispatchRejected() { o.metrics.DispatchRejected.Add(1) }
func (o *MetricsObserver) ObserveResponseDropped()  { o.metrics.ResponseDropped.Add(1) }

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = (*NoOpObserver)(nil)
)
