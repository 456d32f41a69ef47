// Package monitoring carries the service's in-process metrics and the
// realtime prediction feed.
package monitoring

import (
	"sync"
	"time"
)

// MetricsCollector tracks service counters for the /api/metrics endpoint.
type MetricsCollector struct {
	mu sync.RWMutex

	startTime    time.Time
	requests     int64
	onTime       int64
	delayed      int64
	trainingRuns int64
	cacheHits    int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

func (mc *MetricsCollector) IncRequests() {
	mc.mu.Lock()
	mc.requests++
	mc.mu.Unlock()
}

func (mc *MetricsCollector) AddPredictions(labels []int) {
	mc.mu.Lock()
	for _, label := range labels {
		if label == 1 {
			mc.delayed++
		} else {
			mc.onTime++
		}
	}
	mc.mu.Unlock()
}

func (mc *MetricsCollector) IncTrainingRuns() {
	mc.mu.Lock()
	mc.trainingRuns++
	mc.mu.Unlock()
}

func (mc *MetricsCollector) IncCacheHits(n int) {
	mc.mu.Lock()
	mc.cacheHits += int64(n)
	mc.mu.Unlock()
}

// Snapshot is the JSON shape served by /api/metrics.
type Snapshot struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Requests         int64   `json:"requests"`
	PredictedOnTime  int64   `json:"predicted_on_time"`
	PredictedDelayed int64   `json:"predicted_delayed"`
	TrainingRuns     int64   `json:"training_runs"`
	CacheHits        int64   `json:"cache_hits"`
}

func (mc *MetricsCollector) Snapshot() Snapshot {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:    time.Since(mc.startTime).Seconds(),
		Requests:         mc.requests,
		PredictedOnTime:  mc.onTime,
		PredictedDelayed: mc.delayed,
		TrainingRuns:     mc.trainingRuns,
		CacheHits:        mc.cacheHits,
	}
}
