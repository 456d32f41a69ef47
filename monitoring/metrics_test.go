package monitoring

import (
	"sync"
	"testing"
)

func TestMetricsCollectorCounters(t *testing.T) {
	mc := NewMetricsCollector()

	mc.IncRequests()
	mc.IncRequests()
	mc.AddPredictions([]int{1, 0, 0, 1, 1})
	mc.IncTrainingRuns()
	mc.IncCacheHits(3)

	snapshot := mc.Snapshot()
	if snapshot.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", snapshot.Requests)
	}
	if snapshot.PredictedDelayed != 3 || snapshot.PredictedOnTime != 2 {
		t.Errorf("expected 3 delayed / 2 on time, got %d / %d",
			snapshot.PredictedDelayed, snapshot.PredictedOnTime)
	}
	if snapshot.TrainingRuns != 1 {
		t.Errorf("expected 1 training run, got %d", snapshot.TrainingRuns)
	}
	if snapshot.CacheHits != 3 {
		t.Errorf("expected 3 cache hits, got %d", snapshot.CacheHits)
	}
	if snapshot.UptimeSeconds < 0 {
		t.Errorf("uptime must not be negative, got %v", snapshot.UptimeSeconds)
	}
}

func TestMetricsCollectorConcurrent(t *testing.T) {
	mc := NewMetricsCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.IncRequests()
			mc.AddPredictions([]int{1})
		}()
	}
	wg.Wait()

	snapshot := mc.Snapshot()
	if snapshot.Requests != 50 {
		t.Errorf("expected 50 requests, got %d", snapshot.Requests)
	}
	if snapshot.PredictedDelayed != 50 {
		t.Errorf("expected 50 delayed, got %d", snapshot.PredictedDelayed)
	}
}
