// FlixFinder - Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/flixfinder

package metrics

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// getCounterValue extracts the value from a Prometheus counter
func getCounterValue(counter prometheus.Counter) float64 {
	var m io_prometheus_client.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// getGaugeValue extracts the value from a Prometheus gauge
func getGaugeValue(gauge prometheus.Gauge) float64 {
	var m io_prometheus_client.Metric
	if err := gauge.Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// TestRecordDBQuery tests database query metric recording
func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		table     string
		duration  time.Duration
		err       error
	}{
		{"successful select", "select", "ratings", 10 * time.Millisecond, nil},
		{"successful insert", "insert", "movies", 5 * time.Millisecond, nil},
		{"failed query", "update", "movies", 100 * time.Millisecond, errors.New("connection refused")},
		{
			"long error is truncated",
			"delete", "ratings", 50 * time.Millisecond,
			errors.New(strings.Repeat("x", 120)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := getCounterValue(DBQueryErrors.WithLabelValues(tt.operation, tt.table, truncate(tt.err)))
			RecordDBQuery(tt.operation, tt.table, tt.duration, tt.err)
			if tt.err == nil {
				return
			}
			after := getCounterValue(DBQueryErrors.WithLabelValues(tt.operation, tt.table, truncate(tt.err)))
			if after != before+1 {
				t.Errorf("expected error counter to increase by 1, got %v -> %v", before, after)
			}
		})
	}
}

func truncate(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

func TestRecordRecommendation(t *testing.T) {
	hitsBefore := getCounterValue(RecommendationCacheHits)
	missesBefore := getCounterValue(RecommendationCacheMisses)
	noneBefore := testutil.ToFloat64(RecommendationRequests.WithLabelValues("collaborative", "none"))
	coldBefore := testutil.ToFloat64(RecommendationRequests.WithLabelValues("content", "cold_start"))

	RecordRecommendation("collaborative", "", false, 3*time.Millisecond)
	RecordRecommendation("content", "cold_start", true, time.Millisecond)

	if got := getCounterValue(RecommendationCacheHits); got != hitsBefore+1 {
		t.Errorf("cache hits = %v, want %v", got, hitsBefore+1)
	}
	if got := getCounterValue(RecommendationCacheMisses); got != missesBefore+1 {
		t.Errorf("cache misses = %v, want %v", got, missesBefore+1)
	}
	if got := testutil.ToFloat64(RecommendationRequests.WithLabelValues("collaborative", "none")); got != noneBefore+1 {
		t.Errorf("empty fallback should be labelled none, got %v", got)
	}
	if got := testutil.ToFloat64(RecommendationRequests.WithLabelValues("content", "cold_start")); got != coldBefore+1 {
		t.Errorf("cold_start requests = %v, want %v", got, coldBefore+1)
	}
}

func TestRecordRecommendationError(t *testing.T) {
	clientBefore := testutil.ToFloat64(RecommendationErrors.WithLabelValues("client"))
	internalBefore := testutil.ToFloat64(RecommendationErrors.WithLabelValues("internal"))

	RecordRecommendationError(true)
	RecordRecommendationError(false)
	RecordRecommendationError(false)

	if got := testutil.ToFloat64(RecommendationErrors.WithLabelValues("client")); got != clientBefore+1 {
		t.Errorf("client errors = %v, want %v", got, clientBefore+1)
	}
	if got := testutil.ToFloat64(RecommendationErrors.WithLabelValues("internal")); got != internalBefore+2 {
		t.Errorf("internal errors = %v, want %v", got, internalBefore+2)
	}
}

func TestRecordTraining(t *testing.T) {
	successBefore := testutil.ToFloat64(TrainingRuns.WithLabelValues("success"))
	failedBefore := testutil.ToFloat64(TrainingRuns.WithLabelValues("failed"))

	RecordTraining("success", 2*time.Second, 1234)
	if got := getGaugeValue(TrainingObservations); got != 1234 {
		t.Errorf("observations gauge = %v, want 1234", got)
	}

	RecordTraining("failed", time.Second, 99)
	if got := getGaugeValue(TrainingObservations); got != 1234 {
		t.Errorf("failed run must not overwrite observations gauge, got %v", got)
	}

	if got := testutil.ToFloat64(TrainingRuns.WithLabelValues("success")); got != successBefore+1 {
		t.Errorf("success runs = %v, want %v", got, successBefore+1)
	}
	if got := testutil.ToFloat64(TrainingRuns.WithLabelValues("failed")); got != failedBefore+1 {
		t.Errorf("failed runs = %v, want %v", got, failedBefore+1)
	}
}

func TestRecordEpochAndModelVersion(t *testing.T) {
	epochsBefore := getCounterValue(TrainingEpochs)

	RecordEpoch(0.75)
	RecordEpoch(0.5)
	SetModelVersion(7)

	if got := getCounterValue(TrainingEpochs); got != epochsBefore+2 {
		t.Errorf("epochs = %v, want %v", got, epochsBefore+2)
	}
	if got := getGaugeValue(TrainingEpochRMSE); got != 0.5 {
		t.Errorf("rmse gauge = %v, want 0.5", got)
	}
	if got := getGaugeValue(ModelVersion); got != 7 {
		t.Errorf("model version = %v, want 7", got)
	}
}

func TestRecordStoreOperation(t *testing.T) {
	before := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("filesystem", "load"))

	RecordStoreOperation("filesystem", "save", time.Millisecond, nil)
	RecordStoreOperation("filesystem", "load", time.Millisecond, errors.New("disk gone"))
	RecordArtifactSize("filesystem", 4096)

	if got := testutil.ToFloat64(StoreOperationErrors.WithLabelValues("filesystem", "load")); got != before+1 {
		t.Errorf("store errors = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(StoreArtifactBytes.WithLabelValues("filesystem")); got != 4096 {
		t.Errorf("artifact bytes = %v, want 4096", got)
	}
}

// TestCircuitBreakerMetrics tests circuit breaker metric recording
func TestCircuitBreakerMetrics(t *testing.T) {
	name := "artifact_store_test"

	RecordCircuitBreakerTransition(name, "closed", "open", 2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(name)); got != 2 {
		t.Errorf("state = %v, want 2", got)
	}
	RecordCircuitBreakerTransition(name, "open", "half-open", 1)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues(name)); got != 1 {
		t.Errorf("state = %v, want 1", got)
	}

	RecordCircuitBreakerRequest(name, "rejected")
	if got := testutil.ToFloat64(CircuitBreakerRequests.WithLabelValues(name, "rejected")); got != 1 {
		t.Errorf("rejected = %v, want 1", got)
	}
}

func TestRecordEvents(t *testing.T) {
	topic := "test.topic"
	RecordEventPublished(topic)
	RecordEventConsumed(topic, nil)
	RecordEventConsumed(topic, errors.New("boom"))

	if got := testutil.ToFloat64(EventsPublished.WithLabelValues(topic)); got != 1 {
		t.Errorf("published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(EventsConsumed.WithLabelValues(topic, "error")); got != 1 {
		t.Errorf("consumed errors = %v, want 1", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/admin/train", "202"))
	RecordAPIRequest("POST", "/api/v1/admin/train", 202, 15*time.Millisecond)
	RecordRateLimitHit("/api/v1/admin/train")

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/api/v1/admin/train", "202")); got != before+1 {
		t.Errorf("api requests = %v, want %v", got, before+1)
	}
}

func TestRecordImport(t *testing.T) {
	before := testutil.ToFloat64(DBImportRows.WithLabelValues("ratings", "failed"))
	RecordImport("ratings", 10, 2)
	if got := testutil.ToFloat64(DBImportRows.WithLabelValues("ratings", "failed")); got != before+2 {
		t.Errorf("failed rows = %v, want %v", got, before+2)
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordRecommendation("content", "cold_start", false, time.Millisecond)
				RecordPrediction("model")
				RecordDBQuery("select", "ratings", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsRegistration(t *testing.T) {
	collectors := []prometheus.Collector{
		DBQueryDuration, DBQueryErrors, DBImportRows,
		RecommendationRequests, RecommendationErrors, RecommendationDuration,
		RecommendationCacheHits, RecommendationCacheMisses, Predictions, HistoryWriteErrors,
		TrainingRuns, TrainingDuration, TrainingEpochRMSE, TrainingEpochs, TrainingObservations,
		ModelVersion,
		StoreOperationDuration, StoreOperationErrors, StoreArtifactBytes,
		CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerTransitions,
		EventsPublished, EventsConsumed,
		APIRequestsTotal, APIRequestDuration, APIRateLimitHits,
		AppInfo,
	}

	for _, c := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		c.Describe(ch)
		close(ch)

		count := 0
		for range ch {
			count++
		}
		if count == 0 {
			t.Errorf("collector has no descriptors")
		}
	}
}

func TestMetricGathering(t *testing.T) {
	RecordDBQuery("select", "movies", time.Millisecond, nil)
	RecordAPIRequest("GET", "/healthz", 200, time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem: %s", p.Text)
	}
}

func BenchmarkRecordRecommendation(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RecordRecommendation("collaborative", "", false, time.Millisecond)
	}
}
