package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/inframind/infra-mind/internal/cache"
	"github.com/inframind/infra-mind/internal/detector"
	"github.com/inframind/infra-mind/internal/models"
	"github.com/inframind/infra-mind/internal/risk"
	"github.com/inframind/infra-mind/internal/store"
)

func newService(t *testing.T, cacheProvider cache.Provider, cacheTTL time.Duration) (*MonitorService, *store.TimeSeriesStore) {
	t.Helper()
	s := store.New(0)
	d := detector.New(s)
	sc, err := risk.NewScorer(s, d, risk.DefaultThresholds(), risk.DefaultWeights(), nil)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewMonitorService(logger, s, d, sc, cacheProvider, cacheTTL), s
}

func TestIngestAnalyzeRoundTrip(t *testing.T) {
	svc, _ := newService(t, nil, 0)
	base := time.Now().UTC().Add(-5 * time.Minute)

	values := []float64{45, 46, 47, 48, 49, 50, 51, 46, 47, 95}
	for i, v := range values {
		err := svc.Ingest(models.MetricSample{
			ResourceID:  "server-001",
			CPUUsage:    v,
			MemoryUsage: 50,
			GPUUsage:    10,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	result, err := svc.Analyze("server-001", 10, 3.0)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if result.Status != models.AnomalyStatusAnomaly {
		t.Fatalf("expected ANOMALY, got %s", result.Status)
	}

	latest, err := svc.Latest("server-001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.CPUUsage != 95 {
		t.Fatalf("expected latest cpu 95, got %v", latest.CPUUsage)
	}

	history, err := svc.History("server-001", 60)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(values) {
		t.Fatalf("expected %d history samples, got %d", len(values), len(history))
	}
}

func TestAssessRiskServesCachedResult(t *testing.T) {
	provider := cache.NewMemoryProvider()
	svc, s := newService(t, provider, time.Minute)
	base := time.Now().UTC().Add(-5 * time.Minute)

	for i := 0; i < 10; i++ {
		err := s.Ingest(models.MetricSample{
			ResourceID:  "server-001",
			CPUUsage:    85,
			MemoryUsage: 50,
			GPUUsage:    10,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	first, err := svc.AssessRisk(context.Background(), "server-001", 10)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if first.RiskScore != 0.6 {
		t.Fatalf("expected score 0.6, got %v", first.RiskScore)
	}

	// New non-breaching samples would lower the score, but the cached
	// assessment is still served within the TTL.
	for i := 0; i < 10; i++ {
		err := s.Ingest(models.MetricSample{
			ResourceID:  "server-001",
			CPUUsage:    30,
			MemoryUsage: 40,
			GPUUsage:    5,
			Timestamp:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	second, err := svc.AssessRisk(context.Background(), "server-001", 10)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if second.RiskScore != first.RiskScore {
		t.Fatalf("expected cached score %v, got %v", first.RiskScore, second.RiskScore)
	}
}

func TestAssessRiskWithoutCacheRecomputes(t *testing.T) {
	svc, s := newService(t, nil, 0)
	base := time.Now().UTC().Add(-5 * time.Minute)

	for i := 0; i < 10; i++ {
		err := s.Ingest(models.MetricSample{
			ResourceID:  "server-001",
			CPUUsage:    85,
			MemoryUsage: 50,
			GPUUsage:    10,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	first, err := svc.AssessRisk(context.Background(), "server-001", 10)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}

	for i := 0; i < 30; i++ {
		err := s.Ingest(models.MetricSample{
			ResourceID:  "server-001",
			CPUUsage:    30,
			MemoryUsage: 40,
			GPUUsage:    5,
			Timestamp:   time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	second, err := svc.AssessRisk(context.Background(), "server-001", 10)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if second.RiskScore >= first.RiskScore {
		t.Fatalf("expected recomputed score below %v, got %v", first.RiskScore, second.RiskScore)
	}
}
