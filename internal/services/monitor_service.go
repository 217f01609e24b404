// Package services wires the store, detector and scorer behind one facade that
// the transport layer calls. The facade owns operational concerns: counters,
// latency tracking and short-TTL caching of assessment results.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inframind/infra-mind/internal/cache"
	"github.com/inframind/infra-mind/internal/detector"
	"github.com/inframind/infra-mind/internal/metrics"
	"github.com/inframind/infra-mind/internal/models"
	"github.com/inframind/infra-mind/internal/risk"
	"github.com/inframind/infra-mind/internal/store"
	"github.com/inframind/infra-mind/internal/utils"
)

// MonitorService exposes the core monitoring operations to the API layer.
type MonitorService struct {
	logger    *slog.Logger
	store     *store.TimeSeriesStore
	detector  *detector.Detector
	scorer    *risk.Scorer
	cache     cache.Provider
	cacheTTL  time.Duration
	latencies *utils.LatencyTracker
}

// NewMonitorService constructs the service facade. A nil cache provider
// disables assessment caching.
func NewMonitorService(logger *slog.Logger, s *store.TimeSeriesStore, d *detector.Detector, sc *risk.Scorer, cacheProvider cache.Provider, cacheTTL time.Duration) *MonitorService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &MonitorService{
		logger:    logger,
		store:     s,
		detector:  d,
		scorer:    sc,
		cache:     cacheProvider,
		cacheTTL:  cacheTTL,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Ingest validates and stores one sample.
func (s *MonitorService) Ingest(sample models.MetricSample) error {
	err := s.store.Ingest(sample)
	metrics.ObserveIngest(err == nil)
	return err
}

// Latest returns the most recent sample for a resource.
func (s *MonitorService) Latest(resourceID string) (models.MetricSample, error) {
	return s.store.Latest(resourceID)
}

// History returns the samples from the last minutes for a resource.
func (s *MonitorService) History(resourceID string, minutes int) ([]models.MetricSample, error) {
	return s.store.LastNMinutes(resourceID, minutes)
}

// Analyze runs anomaly detection and records operational metrics.
func (s *MonitorService) Analyze(resourceID string, windowSize int, zThreshold float64) (models.AnomalyResult, error) {
	start := time.Now()
	result, err := s.detector.Detect(resourceID, windowSize, zThreshold)
	if err != nil {
		return models.AnomalyResult{}, err
	}
	s.observeLatency(time.Since(start))
	metrics.ObserveAnomalyCheck(string(result.Status))
	return result, nil
}

// AssessRisk scores a resource, serving from the short-TTL cache when a
// byte-identical assessment was produced recently. Determinism of the scorer
// makes cached results indistinguishable from fresh ones for a fixed store state.
func (s *MonitorService) AssessRisk(ctx context.Context, resourceID string, lookbackMinutes int) (models.SLARiskResult, error) {
	key := assessmentKey(resourceID, lookbackMinutes)
	if s.cacheTTL > 0 {
		if data, err := s.cache.Get(ctx, key); err == nil {
			var cached models.SLARiskResult
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("assessment cache read failed", slog.Any("error", err))
		}
	}

	start := time.Now()
	result, err := s.scorer.Assess(resourceID, lookbackMinutes)
	if err != nil {
		return models.SLARiskResult{}, err
	}
	s.observeLatency(time.Since(start))
	metrics.ObserveRiskCheck(string(result.RiskLevel))

	if s.cacheTTL > 0 && result.Status == models.RiskStatusOK {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				s.logger.Warn("assessment cache write failed", slog.Any("error", err))
			}
		}
	}
	return result, nil
}

func (s *MonitorService) observeLatency(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("analysis latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
}

func assessmentKey(resourceID string, lookbackMinutes int) string {
	return fmt.Sprintf("risk:%s:%d", resourceID, lookbackMinutes)
}
