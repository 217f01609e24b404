// Package store holds the in-memory time series for every monitored resource.
// State is process-lifetime only; a restart discards all history.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/inframind/infra-mind/internal/models"
)

// DefaultMaxEntries bounds each resource's series unless configured otherwise.
const DefaultMaxEntries = 10000

// TimeSeriesStore keeps a bounded, timestamp-ordered sample series per
// resource. Each series carries its own lock so ingestion on unrelated
// resources never serializes; the store-level lock only guards creation of
// brand-new series.
type TimeSeriesStore struct {
	mu         sync.RWMutex
	series     map[string]*resourceSeries
	maxEntries int
}

type resourceSeries struct {
	mu      sync.Mutex
	samples []models.MetricSample
}

// New creates a store bounding each series to maxEntries samples.
// Non-positive values fall back to DefaultMaxEntries.
func New(maxEntries int) *TimeSeriesStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &TimeSeriesStore{
		series:     make(map[string]*resourceSeries),
		maxEntries: maxEntries,
	}
}

// Ingest validates and stores one sample, evicting the oldest entries if the
// series exceeds its bound. The sample's timestamp is normalized to UTC.
func (s *TimeSeriesStore) Ingest(sample models.MetricSample) error {
	if sample.ResourceID == "" {
		return models.NewValidationError("resource_id", "must be non-empty")
	}
	if err := validatePercent("cpu_usage", sample.CPUUsage); err != nil {
		return err
	}
	if err := validatePercent("memory_usage", sample.MemoryUsage); err != nil {
		return err
	}
	if err := validatePercent("gpu_usage", sample.GPUUsage); err != nil {
		return err
	}
	if sample.Timestamp.IsZero() {
		return models.NewValidationError("timestamp", "must be set")
	}
	sample.Timestamp = sample.Timestamp.UTC()

	rs := s.seriesFor(sample.ResourceID)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.insert(sample)
	if overflow := len(rs.samples) - s.maxEntries; overflow > 0 {
		copy(rs.samples, rs.samples[overflow:])
		rs.samples = rs.samples[:s.maxEntries]
	}
	return nil
}

// Latest returns the most recent sample for the resource.
func (s *TimeSeriesStore) Latest(resourceID string) (models.MetricSample, error) {
	rs := s.lookup(resourceID)
	if rs == nil {
		return models.MetricSample{}, models.NewNotFoundError(resourceID)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if len(rs.samples) == 0 {
		return models.MetricSample{}, models.NewNotFoundError(resourceID)
	}
	return rs.samples[len(rs.samples)-1], nil
}

// Window returns the last n samples in ascending timestamp order, fewer if the
// series is shorter. The returned slice is a copy and safe to retain.
func (s *TimeSeriesStore) Window(resourceID string, n int) ([]models.MetricSample, error) {
	if n <= 0 {
		return nil, models.NewValidationError("n", "must be positive")
	}
	rs := s.lookup(resourceID)
	if rs == nil {
		return nil, models.NewNotFoundError(resourceID)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := len(rs.samples) - n
	if start < 0 {
		start = 0
	}
	return append([]models.MetricSample(nil), rs.samples[start:]...), nil
}

// LastNMinutes returns all samples with timestamp >= now-minutes, ascending.
// A known resource with no recent samples yields an empty slice, not an error.
func (s *TimeSeriesStore) LastNMinutes(resourceID string, minutes int) ([]models.MetricSample, error) {
	if minutes <= 0 {
		return nil, models.NewValidationError("minutes", "must be positive")
	}
	rs := s.lookup(resourceID)
	if rs == nil {
		return nil, models.NewNotFoundError(resourceID)
	}
	cutoff := time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	idx := sort.Search(len(rs.samples), func(i int) bool {
		return !rs.samples[i].Timestamp.Before(cutoff)
	})
	return append([]models.MetricSample(nil), rs.samples[idx:]...), nil
}

// insert appends in the common chronological case and falls back to a
// binary-search insertion for late arrivals. Equal timestamps land after
// existing entries so insertion order is stable.
func (rs *resourceSeries) insert(sample models.MetricSample) {
	n := len(rs.samples)
	if n == 0 || !sample.Timestamp.Before(rs.samples[n-1].Timestamp) {
		rs.samples = append(rs.samples, sample)
		return
	}

	idx := sort.Search(n, func(i int) bool {
		return rs.samples[i].Timestamp.After(sample.Timestamp)
	})
	rs.samples = append(rs.samples, models.MetricSample{})
	copy(rs.samples[idx+1:], rs.samples[idx:])
	rs.samples[idx] = sample
}

func (s *TimeSeriesStore) lookup(resourceID string) *resourceSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[resourceID]
}

// seriesFor returns the series for resourceID, creating it on first ingest.
// The double-checked write lock keeps series creation race-free without
// holding the store lock during inserts.
func (s *TimeSeriesStore) seriesFor(resourceID string) *resourceSeries {
	s.mu.RLock()
	rs := s.series[resourceID]
	s.mu.RUnlock()
	if rs != nil {
		return rs
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rs = s.series[resourceID]; rs == nil {
		rs = &resourceSeries{}
		s.series[resourceID] = rs
	}
	return rs
}

func validatePercent(field string, value float64) error {
	if value < 0 || value > 100 {
		return models.NewValidationError(field, "must be between 0 and 100")
	}
	return nil
}
