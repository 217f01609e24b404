// Package risk combines anomaly and threshold-breach signals into a predictive
// SLA breach-likelihood score.
package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/inframind/infra-mind/internal/detector"
	"github.com/inframind/infra-mind/internal/models"
	"github.com/inframind/infra-mind/internal/store"
)

const (
	// DefaultLookbackMinutes is the assessment window when the caller does not choose one.
	DefaultLookbackMinutes = 10
	// MaxLookbackMinutes caps the assessment window. Larger values are rejected.
	MaxLookbackMinutes = 60

	// Default per-field SLA thresholds, in utilization percent.
	DefaultCPUThreshold    = 80.0
	DefaultMemoryThreshold = 85.0
	DefaultGPUThreshold    = 90.0

	// Default signal weights. Breach rate dominates because it measures
	// sustained pressure rather than a single outlier.
	DefaultAnomalyWeight = 0.4
	DefaultBreachWeight  = 0.6

	signalAnomalyPresence     = "anomaly_presence"
	signalThresholdBreachRate = "threshold_breach_rate"

	riskMediumCut = 0.3
	riskHighCut   = 0.7
)

// Thresholds holds the per-field breach thresholds used by the breach-rate signal.
type Thresholds struct {
	CPU    float64
	Memory float64
	GPU    float64
}

// DefaultThresholds returns the stock SLA thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{CPU: DefaultCPUThreshold, Memory: DefaultMemoryThreshold, GPU: DefaultGPUThreshold}
}

// Weights holds the relative weight of each signal. They must sum to one.
type Weights struct {
	Anomaly float64
	Breach  float64
}

// DefaultWeights returns the stock signal weighting.
func DefaultWeights() Weights {
	return Weights{Anomaly: DefaultAnomalyWeight, Breach: DefaultBreachWeight}
}

// Scorer assesses predictive SLA risk for a resource. It is stateless: every
// call re-reads the store, so it is safe to share across request handlers.
type Scorer struct {
	store      *store.TimeSeriesStore
	detector   *detector.Detector
	thresholds Thresholds
	weights    Weights
	profiles   *ProfilePack
}

// NewScorer constructs a scorer. The weight invariant (sum 1.0) is checked
// here once, not on every assessment.
func NewScorer(s *store.TimeSeriesStore, d *detector.Detector, thresholds Thresholds, weights Weights, profiles *ProfilePack) (*Scorer, error) {
	if math.Abs(weights.Anomaly+weights.Breach-1.0) > 1e-9 {
		return nil, fmt.Errorf("signal weights must sum to 1.0, got %g", weights.Anomaly+weights.Breach)
	}
	if weights.Anomaly < 0 || weights.Breach < 0 {
		return nil, fmt.Errorf("signal weights must be non-negative")
	}
	return &Scorer{
		store:      s,
		detector:   d,
		thresholds: thresholds,
		weights:    weights,
		profiles:   profiles,
	}, nil
}

// Assess scores the resource over the last lookbackMinutes of samples.
func (sc *Scorer) Assess(resourceID string, lookbackMinutes int) (models.SLARiskResult, error) {
	if resourceID == "" {
		return models.SLARiskResult{}, models.NewValidationError("resource_id", "must be non-empty")
	}
	if lookbackMinutes <= 0 || lookbackMinutes > MaxLookbackMinutes {
		return models.SLARiskResult{}, models.NewValidationError("lookback_minutes",
			fmt.Sprintf("must be between 1 and %d", MaxLookbackMinutes))
	}

	window, err := sc.store.LastNMinutes(resourceID, lookbackMinutes)
	if err != nil {
		return models.SLARiskResult{}, err
	}
	if len(window) == 0 {
		return models.SLARiskResult{
			Status:      models.RiskStatusInsufficientData,
			ResourceID:  resourceID,
			RiskScore:   0,
			RiskLevel:   models.RiskLevelLow,
			Signals:     []models.RiskSignal{},
			Explanation: fmt.Sprintf("no samples for resource %q in the last %d minutes", resourceID, lookbackMinutes),
		}, nil
	}

	signals := make([]models.RiskSignal, 0, 2)

	anomalyValue, err := sc.anomalySignal(resourceID, len(window))
	if err != nil {
		return models.SLARiskResult{}, err
	}
	signals = append(signals, models.RiskSignal{
		Name:         signalAnomalyPresence,
		Value:        anomalyValue,
		Weight:       sc.weights.Anomaly,
		Contribution: round3(anomalyValue * sc.weights.Anomaly),
	})

	thresholds := sc.thresholds
	if sc.profiles != nil {
		thresholds = sc.profiles.Lookup(resourceID, thresholds)
	}
	breached := 0
	for _, s := range window {
		if s.CPUUsage > thresholds.CPU || s.MemoryUsage > thresholds.Memory || s.GPUUsage > thresholds.GPU {
			breached++
		}
	}
	breachRate := round3(float64(breached) / float64(len(window)))
	signals = append(signals, models.RiskSignal{
		Name:         signalThresholdBreachRate,
		Value:        breachRate,
		Weight:       sc.weights.Breach,
		Contribution: round3(breachRate * sc.weights.Breach),
		Details:      fmt.Sprintf("%d/%d metrics exceeded thresholds", breached, len(window)),
	})

	score := 0.0
	for _, sig := range signals {
		score += sig.Contribution
	}
	score = round3(clamp(score, 0, 1))

	level := models.RiskLevelLow
	switch {
	case score >= riskHighCut:
		level = models.RiskLevelHigh
	case score >= riskMediumCut:
		level = models.RiskLevelMedium
	}

	return models.SLARiskResult{
		Status:      models.RiskStatusOK,
		ResourceID:  resourceID,
		RiskScore:   score,
		RiskLevel:   level,
		Signals:     signals,
		Explanation: explain(level, score, signals),
	}, nil
}

// anomalySignal is 1.0 when the detector flags the newest sample, else 0.0.
// The detection window is the lookback window length capped at the detector's
// maximum; windows too short to analyze count as no anomaly, matching the
// soft INSUFFICIENT_DATA contract.
func (sc *Scorer) anomalySignal(resourceID string, windowLen int) (float64, error) {
	windowSize := windowLen
	if windowSize > detector.MaxWindowSize {
		windowSize = detector.MaxWindowSize
	}
	if windowSize < detector.MinWindowSize {
		return 0, nil
	}

	result, err := sc.detector.Detect(resourceID, windowSize, detector.DefaultZThreshold)
	if err != nil {
		return 0, err
	}
	if result.AnomalyDetected {
		return 1, nil
	}
	return 0, nil
}

func explain(level models.RiskLevel, score float64, signals []models.RiskSignal) string {
	parts := make([]string, 0, len(signals))
	for _, sig := range signals {
		part := fmt.Sprintf("%s contributed %.0f%%", sig.Name, sig.Contribution*100)
		if sig.Details != "" {
			part += fmt.Sprintf(" (%s)", sig.Details)
		}
		parts = append(parts, part)
	}
	return fmt.Sprintf("predictive risk %s (%.0f%%): %s", level, score*100, strings.Join(parts, "; "))
}

func clamp(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
