// Package detector flags statistical outliers in a resource's recent samples
// using per-field z-scores against a rolling baseline.
package detector

import (
	"fmt"
	"math"
	"strings"

	"github.com/inframind/infra-mind/internal/models"
	"github.com/inframind/infra-mind/internal/store"
)

const (
	// DefaultWindowSize is the analysis window when the caller does not choose one.
	DefaultWindowSize = 10
	// DefaultZThreshold is the z-score above which a field counts as anomalous.
	DefaultZThreshold = 3.0

	// MinWindowSize and MaxWindowSize bound the accepted window sizes.
	// Out-of-range values are rejected, not clamped.
	MinWindowSize = 2
	MaxWindowSize = 100
)

// Detector runs z-score analysis over windows read from the store. It holds no
// state of its own; identical store contents and parameters always produce
// identical results.
type Detector struct {
	store *store.TimeSeriesStore
}

// New creates a detector reading from the given store.
func New(s *store.TimeSeriesStore) *Detector {
	return &Detector{store: s}
}

// Detect analyzes the newest sample in the last windowSize samples of the
// resource. The baseline mean and sample standard deviation exclude the newest
// sample so the tested value cannot dilute its own baseline.
func (d *Detector) Detect(resourceID string, windowSize int, zThreshold float64) (models.AnomalyResult, error) {
	if resourceID == "" {
		return models.AnomalyResult{}, models.NewValidationError("resource_id", "must be non-empty")
	}
	if windowSize < MinWindowSize || windowSize > MaxWindowSize {
		return models.AnomalyResult{}, models.NewValidationError("window_size",
			fmt.Sprintf("must be between %d and %d", MinWindowSize, MaxWindowSize))
	}
	if zThreshold <= 0 {
		return models.AnomalyResult{}, models.NewValidationError("z_threshold", "must be positive")
	}

	window, err := d.store.Window(resourceID, windowSize)
	if err != nil {
		return models.AnomalyResult{}, err
	}
	if len(window) < MinWindowSize {
		return models.AnomalyResult{
			Status:          models.AnomalyStatusInsufficientData,
			AnomalyDetected: false,
			AnomalyMetrics:  []string{},
			Explanation:     fmt.Sprintf("insufficient data: %d samples, need at least %d", len(window), MinWindowSize),
			ConfidenceScore: 0,
			Algorithm:       models.AlgorithmZScoreV1,
		}, nil
	}

	latest := window[len(window)-1]
	baseline := window[:len(window)-1]

	anomalous := make([]string, 0, len(models.MetricFields))
	var anomalyParts []string
	maxZ := 0.0
	maxZAll := 0.0
	for _, field := range models.MetricFields {
		values := make([]float64, len(baseline))
		for i, s := range baseline {
			values[i] = s.Field(field)
		}
		current := latest.Field(field)

		m := mean(values)
		std := sampleStdDev(values, m)
		z := zScore(current, m, std)

		if z > maxZAll {
			maxZAll = z
		}
		if z > zThreshold {
			anomalous = append(anomalous, field)
			if z > maxZ {
				maxZ = z
			}
			anomalyParts = append(anomalyParts, fmt.Sprintf(
				"%s=%.2f (mean=%.2f, std=%.2f, z=%.2f)", field, current, m, std, z))
		}
	}

	result := models.AnomalyResult{
		AnomalyDetected: len(anomalous) > 0,
		AnomalyMetrics:  anomalous,
		Algorithm:       models.AlgorithmZScoreV1,
	}
	if len(anomalous) > 0 {
		result.Status = models.AnomalyStatusAnomaly
		result.ConfidenceScore = confidence(maxZ, zThreshold)
		result.Explanation = fmt.Sprintf("anomaly detected: %s; threshold: %g",
			strings.Join(anomalyParts, "; "), zThreshold)
	} else {
		result.Status = models.AnomalyStatusOK
		result.Explanation = fmt.Sprintf("all metrics normal; max z-score %.2f, threshold %g", maxZAll, zThreshold)
	}
	return result, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev uses Bessel's correction (n-1 denominator). Fewer than two
// values yield zero, which the z-score handles explicitly.
func sampleStdDev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(n-1))
}

// zScore is |value-mean|/std. A zero std means a constant baseline: a matching
// value is not anomalous (z=0), any other value always exceeds the threshold.
func zScore(value, mean, std float64) float64 {
	if std == 0 {
		if value == mean {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(value-mean) / std
}

// confidence grades how far beyond the threshold the strongest deviation lies:
// zero at the boundary, saturating at one as the z-score doubles the threshold.
func confidence(maxZ, threshold float64) float64 {
	if math.IsInf(maxZ, 1) {
		return 1
	}
	c := (maxZ - threshold) / threshold
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return math.Round(c*1000) / 1000
}
