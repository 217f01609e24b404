package models

// AnomalyStatus classifies the outcome of an anomaly check.
type AnomalyStatus string

const (
	AnomalyStatusOK               AnomalyStatus = "OK"
	AnomalyStatusAnomaly          AnomalyStatus = "ANOMALY"
	AnomalyStatusInsufficientData AnomalyStatus = "INSUFFICIENT_DATA"
)

// AlgorithmZScoreV1 tags results produced by the z-score detector. The tag is
// versioned so stored or cached results stay attributable to the exact method.
const AlgorithmZScoreV1 = "zscore_v1"

// AnomalyResult is the outcome of a single detection run over one resource.
type AnomalyResult struct {
	Status          AnomalyStatus `json:"status"`
	AnomalyDetected bool          `json:"anomaly_detected"`
	AnomalyMetrics  []string      `json:"anomaly_metrics"`
	Explanation     string        `json:"explanation"`
	ConfidenceScore float64       `json:"confidence_score"`
	Algorithm       string        `json:"algorithm"`
}
