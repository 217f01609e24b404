package models

// RiskStatus classifies the outcome of a risk assessment.
type RiskStatus string

const (
	RiskStatusOK               RiskStatus = "OK"
	RiskStatusInsufficientData RiskStatus = "INSUFFICIENT_DATA"
)

// RiskLevel buckets a continuous risk score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// RiskSignal is one weighted input to the overall risk score.
type RiskSignal struct {
	Name         string  `json:"name"`
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
	Details      string  `json:"details,omitempty"`
}

// SLARiskResult is a predictive breach-likelihood assessment for one resource.
// It estimates where the resource is heading, not current SLA compliance.
type SLARiskResult struct {
	Status      RiskStatus   `json:"status"`
	ResourceID  string       `json:"resource_id"`
	RiskScore   float64      `json:"risk_score"`
	RiskLevel   RiskLevel    `json:"risk_level"`
	Signals     []RiskSignal `json:"signals"`
	Explanation string       `json:"explanation"`
}
