package models

import "time"

// MetricFields lists the tracked utilization fields in their canonical order.
// Detector output and explanations always enumerate fields in this order.
var MetricFields = []string{"cpu_usage", "memory_usage", "gpu_usage"}

// MetricSample is a single utilization reading for one resource. Samples are
// immutable once ingested; the store owns them until eviction.
type MetricSample struct {
	ResourceID  string    `json:"resource_id"`
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage float64   `json:"memory_usage"`
	GPUUsage    float64   `json:"gpu_usage"`
	Timestamp   time.Time `json:"timestamp"`
}

// Field returns the value of the named utilization field.
func (s MetricSample) Field(name string) float64 {
	switch name {
	case "cpu_usage":
		return s.CPUUsage
	case "memory_usage":
		return s.MemoryUsage
	case "gpu_usage":
		return s.GPUUsage
	}
	return 0
}
