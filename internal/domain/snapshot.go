package domain

import (
	"fmt"
	"time"
)

// HealthWindow is how long a success keeps the store reported as healthy.
// It does not follow the probe interval: with an interval of 30s or more the
// service reads unhealthy between probes.
const HealthWindow = 30 * time.Second

// Snapshot is a consistent copy of the aggregate statistics at one instant.
type Snapshot struct {
	TotalTests   uint64     `json:"total_tests"`
	SuccessCount uint64     `json:"success_count"`
	FailureCount uint64     `json:"failure_count"`
	LastSuccess  *time.Time `json:"last_success"`
	LastError    *string    `json:"last_error"`
}

// SuccessRate is SuccessCount/TotalTests, or 0 before the first probe.
func (s Snapshot) SuccessRate() float64 {
	if s.TotalTests == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(s.TotalTests)
}

// SuccessRatePercent renders the success rate with one decimal, e.g. "70.0%".
func (s Snapshot) SuccessRatePercent() string {
	return fmt.Sprintf("%.1f%%", s.SuccessRate()*100)
}

// Healthy reports whether a success was recorded less than HealthWindow
// before now.
func (s Snapshot) Healthy(now time.Time) bool {
	if s.LastSuccess == nil {
		return false
	}
	return now.Sub(*s.LastSuccess) < HealthWindow
}
