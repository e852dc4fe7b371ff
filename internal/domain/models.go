package domain

import "time"

// ErrorKind classifies a failed probe.
type ErrorKind string

const (
	ErrorNone    ErrorKind = "None"
	ErrorTimeout ErrorKind = "Timeout"
	ErrorOther   ErrorKind = "Other"
)

// ProbeResult is the outcome of one probe attempt. It is never mutated after
// the prober returns it.
type ProbeResult struct {
	ID            string    `json:"id"`
	Success       bool      `json:"success"`
	RoundTripMS   float64   `json:"round_trip_ms"`
	ErrorKind     ErrorKind `json:"error_kind"`
	ErrorType     string    `json:"error_type,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	ItemsReturned *int      `json:"items_returned,omitempty"` // set only on success
	ItemsScanned  *int      `json:"items_scanned,omitempty"`  // set only on success
	Limit         int       `json:"limit"`
	CheckedAt     time.Time `json:"checked_at"`
}

// Outcome returns the log tag for the result: SUCCESS, TIMEOUT or FAILED.
func (r ProbeResult) Outcome() string {
	switch {
	case r.Success:
		return "SUCCESS"
	case r.ErrorKind == ErrorTimeout:
		return "TIMEOUT"
	default:
		return "FAILED"
	}
}
