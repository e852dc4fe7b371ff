package httpapi

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/dynaprobe/internal/domain"
	"github.com/hamed0406/dynaprobe/internal/metrics"
)

type rootResponse struct {
	Service   string   `json:"service"`
	Mode      string   `json:"mode"`
	Target    string   `json:"target"`
	Endpoints []string `json:"endpoints"`
}

// statsFields are shared by /health and /stats.
type statsFields struct {
	LastSuccess  *string `json:"last_success"`
	LastError    *string `json:"last_error"`
	TotalTests   uint64  `json:"total_tests"`
	SuccessCount uint64  `json:"success_count"`
	FailureCount uint64  `json:"failure_count"`
	SuccessRate  string  `json:"success_rate"`
}

type healthResponse struct {
	Status string `json:"status"`
	statsFields
}

type statsResponse struct {
	statsFields
	Configuration Info `json:"configuration"`
}

type testResponse struct {
	Status        string  `json:"status"` // success | failed
	ProbeID       string  `json:"probe_id"`
	RoundTripMS   float64 `json:"round_trip_ms"`
	ItemsReturned *int    `json:"items_returned,omitempty"`
	ItemsScanned  *int    `json:"items_scanned,omitempty"`
	ErrorKind     string  `json:"error_kind,omitempty"`
	ErrorType     string  `json:"error_type,omitempty"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	Timestamp     string  `json:"timestamp"`
	Configuration Info    `json:"configuration"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{
		Service:   serviceName,
		Mode:      s.Info.Mode,
		Target:    s.Info.Target,
		Endpoints: []string{"/", "/health", "/stats", "/test", "/metrics"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Stats.Snapshot()

	resp := healthResponse{Status: "unhealthy", statsFields: toFields(snap)}
	code := http.StatusServiceUnavailable
	if snap.Healthy(s.now()) {
		resp.Status = "healthy"
		code = http.StatusOK
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		statsFields:   toFields(s.Stats.Snapshot()),
		Configuration: s.Info,
	})
}

// handleTest runs one probe right now. The aggregate statistics are left
// alone, so /stats will not reflect it. Like the loop, the attempt is bounded
// by the client timeouts only; a caller hanging up does not turn it into a
// failure.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	res := s.Prober.Attempt(context.WithoutCancel(r.Context()), s.Info.Limit)
	if s.Metrics != nil {
		s.Metrics.Observe(metrics.SourceOnDemand, res)
	}

	resp := testResponse{
		ProbeID:       res.ID,
		RoundTripMS:   round2(res.RoundTripMS),
		Timestamp:     res.CheckedAt.UTC().Format(time.RFC3339Nano),
		Configuration: s.Info,
	}

	if res.Success {
		resp.Status = "success"
		resp.ItemsReturned = res.ItemsReturned
		resp.ItemsScanned = res.ItemsScanned
		s.Logger.Info("on_demand_probe",
			zap.String("outcome", res.Outcome()),
			zap.Float64("round_trip_ms", res.RoundTripMS),
		)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Status = "failed"
	resp.ErrorKind = string(res.ErrorKind)
	resp.ErrorType = res.ErrorType
	resp.ErrorMessage = res.ErrorMessage
	s.Logger.Warn("on_demand_probe",
		zap.String("outcome", res.Outcome()),
		zap.Float64("round_trip_ms", res.RoundTripMS),
		zap.String("error_message", res.ErrorMessage),
	)
	writeJSON(w, http.StatusInternalServerError, resp)
}

func toFields(s domain.Snapshot) statsFields {
	f := statsFields{
		LastError:    s.LastError,
		TotalTests:   s.TotalTests,
		SuccessCount: s.SuccessCount,
		FailureCount: s.FailureCount,
		SuccessRate:  s.SuccessRatePercent(),
	}
	if s.LastSuccess != nil {
		ts := s.LastSuccess.UTC().Format(time.RFC3339Nano)
		f.LastSuccess = &ts
	}
	return f
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
