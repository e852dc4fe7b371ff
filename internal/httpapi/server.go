package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/dynaprobe/internal/domain"
	apimw "github.com/hamed0406/dynaprobe/internal/httpapi/middleware"
)

const serviceName = "dynaprobe"

// StatsReader is the read side of the loop's aggregate statistics.
type StatsReader interface {
	Snapshot() domain.Snapshot
}

type Prober interface {
	Attempt(ctx context.Context, limit int) domain.ProbeResult
}

type Observer interface {
	Observe(source string, r domain.ProbeResult)
}

// Info is the probe configuration echoed by /, /stats and /test.
type Info struct {
	Mode           string  `json:"mode"`
	Target         string  `json:"-"`
	TableName      string  `json:"table_name,omitempty"`
	Region         string  `json:"region"`
	ConnectTimeout float64 `json:"connection_timeout"` // seconds
	ReadTimeout    float64 `json:"read_timeout"`       // seconds
	Interval       int     `json:"test_interval"`      // seconds
	Limit          int     `json:"limit"`
}

// Server answers status queries. It only reads Stats; the on-demand probe
// goes straight to Prober and its result is never recorded in Stats.
type Server struct {
	Logger  *zap.Logger
	Stats   StatsReader
	Prober  Prober
	Metrics Observer // may be nil
	Info    Info

	now func() time.Time
}

func NewServer(l *zap.Logger, st StatsReader, p Prober, obs Observer, info Info) *Server {
	return &Server{Logger: l, Stats: st, Prober: p, Metrics: obs, Info: info, now: time.Now}
}

type RouterOptions struct {
	AdminKeys  []string            // guard /test
	TestRPM    int                 // per-IP limit on /test; 0 disables
	TestBurst  int                 // token bucket size
	TrustProxy bool                // key the limit on X-Forwarded-For
	Gatherer   prometheus.Gatherer // serves /metrics when set
}

func (s *Server) Router(opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.With(
		apimw.RateLimit(opts.TestRPM, opts.TestBurst, opts.TrustProxy),
		apimw.RequireKey(opts.AdminKeys),
	).Get("/test", s.handleTest)

	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	return r
}
