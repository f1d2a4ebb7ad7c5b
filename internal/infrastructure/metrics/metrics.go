package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"frmon/internal/application/port"
)

const namespace = "frmon"

// Prometheus implements port.Metrics on its own registry.
type Prometheus struct {
	Registry *prometheus.Registry

	checks          *prometheus.CounterVec
	spread          *prometheus.GaugeVec
	spreadHist      *prometheus.HistogramVec
	alerts          *prometheus.CounterVec
	rateUnavailable *prometheus.CounterVec
	sourceErrors    *prometheus.CounterVec
	reports         *prometheus.CounterVec
	lastCheck       prometheus.Gauge
}

func New() *Prometheus {
	m := &Prometheus{
		Registry: prometheus.NewRegistry(),
		checks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "checks_total",
				Help:      "Total number of check cycles.",
			},
			[]string{"success"},
		),
		spread: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "spread_percent",
				Help:      "Latest funding spread per hedged symbol, in percent.",
			},
			[]string{"symbol"},
		),
		spreadHist: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "spread_percent_distribution",
				Help:      "Distribution of observed funding spreads, in percent.",
				Buckets:   []float64{-0.1, -0.05, -0.02, -0.01, -0.005, 0, 0.005, 0.01, 0.02, 0.05, 0.1},
			},
			[]string{"symbol"},
		),
		alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "alerts_total",
				Help:      "Total number of delivered spread alerts.",
			},
			[]string{"symbol"},
		),
		rateUnavailable: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "funding",
				Name:      "rate_unavailable_total",
				Help:      "Pairs skipped because a funding rate was missing.",
			},
			[]string{"symbol"},
		),
		sourceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "exchange",
				Name:      "errors_total",
				Help:      "Exchange request failures.",
			},
			[]string{"exchange", "kind"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notify",
				Name:      "reports_total",
				Help:      "Reports handed to the notifier.",
			},
			[]string{"kind", "delivered"},
		),
		lastCheck: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "monitor",
				Name:      "last_check_timestamp_seconds",
				Help:      "Unix time of the last finished check cycle.",
			},
		),
	}
	m.Registry.MustRegister(
		m.checks,
		m.spread,
		m.spreadHist,
		m.alerts,
		m.rateUnavailable,
		m.sourceErrors,
		m.reports,
		m.lastCheck,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Prometheus) ObserveCheck(success bool) {
	m.checks.WithLabelValues(strconv.FormatBool(success)).Inc()
	m.lastCheck.SetToCurrentTime()
}

func (m *Prometheus) ObserveSpread(symbol string, spread float64) {
	m.spread.WithLabelValues(symbol).Set(spread)
	m.spreadHist.WithLabelValues(symbol).Observe(spread)
}

func (m *Prometheus) ObserveAlert(symbol string) {
	m.alerts.WithLabelValues(symbol).Inc()
}

func (m *Prometheus) ObserveRateUnavailable(symbol string) {
	m.rateUnavailable.WithLabelValues(symbol).Inc()
}

func (m *Prometheus) ObserveSourceError(exchange, kind string) {
	m.sourceErrors.WithLabelValues(exchange, kind).Inc()
}

func (m *Prometheus) ObserveReport(kind port.ReportKind, delivered bool) {
	m.reports.WithLabelValues(string(kind), strconv.FormatBool(delivered)).Inc()
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Server serves /metrics until Shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, m *Prometheus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Close 给 closer 链用
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

var _ port.Metrics = (*Prometheus)(nil)
