// Package metrics exposes crawl metrics through a Prometheus registry and
// serves them over HTTP on /metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/WessleyAI/orggraph/pkg/mid"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// DefaultBuckets are the lookup latency buckets (in seconds).
var DefaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Registry holds the crawl collectors on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Lookups        *prometheus.CounterVec
	LookupDuration *prometheus.HistogramVec
	Records        prometheus.Counter
	FrontierSize   prometheus.Gauge
	ExploredSkips  prometheus.Counter
	Explored       prometheus.Gauge
}

// New creates a Registry with the crawl collectors and the Go runtime
// collectors registered.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Registry{
		reg: reg,
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "orggraph_lookups_total",
			Help: "Resolver lookups by resolver and outcome",
		}, []string{"resolver", "outcome"}),
		LookupDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orggraph_lookup_duration_seconds",
			Help:    "Resolver lookup latency, retries included",
			Buckets: DefaultBuckets,
		}, []string{"resolver"}),
		Records: f.NewCounter(prometheus.CounterOpts{
			Name: "orggraph_records_total",
			Help: "Organization records collected",
		}),
		FrontierSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "orggraph_frontier_size",
			Help: "Names waiting in the crawl queue",
		}),
		ExploredSkips: f.NewCounter(prometheus.CounterOpts{
			Name: "orggraph_explored_skips_total",
			Help: "Identifiers skipped because they were already expanded",
		}),
		Explored: f.NewGauge(prometheus.GaugeOpts{
			Name: "orggraph_explored_identifiers",
			Help: "Identifiers in the explored set",
		}),
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// ObserveLookup records one resolver call.
func (r *Registry) ObserveLookup(resolver, outcome string, took time.Duration) {
	r.Lookups.WithLabelValues(resolver, outcome).Inc()
	if took > 0 {
		r.LookupDuration.WithLabelValues(resolver).Observe(took.Seconds())
	}
}

// SetProgress updates the queue and explored-set gauges.
func (r *Registry) SetProgress(queued, explored int) {
	r.FrontierSize.Set(float64(queued))
	r.Explored.Set(float64(explored))
}

// Handler returns an HTTP handler serving the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Serve serves /metrics and /healthz on addr until ctx is done.
func (r *Registry) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	h := mid.Chain(mux, mid.Recover(log), mid.AccessLog(log), mid.MethodGuard())
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	log.Info("metrics listening", "addr", addr)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
