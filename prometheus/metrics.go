// Package prometheus defines the Prometheus collectors for catalog lookups
// and sync passes, and decorators that record them.
package prometheus

import (
	"context"
	"time"

	"github.com/fwojciec/comics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	ResolveTotal       *prometheus.CounterVec
	ResolveErrorsTotal *prometheus.CounterVec
	ResolveStrength    prometheus.Histogram
	SyncTotal          *prometheus.CounterVec
	SyncUpdatedTotal   prometheus.Counter
	SyncDuration       prometheus.Histogram
	CatalogSize        prometheus.Gauge
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_resolve_total",
				Help: "Total resolved requests by match kind (exact, searched, random).",
			},
			[]string{"match"},
		),
		ResolveErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_resolve_errors_total",
				Help: "Total failed resolve requests by error code.",
			},
			[]string{"code"},
		),
		ResolveStrength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comics_resolve_strength",
				Help:    "Number of query tokens matched by searched results.",
				Buckets: []float64{1, 2, 3, 5, 8, 13},
			},
		),
		SyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comics_sync_total",
				Help: "Total sync passes by result (updated, unchanged, error code).",
			},
			[]string{"result"},
		),
		SyncUpdatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "comics_sync_updated_total",
				Help: "Total comics added by sync passes.",
			},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "comics_sync_duration_seconds",
				Help:    "Sync pass latency in seconds.",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
			},
		),
		CatalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "comics_catalog_size",
				Help: "Number of comics in the published catalog.",
			},
		),
	}

	reg.MustRegister(
		m.ResolveTotal,
		m.ResolveErrorsTotal,
		m.ResolveStrength,
		m.SyncTotal,
		m.SyncUpdatedTotal,
		m.SyncDuration,
		m.CatalogSize,
	)

	return m
}

// Ensure InstrumentedResolver implements comics.Resolver.
var _ comics.Resolver = (*InstrumentedResolver)(nil)

// InstrumentedResolver wraps a Resolver and records every outcome.
type InstrumentedResolver struct {
	next    comics.Resolver
	metrics *Metrics
}

// NewInstrumentedResolver creates a new InstrumentedResolver.
func NewInstrumentedResolver(next comics.Resolver, m *Metrics) *InstrumentedResolver {
	return &InstrumentedResolver{next: next, metrics: m}
}

// Resolve delegates to the wrapped resolver.
func (r *InstrumentedResolver) Resolve(ctx context.Context, req comics.Request) (*comics.Resolution, error) {
	res, err := r.next.Resolve(ctx, req)
	if err != nil {
		r.metrics.ResolveErrorsTotal.WithLabelValues(comics.ErrorCode(err)).Inc()
		return nil, err
	}
	r.metrics.ResolveTotal.WithLabelValues(string(res.Match)).Inc()
	if res.Match == comics.MatchSearched {
		r.metrics.ResolveStrength.Observe(float64(res.Strength))
	}
	return res, nil
}

// Ensure InstrumentedSyncer implements comics.Syncer.
var _ comics.Syncer = (*InstrumentedSyncer)(nil)

// InstrumentedSyncer wraps a Syncer and records every pass. Size reports
// the catalog size after a successful pass.
type InstrumentedSyncer struct {
	next    comics.Syncer
	metrics *Metrics
	size    func() int
}

// NewInstrumentedSyncer creates a new InstrumentedSyncer.
func NewInstrumentedSyncer(next comics.Syncer, m *Metrics, size func() int) *InstrumentedSyncer {
	if size != nil {
		m.CatalogSize.Set(float64(size()))
	}
	return &InstrumentedSyncer{next: next, metrics: m, size: size}
}

// Sync delegates to the wrapped syncer.
func (s *InstrumentedSyncer) Sync(ctx context.Context) (*comics.SyncReport, error) {
	begin := time.Now()
	report, err := s.next.Sync(ctx)
	s.metrics.SyncDuration.Observe(time.Since(begin).Seconds())
	if err != nil {
		s.metrics.SyncTotal.WithLabelValues(comics.ErrorCode(err)).Inc()
		return nil, err
	}

	result := "unchanged"
	if report.Updated > 0 {
		result = "updated"
	}
	s.metrics.SyncTotal.WithLabelValues(result).Inc()
	s.metrics.SyncUpdatedTotal.Add(float64(report.Updated))
	if s.size != nil {
		s.metrics.CatalogSize.Set(float64(s.size()))
	}
	return report, nil
}
