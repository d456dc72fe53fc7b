package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kavos113/quickfleet/fleet-manager/domain"
)

const namespace = "quickfleet"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	reconcileTotal    *prometheus.CounterVec
	reconcileDuration prometheus.Histogram
	reconcileSkipped  prometheus.Counter
	actionsTotal      *prometheus.CounterVec
	watchedInstances  prometheus.Gauge
	viewStale         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reconcileTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_total",
			Help:      "Reconciliation ticks by result.",
		}, []string{"result"}),
		reconcileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation ticks.",
			Buckets:   prometheus.DefBuckets,
		}),
		reconcileSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_coalesced_total",
			Help:      "Triggers dropped because a fetch was already in flight.",
		}),
		actionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Operator actions by kind, action and result code.",
		}, []string{"kind", "action", "code"}),
		watchedInstances: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watched_instances",
			Help:      "Entries in the published fleet view.",
		}),
		viewStale: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view_stale",
			Help:      "1 when the published view comes from a failed fetch.",
		}),
	}
}

func (m *Metrics) ObserveReconcile(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reconcileTotal.WithLabelValues(result).Inc()
	m.reconcileDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveCoalesced() {
	if m == nil {
		return
	}
	m.reconcileSkipped.Inc()
}

func (m *Metrics) ObserveAction(kind domain.JournalKind, action domain.Action, err error) {
	if m == nil {
		return
	}
	code := domain.ErrorCode(err)
	if code == "" {
		code = "OK"
	}
	m.actionsTotal.WithLabelValues(string(kind), string(action), code).Inc()
}

func (m *Metrics) ObserveView(view *domain.FleetView) {
	if m == nil || view == nil {
		return
	}
	m.watchedInstances.Set(float64(len(view.Rows)))
	if view.Stale {
		m.viewStale.Set(1)
	} else {
		m.viewStale.Set(0)
	}
}
