package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "qa"

// Metrics 合规引擎指标，nil接收者上的方法均为空操作
type Metrics struct {
	stageAdvances    *prometheus.CounterVec
	guardFailures    *prometheus.CounterVec
	linksCreated     *prometheus.CounterVec
	linksExpired     prometheus.Counter
	casConflicts     prometheus.Counter
	testsFinalized   *prometheus.CounterVec
	reconcileSeconds prometheus.Histogram
}

// New 创建并注册指标，registry为nil时使用默认注册器
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		stageAdvances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "style_stage_advances_total",
				Help:      "Style stage transitions that succeeded",
			},
			[]string{"to"},
		),
		guardFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "style_guard_failures_total",
				Help:      "Stage advances rejected by a guard",
			},
			[]string{"from"},
		),
		linksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_created_total",
				Help:      "Style-component links created, by whether base evidence was inherited",
			},
			[]string{"inherited"},
		),
		linksExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_expired_total",
				Help:      "Inherited links downgraded to pending by reconciliation",
			},
		),
		casConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_cas_conflicts_total",
				Help:      "Expiration downgrades skipped because the link changed concurrently",
			},
		),
		testsFinalized: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tests_finalized_total",
				Help:      "Component tests finalized, by level and outcome",
			},
			[]string{"level", "outcome"},
		),
		reconcileSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_duration_seconds",
				Help:      "Duration of expiration reconciliation runs",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.stageAdvances,
		m.guardFailures,
		m.linksCreated,
		m.linksExpired,
		m.casConflicts,
		m.testsFinalized,
		m.reconcileSeconds,
	)
	return m
}

func (m *Metrics) StageAdvanced(to string) {
	if m == nil {
		return
	}
	m.stageAdvances.WithLabelValues(to).Inc()
}

func (m *Metrics) GuardFailed(from string) {
	if m == nil {
		return
	}
	m.guardFailures.WithLabelValues(from).Inc()
}

func (m *Metrics) LinkCreated(inherited bool) {
	if m == nil {
		return
	}
	label := "false"
	if inherited {
		label = "true"
	}
	m.linksCreated.WithLabelValues(label).Inc()
}

func (m *Metrics) LinkExpired() {
	if m == nil {
		return
	}
	m.linksExpired.Inc()
}

func (m *Metrics) CASConflict() {
	if m == nil {
		return
	}
	m.casConflicts.Inc()
}

func (m *Metrics) TestFinalized(level string, passing bool) {
	if m == nil {
		return
	}
	outcome := "fail"
	if passing {
		outcome = "pass"
	}
	m.testsFinalized.WithLabelValues(level, outcome).Inc()
}

func (m *Metrics) ObserveReconcile(seconds float64) {
	if m == nil {
		return
	}
	m.reconcileSeconds.Observe(seconds)
}
