package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.StageAdvanced("base_approved")
	m.StageAdvanced("base_approved")
	m.GuardFailed("bulk")
	m.LinkCreated(true)
	m.LinkCreated(false)
	m.LinkCreated(true)
	m.LinkExpired()
	m.CASConflict()
	m.TestFinalized("base", true)
	m.TestFinalized("base", false)
	m.ObserveReconcile(0.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageAdvances.WithLabelValues("base_approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardFailures.WithLabelValues("bulk")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linksCreated.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksCreated.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.linksExpired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.casConflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.testsFinalized.WithLabelValues("base", "fail")))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "qa_reconcile_duration_seconds")
	assert.Contains(t, names, "qa_style_stage_advances_total")
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.StageAdvanced("bulk")
		m.GuardFailed("base")
		m.LinkCreated(true)
		m.LinkExpired()
		m.CASConflict()
		m.TestFinalized("bulk", true)
		m.ObserveReconcile(1)
	})
}
