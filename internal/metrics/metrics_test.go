package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithSeparateRegistries(t *testing.T) {
	// Two recorders must be able to coexist, each on its own registry.
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestRecorderObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.RecordCycle("fxleaders", "new_signals", 0.8)
	rec.RecordCycle("fxleaders", "unchanged", 0.1)
	rec.RecordSignals("fxleaders", 3, 2)
	rec.RecordPollInterval("fxleaders", 45)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.cyclesTotal.WithLabelValues("fxleaders", "new_signals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.cyclesTotal.WithLabelValues("fxleaders", "unchanged")))
	assert.Equal(t, 3.0, testutil.ToFloat64(rec.signalsNew.WithLabelValues("fxleaders")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.signalsDup.WithLabelValues("fxleaders")))
	assert.Equal(t, 45.0, testutil.ToFloat64(rec.pollInterval.WithLabelValues("fxleaders")))
}
