package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSink(t *testing.T) (*PrometheusSink, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewPrometheusSink(reg, zerolog.Nop()), reg
}

func family(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func counterWithLabels(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mf := family(t, reg, name)
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPrometheusSink_Generation(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.GenerationCompleted(OutcomeSuccess, 3*time.Second)
	sink.GenerationCompleted(OutcomeSuccess, time.Second)
	sink.GenerationCompleted(OutcomeFailed, time.Second)

	assert.Equal(t, 2.0, counterWithLabels(t, reg, "studio_generations_total", map[string]string{"outcome": OutcomeSuccess}))
	assert.Equal(t, 1.0, counterWithLabels(t, reg, "studio_generations_total", map[string]string{"outcome": OutcomeFailed}))

	hist := family(t, reg, "studio_generation_duration_seconds")
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestPrometheusSink_VaultAndSlots(t *testing.T) {
	sink, reg := newTestSink(t)

	sink.VaultOperation(OpCreate, nil)
	sink.VaultOperation(OpMostRecent, errors.New("timeout"))
	sink.SlotsScheduled(3, false)
	sink.SlotsScheduled(1, true)

	assert.Equal(t, 1.0, counterWithLabels(t, reg, "studio_vault_operations_total", map[string]string{"op": OpCreate, "result": "ok"}))
	assert.Equal(t, 1.0, counterWithLabels(t, reg, "studio_vault_operations_total", map[string]string{"op": OpMostRecent, "result": "error"}))
	assert.Equal(t, 4.0, counterWithLabels(t, reg, "studio_slots_scheduled_total", nil))
	assert.Equal(t, 1.0, counterWithLabels(t, reg, "studio_slot_anchor_fallbacks_total", nil))
}

func TestPrometheusSink_DoubleRegistrationDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewPrometheusSink(reg, zerolog.Nop())

	assert.NotPanics(t, func() {
		s := NewPrometheusSink(reg, zerolog.Nop())
		s.EventPublished("post_scheduled", nil)
	})
}

func TestNoopSink(t *testing.T) {
	var s Sink = NewNoopSink()
	assert.NotPanics(t, func() {
		s.GenerationCompleted(OutcomeNoImage, time.Second)
		s.VaultOperation(OpList, nil)
		s.SlotsScheduled(2, true)
		s.EventPublished("post_scheduled", errors.New("x"))
	})
}
