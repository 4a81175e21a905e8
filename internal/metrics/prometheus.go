package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusSink implements Sink with the Prometheus client library.
// Registration errors are logged and never propagated.
type PrometheusSink struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	vaultOpsTotal      *prometheus.CounterVec
	slotsScheduled     prometheus.Counter
	slotFallbacks      prometheus.Counter
	eventsTotal        *prometheus.CounterVec

	logger zerolog.Logger
}

func NewPrometheusSink(reg prometheus.Registerer, logger zerolog.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger.With().Str("component", "metrics").Logger()}

	s.generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_generations_total",
		Help: "Generation calls by outcome.",
	}, []string{"outcome"})
	s.generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "studio_generation_duration_seconds",
		Help:    "Wall time of one image+caption generation.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})
	s.vaultOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_vault_operations_total",
		Help: "Vault calls by operation and result.",
	}, []string{"op", "result"})
	s.slotsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_slots_scheduled_total",
		Help: "Posts placed in the scheduled queue.",
	})
	s.slotFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_slot_anchor_fallbacks_total",
		Help: "Scheduling passes that anchored on now because the vault lookup failed.",
	})
	s.eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_events_published_total",
		Help: "Post events published by topic and result.",
	}, []string{"topic", "result"})

	s.register(reg, s.generationsTotal, "studio_generations_total")
	s.register(reg, s.generationDuration, "studio_generation_duration_seconds")
	s.register(reg, s.vaultOpsTotal, "studio_vault_operations_total")
	s.register(reg, s.slotsScheduled, "studio_slots_scheduled_total")
	s.register(reg, s.slotFallbacks, "studio_slot_anchor_fallbacks_total")
	s.register(reg, s.eventsTotal, "studio_events_published_total")
	return s
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn().Err(err).Str("metric", name).Msg("metrics: failed to register")
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (s *PrometheusSink) GenerationCompleted(outcome string, duration time.Duration) {
	s.generationsTotal.WithLabelValues(outcome).Inc()
	s.generationDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) VaultOperation(op string, err error) {
	s.vaultOpsTotal.WithLabelValues(op, result(err)).Inc()
}

func (s *PrometheusSink) SlotsScheduled(count int, degraded bool) {
	s.slotsScheduled.Add(float64(count))
	if degraded {
		s.slotFallbacks.Inc()
	}
}

func (s *PrometheusSink) EventPublished(topic string, err error) {
	s.eventsTotal.WithLabelValues(topic, result(err)).Inc()
}
