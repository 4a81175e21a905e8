package metrics

import "time"

// Sink records studio metrics. Methods are fire-and-forget and never block.
type Sink interface {
	GenerationCompleted(outcome string, duration time.Duration)
	VaultOperation(op string, err error)
	SlotsScheduled(count int, degraded bool)
	EventPublished(topic string, err error)
}

// Generation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeNoImage = "no_image"
	OutcomeFailed  = "failed"
)

// Vault operations.
const (
	OpCreate     = "create"
	OpList       = "list"
	OpMostRecent = "most_recent"
)

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink { return &NoopSink{} }

func (n *NoopSink) GenerationCompleted(outcome string, duration time.Duration) {}
func (n *NoopSink) VaultOperation(op string, err error)                        {}
func (n *NoopSink) SlotsScheduled(count int, degraded bool)                    {}
func (n *NoopSink) EventPublished(topic string, err error)                     {}
