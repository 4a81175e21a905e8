package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/model"
)

// TopicPostScheduled carries a model.ScheduledEvent per queued post.
const TopicPostScheduled = "post_scheduled"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue delivers to in-process subscribers with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
	logger   zerolog.Logger
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(logger zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
		logger:   logger.With().Str("component", "queue").Logger(),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*500) * time.Millisecond
		},
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		job := JobPayload{Payload: payload, MaxRetries: 3}
		q.wg.Add(1)
		go q.processJob(topic, handler, job)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	defer q.wg.Done()
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return
		}

		job.RetryCount++
		q.logger.Warn().Err(err).Str("topic", topic).
			Int("attempt", job.RetryCount).Int("max_retries", job.MaxRetries).
			Msg("queue: job failed")

		if job.RetryCount > job.MaxRetries {
			q.logger.Error().Str("topic", topic).Msg("queue: job permanently failed")
			return
		}

		time.Sleep(q.backoff(job.RetryCount))
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Drain waits for in-flight jobs, used on shutdown.
func (q *InMemoryQueue) Drain() {
	q.wg.Wait()
}

// StartScheduledPostSubscriber logs every post placed in the queue.
func StartScheduledPostSubscriber(q Queue, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "queue").Logger()
	return q.Subscribe(TopicPostScheduled, func(payload any) error {
		var ev model.ScheduledEvent
		switch v := payload.(type) {
		case model.ScheduledEvent:
			ev = v
		case json.RawMessage:
			if err := json.Unmarshal(v, &ev); err != nil {
				logger.Warn().Err(err).Msg("queue: undecodable scheduled event")
				return nil // no retry
			}
		default:
			logger.Warn().Msgf("queue: unexpected payload type %T", payload)
			return nil // no retry
		}
		logger.Info().
			Str("post_id", ev.PostID).
			Str("title", ev.Title).
			Time("scheduled_at", ev.ScheduledAt).
			Msg("queue: post scheduled")
		return nil
	})
}
