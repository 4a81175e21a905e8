package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/config"
	"github.com/unclebandit/campaign-studio/internal/logging"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/queue"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	root := logging.New(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole})
	logger := logging.Component(root, "worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: invalid configuration")
	}
	if envErr != nil {
		logger.Info().Msg("worker: no .env file found, relying on OS environment variables")
	}
	if cfg.AMQPURL == "" {
		logger.Fatal().Msg("worker: AMQP_URL is required")
	}

	q, err := queue.DialAMQP(cfg.AMQPURL, root)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to connect to RabbitMQ")
	}
	defer q.Close()

	h := &eventHandler{logger: logger, now: time.Now, location: cfg.Location}
	if err := q.Subscribe(queue.TopicPostScheduled, h.handle); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to register consumer")
	}

	logger.Info().Str("topic", queue.TopicPostScheduled).Msg("worker: waiting for messages")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	logger.Info().Str("signal", received.String()).Msg("worker: shutting down")
}

type eventHandler struct {
	logger   zerolog.Logger
	now      func() time.Time
	location *time.Location
}

// handle reports how far out each scheduled post is. Malformed messages are
// acknowledged and dropped; redelivering them cannot help.
func (h *eventHandler) handle(payload any) error {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		h.logger.Warn().Msgf("worker: unexpected payload type %T", payload)
		return nil
	}

	var ev model.ScheduledEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		h.logger.Warn().Err(err).Msg("worker: invalid event")
		return nil
	}

	lead, stale := describe(ev, h.now())
	at := ev.ScheduledAt
	if h.location != nil {
		at = at.In(h.location)
	}

	entry := h.logger.Info()
	if stale {
		entry = h.logger.Warn()
	}
	entry.
		Str("post_id", ev.PostID).
		Str("title", ev.Title).
		Str("slot", at.Format("Mon Jan 2 15:04 MST")).
		Str("lead", lead).
		Bool("stale", stale).
		Msg("worker: post scheduled")
	return nil
}

// describe renders the slot relative to now and flags slots already past.
func describe(ev model.ScheduledEvent, now time.Time) (string, bool) {
	return humanize.RelTime(ev.ScheduledAt, now, "ago", "from now"), ev.ScheduledAt.Before(now)
}
