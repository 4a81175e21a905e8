// internal/service/campaign_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/generation"
	"github.com/unclebandit/campaign-studio/internal/metrics"
	"github.com/unclebandit/campaign-studio/internal/model"
	"github.com/unclebandit/campaign-studio/internal/queue"
	"github.com/unclebandit/campaign-studio/internal/repository"
	"github.com/unclebandit/campaign-studio/internal/scheduler"
)

// Generator produces image+caption pairs, one reference image at a time.
type Generator interface {
	Batch(ctx context.Context, topic string, refs []*generation.ReferenceImage, voice model.BrandVoice, progress func(done, total int, r generation.Result)) []generation.Result
}

// SlotPlanner picks posting slots for queued posts.
type SlotPlanner interface {
	Next(ctx context.Context, batchOffsetDays int) scheduler.Plan
	Batch(ctx context.Context, n int) scheduler.Plan
}

// CampaignService ties generation, the vault and the scheduler together.
// Vault or Generator may be nil when their configuration is missing.
type CampaignService struct {
	Vault        repository.VaultRepository
	Generator    Generator
	Planner      SlotPlanner
	Queue        queue.Queue
	Metrics      metrics.Sink
	Logger       zerolog.Logger
	VaultTimeout time.Duration
	Clock        func() time.Time
}

// GenerateRequest is one press of the generate button.
type GenerateRequest struct {
	Topic      string
	References []*generation.ReferenceImage
	Voice      model.BrandVoice
}

// Draft is a generated item about to be persisted.
type Draft struct {
	Title   string `json:"title"`
	Caption string `json:"caption"`
}

// ScheduleOutcome reports a scheduling pass. Plan.Degraded is set when the
// anchor lookup failed; Errs holds per-item save failures by index.
type ScheduleOutcome struct {
	Posts []*model.Post
	Plan  scheduler.Plan
	Errs  map[int]error
}

func (s *CampaignService) sink() metrics.Sink {
	if s.Metrics == nil {
		return metrics.NewNoopSink()
	}
	return s.Metrics
}

func (s *CampaignService) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func (s *CampaignService) vaultContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.VaultTimeout > 0 {
		return context.WithTimeout(ctx, s.VaultTimeout)
	}
	return context.WithCancel(ctx)
}

// GenerationEnabled reports whether a provider is wired.
func (s *CampaignService) GenerationEnabled() bool { return s.Generator != nil }

// VaultEnabled reports whether a record store is wired.
func (s *CampaignService) VaultEnabled() bool { return s.Vault != nil }

// Generate runs the batch sequentially and logs progress after each item.
func (s *CampaignService) Generate(ctx context.Context, req GenerateRequest) ([]generation.Result, error) {
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		return nil, errors.New("topic cannot be empty")
	}
	if s.Generator == nil {
		return nil, appErrors.ErrGenerationDisabled
	}

	started := s.now()
	results := s.Generator.Batch(ctx, topic, req.References, req.Voice, func(done, total int, r generation.Result) {
		outcome := metrics.OutcomeSuccess
		switch {
		case r.Failed():
			outcome = metrics.OutcomeFailed
		case r.Image == nil:
			outcome = metrics.OutcomeNoImage
		}
		s.sink().GenerationCompleted(outcome, s.now().Sub(started))
		started = s.now()

		s.Logger.Info().
			Str("topic", topic).
			Int("done", done).
			Int("total", total).
			Str("outcome", outcome).
			Msg("service: generation progress")
	})
	return results, nil
}

// SaveDraft stores a Draft stamped with the current time.
func (s *CampaignService) SaveDraft(ctx context.Context, d Draft) Result[*model.Post] {
	return s.saveNow(ctx, d, model.StatusDraft)
}

// MarkReady stores a Ready post stamped with the current time.
func (s *CampaignService) MarkReady(ctx context.Context, d Draft) Result[*model.Post] {
	return s.saveNow(ctx, d, model.StatusReady)
}

func (s *CampaignService) saveNow(ctx context.Context, d Draft, status model.Status) Result[*model.Post] {
	p := &model.Post{
		Title:       d.Title,
		Caption:     d.Caption,
		Status:      status,
		ScheduledAt: s.now(),
	}
	if err := s.create(ctx, p); err != nil {
		return fail[*model.Post](err)
	}
	return ok(p)
}

// ScheduleBatch plans one slot per draft from a single anchor lookup, item i
// at offset 2*i, and stores each as Scheduled.
func (s *CampaignService) ScheduleBatch(ctx context.Context, drafts []Draft) (ScheduleOutcome, error) {
	if s.Vault == nil {
		return ScheduleOutcome{}, appErrors.ErrVaultDisabled
	}
	if len(drafts) == 0 {
		return ScheduleOutcome{}, errors.New("nothing to schedule")
	}

	lookupCtx, cancel := s.vaultContext(ctx)
	plan := s.Planner.Batch(lookupCtx, len(drafts))
	cancel()
	s.sink().VaultOperation(metrics.OpMostRecent, plan.Err)
	out := ScheduleOutcome{Plan: plan, Errs: make(map[int]error)}

	for i, d := range drafts {
		slot := plan.Slots[i]
		p := &model.Post{
			Title:       d.Title,
			Caption:     d.Caption,
			Status:      model.StatusScheduled,
			ScheduledAt: slot.At,
		}
		if err := s.create(ctx, p); err != nil {
			out.Errs[i] = err
			continue
		}
		out.Posts = append(out.Posts, p)
		s.publish(p)
	}

	s.sink().SlotsScheduled(len(out.Posts), plan.Degraded)
	s.Logger.Info().
		Int("scheduled", len(out.Posts)).
		Int("failed", len(out.Errs)).
		Bool("anchor_fallback", plan.Degraded).
		Msg("service: batch scheduled")
	return out, nil
}

// ListQueue lists upcoming Scheduled posts, earliest first.
func (s *CampaignService) ListQueue(ctx context.Context, limit int) Result[[]*model.Post] {
	return s.list(ctx, model.StatusScheduled, s.now(), limit)
}

// RecentDrafts feeds the dashboard.
func (s *CampaignService) RecentDrafts(ctx context.Context, limit int) Result[[]*model.Post] {
	return s.list(ctx, model.StatusDraft, time.Time{}, limit)
}

// NextSlot previews where a post at the given batch offset would land. The
// anchor lookup shares the vault timeout so a hung store degrades to now.
func (s *CampaignService) NextSlot(ctx context.Context, batchOffsetDays int) scheduler.Plan {
	ctx, cancel := s.vaultContext(ctx)
	defer cancel()
	return s.Planner.Next(ctx, batchOffsetDays)
}

// Ping checks the vault for the health endpoint.
func (s *CampaignService) Ping(ctx context.Context) error {
	if s.Vault == nil {
		return appErrors.ErrVaultDisabled
	}
	ctx, cancel := s.vaultContext(ctx)
	defer cancel()
	return s.Vault.Ping(ctx)
}

func (s *CampaignService) list(ctx context.Context, status model.Status, from time.Time, limit int) Result[[]*model.Post] {
	if s.Vault == nil {
		return fail[[]*model.Post](appErrors.ErrVaultDisabled)
	}
	ctx, cancel := s.vaultContext(ctx)
	defer cancel()

	posts, err := s.Vault.ListByStatus(ctx, status, from, limit)
	s.sink().VaultOperation(metrics.OpList, err)
	if err != nil {
		s.Logger.Warn().Err(err).Str("status", string(status)).Msg("service: vault list failed")
		return fail[[]*model.Post](fmt.Errorf("list %s posts: %w", status, err))
	}
	return ok(posts)
}

func (s *CampaignService) create(ctx context.Context, p *model.Post) error {
	if s.Vault == nil {
		return appErrors.ErrVaultDisabled
	}
	ctx, cancel := s.vaultContext(ctx)
	defer cancel()

	err := s.Vault.Create(ctx, p)
	s.sink().VaultOperation(metrics.OpCreate, err)
	if err != nil {
		s.Logger.Warn().Err(err).Str("title", p.Title).Msg("service: vault create failed")
		return fmt.Errorf("save post: %w", err)
	}
	return nil
}

func (s *CampaignService) publish(p *model.Post) {
	if s.Queue == nil {
		return
	}
	err := s.Queue.Publish(queue.TopicPostScheduled, model.ScheduledEvent{
		PostID:      p.ID,
		Title:       p.Title,
		ScheduledAt: p.ScheduledAt,
	})
	s.sink().EventPublished(queue.TopicPostScheduled, err)
	if err != nil {
		s.Logger.Warn().Err(err).Str("post_id", p.ID).Msg("service: failed to publish scheduled event")
	}
}

// Excerpt shortens a caption for dashboard cards.
func Excerpt(caption string, n int) string {
	if caption == repository.NoCaptionPlaceholder {
		return caption
	}
	r := []rune(caption)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

// BatchTitles names the items of one generation, numbering them when there
// is more than one.
func BatchTitles(topic string, n int) []string {
	titles := make([]string, n)
	for i := range titles {
		if n == 1 {
			titles[i] = topic
		} else {
			titles[i] = fmt.Sprintf("%s (%d/%d)", topic, i+1, n)
		}
	}
	return titles
}
