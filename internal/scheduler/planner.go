package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-studio/internal/model"
)

// LatestLookup returns the most recent post by scheduled time, or nil when
// the vault holds none. A nil status means every status is considered.
type LatestLookup interface {
	MostRecent(ctx context.Context, status *model.Status) (*model.Post, error)
}

// Slot is a planned posting time.
type Slot struct {
	At     time.Time
	Offset int
	Window Window
}

// Plan is the outcome of a planner pass. Err is set when the vault lookup
// failed and the slots were anchored on the current time instead.
type Plan struct {
	Slots    []Slot
	Anchor   *time.Time
	Degraded bool
	Err      error
}

type Config struct {
	Location *time.Location
	// AnchorAllStatuses restores the unfiltered most-recent lookup.
	AnchorAllStatuses bool
	// LookupTimeout bounds the anchor lookup; zero relies on the caller's context.
	LookupTimeout time.Duration
}

type Planner struct {
	config Config
	lookup LatestLookup
	clock  func() time.Time
	logger zerolog.Logger
}

func NewPlanner(config Config, lookup LatestLookup, logger zerolog.Logger) *Planner {
	if config.Location == nil {
		config.Location = time.Local
	}
	return &Planner{
		config: config,
		lookup: lookup,
		clock:  time.Now,
		logger: logger.With().Str("component", "scheduler").Logger(),
	}
}

// WithClock overrides the wall clock, for tests.
func (p *Planner) WithClock(clock func() time.Time) *Planner {
	p.clock = clock
	return p
}

// Next plans a single slot at the given batch offset.
func (p *Planner) Next(ctx context.Context, batchOffsetDays int) Plan {
	anchor, err := p.anchor(ctx)
	plan := Plan{Anchor: anchor, Degraded: err != nil, Err: err}
	plan.Slots = []Slot{p.slot(anchor, batchOffsetDays)}
	return plan
}

// Batch plans n slots from a single lookup. Item i uses offset 2*i.
func (p *Planner) Batch(ctx context.Context, n int) Plan {
	anchor, err := p.anchor(ctx)
	plan := Plan{Anchor: anchor, Degraded: err != nil, Err: err}
	for i := 0; i < n; i++ {
		plan.Slots = append(plan.Slots, p.slot(anchor, 2*i))
	}
	return plan
}

func (p *Planner) slot(anchor *time.Time, offset int) Slot {
	at := NextOptimalSlot(anchor, offset, p.clock(), p.config.Location)
	return Slot{
		At:     at,
		Offset: offset,
		Window: WindowFor(MondayIndex(at.Weekday())),
	}
}

type lookupResult struct {
	post *model.Post
	err  error
}

// anchor never fails the caller: lookup errors are logged and returned
// alongside a nil anchor so scheduling falls back to now. A lookup that
// outlives ctx is abandoned.
func (p *Planner) anchor(ctx context.Context) (*time.Time, error) {
	if p.lookup == nil {
		return nil, nil
	}

	var filter *model.Status
	if !p.config.AnchorAllStatuses {
		s := model.StatusScheduled
		filter = &s
	}

	if p.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.LookupTimeout)
		defer cancel()
	}

	done := make(chan lookupResult, 1)
	go func() {
		post, err := p.lookup.MostRecent(ctx, filter)
		done <- lookupResult{post: post, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		p.logger.Warn().Err(res.err).Msg("scheduler: most recent slot lookup failed, anchoring on now")
		return nil, fmt.Errorf("most recent lookup: %w", res.err)
	}
	// Records without a readable date carry no anchor.
	if res.post == nil || res.post.ScheduledAt.IsZero() {
		return nil, nil
	}
	at := res.post.ScheduledAt
	return &at, nil
}
