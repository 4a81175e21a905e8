package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/campaign-studio/internal/model"
)

type fakeLookup struct {
	post      *model.Post
	err       error
	gotFilter *model.Status
	calls     int
}

func (f *fakeLookup) MostRecent(_ context.Context, status *model.Status) (*model.Post, error) {
	f.calls++
	f.gotFilter = status
	return f.post, f.err
}

func newTestPlanner(lookup LatestLookup, cfg Config, now time.Time) *Planner {
	cfg.Location = time.UTC
	return NewPlanner(cfg, lookup, zerolog.Nop()).WithClock(func() time.Time { return now })
}

func TestPlanner_NextUsesLatestScheduled(t *testing.T) {
	lookup := &fakeLookup{post: &model.Post{ScheduledAt: at(2024, 1, 5, 12, 0)}}
	p := newTestPlanner(lookup, Config{}, at(2023, 1, 1, 0, 0))

	plan := p.Next(context.Background(), 0)

	require.Len(t, plan.Slots, 1)
	assert.False(t, plan.Degraded)
	assert.True(t, at(2024, 1, 6, 9, 0).Equal(plan.Slots[0].At))
	assert.Equal(t, BucketWeekendMorning, plan.Slots[0].Window.Bucket)
	require.NotNil(t, lookup.gotFilter)
	assert.Equal(t, model.StatusScheduled, *lookup.gotFilter)
}

func TestPlanner_AnchorAllStatusesDropsFilter(t *testing.T) {
	lookup := &fakeLookup{}
	p := newTestPlanner(lookup, Config{AnchorAllStatuses: true}, at(2024, 1, 4, 8, 0))

	plan := p.Next(context.Background(), 0)

	assert.Nil(t, lookup.gotFilter)
	assert.Nil(t, plan.Anchor)
	assert.True(t, at(2024, 1, 5, 12, 0).Equal(plan.Slots[0].At))
}

func TestPlanner_LookupFailureFallsBackToNow(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("unauthorized")}
	p := newTestPlanner(lookup, Config{}, at(2024, 1, 4, 8, 0))

	plan := p.Next(context.Background(), 0)

	assert.True(t, plan.Degraded)
	assert.Error(t, plan.Err)
	assert.Nil(t, plan.Anchor)
	assert.True(t, at(2024, 1, 5, 12, 0).Equal(plan.Slots[0].At))
}

func TestPlanner_BatchStaggersByTwoDays(t *testing.T) {
	lookup := &fakeLookup{post: &model.Post{ScheduledAt: at(2024, 1, 1, 10, 0)}}
	p := newTestPlanner(lookup, Config{}, at(2023, 1, 1, 0, 0))

	plan := p.Batch(context.Background(), 3)

	require.Len(t, plan.Slots, 3)
	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, []int{0, 2, 4}, []int{plan.Slots[0].Offset, plan.Slots[1].Offset, plan.Slots[2].Offset})
	assert.True(t, at(2024, 1, 2, 18, 0).Equal(plan.Slots[0].At))
	assert.True(t, at(2024, 1, 4, 12, 0).Equal(plan.Slots[1].At))
	assert.True(t, at(2024, 1, 6, 9, 0).Equal(plan.Slots[2].At))

	for i := 1; i < len(plan.Slots); i++ {
		prev, cur := plan.Slots[i-1].At, plan.Slots[i].At
		assert.True(t, cur.After(prev))
		assert.GreaterOrEqual(t, calendarDays(prev, cur), 2)
	}
}

func TestPlanner_NilLookup(t *testing.T) {
	p := newTestPlanner(nil, Config{}, at(2024, 1, 1, 10, 0))

	plan := p.Batch(context.Background(), 2)
	assert.False(t, plan.Degraded)
	require.Len(t, plan.Slots, 2)
	assert.True(t, at(2024, 1, 2, 18, 0).Equal(plan.Slots[0].At))
}

type blockingLookup struct {
	release chan struct{}
}

func (b *blockingLookup) MostRecent(context.Context, *model.Status) (*model.Post, error) {
	<-b.release
	return &model.Post{ScheduledAt: at(2030, 1, 1, 9, 0)}, nil
}

func TestPlanner_HungLookupTimesOut(t *testing.T) {
	lookup := &blockingLookup{release: make(chan struct{})}
	defer close(lookup.release)
	p := newTestPlanner(lookup, Config{LookupTimeout: 20 * time.Millisecond}, at(2024, 1, 4, 8, 0))

	started := time.Now()
	plan := p.Next(context.Background(), 0)

	assert.Less(t, time.Since(started), time.Second)
	assert.True(t, plan.Degraded)
	assert.ErrorIs(t, plan.Err, context.DeadlineExceeded)
	assert.True(t, at(2024, 1, 5, 12, 0).Equal(plan.Slots[0].At))
}

func TestPlanner_CancelledContextFallsBackToNow(t *testing.T) {
	lookup := &blockingLookup{release: make(chan struct{})}
	defer close(lookup.release)
	p := newTestPlanner(lookup, Config{}, at(2024, 1, 4, 8, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	plan := p.Batch(ctx, 2)

	assert.True(t, plan.Degraded)
	require.Len(t, plan.Slots, 2)
	assert.True(t, at(2024, 1, 5, 12, 0).Equal(plan.Slots[0].At))
}

func TestPlanner_UndatedAnchorIgnored(t *testing.T) {
	lookup := &fakeLookup{post: &model.Post{Title: "no date"}}
	p := newTestPlanner(lookup, Config{}, at(2024, 1, 4, 8, 0))

	plan := p.Next(context.Background(), 0)

	assert.False(t, plan.Degraded)
	assert.Nil(t, plan.Anchor)
	assert.True(t, at(2024, 1, 5, 12, 0).Equal(plan.Slots[0].At))
}
