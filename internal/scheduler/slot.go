package scheduler

import "time"

// Bucket names the engagement window a slot falls into.
type Bucket string

const (
	BucketEveningCommute Bucket = "evening commute"
	BucketLunchBreak     Bucket = "lunch break"
	BucketWeekendMorning Bucket = "weekend morning"
)

// Window is an engagement window: a posting hour keyed by weekday.
type Window struct {
	Hour   int
	Bucket Bucket
}

// MondayIndex converts Go's Sunday-first weekday to Monday = 0 ... Sunday = 6.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// WindowFor maps a Monday-first weekday index to its engagement window.
// Out-of-range values are reduced modulo 7.
func WindowFor(weekday int) Window {
	weekday = ((weekday % 7) + 7) % 7
	switch {
	case weekday <= 2:
		return Window{Hour: 18, Bucket: BucketEveningCommute}
	case weekday <= 4:
		return Window{Hour: 12, Bucket: BucketLunchBreak}
	default:
		return Window{Hour: 9, Bucket: BucketWeekendMorning}
	}
}

// NextOptimalSlot picks the posting time for the next queued item.
//
// The target day is always 1+batchOffsetDays calendar days after the base
// date (mostRecent, or now when nil). The hour depends only on the target's
// weekday. Calendar arithmetic is done in loc; a nil loc means time.Local.
func NextOptimalSlot(mostRecent *time.Time, batchOffsetDays int, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	if batchOffsetDays < 0 {
		batchOffsetDays = 0
	}

	base := now
	if mostRecent != nil {
		base = *mostRecent
	}
	base = base.In(loc)

	target := base.AddDate(0, 0, 1+batchOffsetDays)
	w := WindowFor(MondayIndex(target.Weekday()))

	return time.Date(target.Year(), target.Month(), target.Day(), w.Hour, 0, 0, 0, loc)
}
