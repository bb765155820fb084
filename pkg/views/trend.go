package views

import (
	"fmt"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

type Range string

const (
	RangeDaily   Range = "daily"
	RangeWeekly  Range = "weekly"
	RangeMonthly Range = "monthly"
	RangeYearly  Range = "yearly"
)

func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeDaily, RangeWeekly, RangeMonthly, RangeYearly:
		return r, nil
	}
	return "", fmt.Errorf("unknown trend range %q", s)
}

// TrendOptions tweaks bucketing.
type TrendOptions struct {
	// YearlyByYear makes the yearly range bucket by calendar year (previous
	// and current). Otherwise yearly buckets by month like the monthly range.
	YearlyByYear bool
}

// Bucket is one period of a completion trend, covering [Start, End).
type Bucket struct {
	Label     string    `json:"label"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Completed int       `json:"completed"`
}

// Trend counts completed tasks per period, by the time completion was
// recorded (UpdatedAt), over a lookback window ending with the period that
// contains now. Periods use now's location; weeks start on Monday.
func Trend(tasks []model.Task, now time.Time, r Range, opts TrendOptions) ([]Bucket, error) {
	buckets, err := Buckets(now, r, opts)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if !t.IsCompleted() {
			continue
		}
		at := t.UpdatedAt.In(now.Location())
		for i := range buckets {
			if !at.Before(buckets[i].Start) && at.Before(buckets[i].End) {
				buckets[i].Completed++
				break
			}
		}
	}
	return buckets, nil
}

// Buckets returns the empty, contiguous periods for r ending with the
// period containing now.
func Buckets(now time.Time, r Range, opts TrendOptions) ([]Bucket, error) {
	switch r {
	case RangeDaily:
		return series(startOfDay(now), 7, func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }, "Jan 02"), nil
	case RangeWeekly:
		return series(startOfWeek(now), 4, func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }, "Jan 02"), nil
	case RangeYearly:
		if opts.YearlyByYear {
			return series(startOfYear(now), 2, func(t time.Time, n int) time.Time { return t.AddDate(n, 0, 0) }, "2006"), nil
		}
		fallthrough
	case RangeMonthly:
		return series(startOfMonth(now), 12, func(t time.Time, n int) time.Time { return t.AddDate(0, n, 0) }, "Jan 2006"), nil
	}
	return nil, fmt.Errorf("unknown trend range %q", r)
}

// series builds count periods where the last one starts at current.
func series(current time.Time, count int, shift func(time.Time, int) time.Time, layout string) []Bucket {
	out := make([]Bucket, count)
	for i := 0; i < count; i++ {
		start := shift(current, i-count+1)
		out[i] = Bucket{
			Label: start.Format(layout),
			Start: start,
			End:   shift(current, i-count+2),
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}
