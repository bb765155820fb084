package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// Wednesday afternoon.
var now = time.Date(2024, 5, 8, 15, 0, 0, 0, time.UTC)

func task(id string, p model.Priority, s model.Status, deadline time.Time) model.Task {
	return model.Task{
		ID:        id,
		Name:      id,
		Priority:  p,
		Category:  model.CategoryWork,
		Status:    s,
		Deadline:  deadline,
		CreatedAt: deadline.Add(-72 * time.Hour),
		UpdatedAt: deadline.Add(-72 * time.Hour),
	}
}

func completedAt(id string, at time.Time) model.Task {
	t := task(id, model.PriorityMedium, model.StatusCompleted, at)
	t.UpdatedAt = at
	return t
}

func idsOf(tasks []model.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestComputeStats(t *testing.T) {
	tasks := []model.Task{
		task("a", model.PriorityHigh, model.StatusTodo, now.Add(-time.Hour)),
		task("b", model.PriorityHigh, model.StatusCompleted, now.Add(-time.Hour)),
		task("c", model.PriorityLow, model.StatusInProgress, now.Add(-time.Minute)),
		task("d", model.PriorityLow, model.StatusBlocked, now.Add(time.Hour)),
		task("e", model.PriorityLow, model.StatusTodo, now.Add(time.Hour)),
	}
	st := ComputeStats(tasks, now)
	assert.Equal(t, Stats{Total: 5, Completed: 1, Overdue: 2, InProgress: 1, Blocked: 1}, st)
	assert.Equal(t, st.Total, st.Completed+(st.Total-st.Completed))
	assert.LessOrEqual(t, st.Overdue, st.Total-st.Completed)

	assert.Equal(t, Stats{}, ComputeStats(nil, now))
}

func TestByPriorityIsStable(t *testing.T) {
	same := now.Add(24 * time.Hour)
	tasks := []model.Task{
		task("low", model.PriorityLow, model.StatusTodo, now),
		task("first", model.PriorityHigh, model.StatusTodo, same),
		task("urgent-late", model.PriorityUrgent, model.StatusTodo, same.Add(time.Hour)),
		task("second", model.PriorityHigh, model.StatusTodo, same),
		task("urgent-early", model.PriorityUrgent, model.StatusTodo, now),
		task("third", model.PriorityHigh, model.StatusTodo, same),
	}
	sorted := ByPriority(tasks)
	assert.Equal(t, []string{"urgent-early", "urgent-late", "first", "second", "third", "low"}, idsOf(sorted))
	assert.Equal(t, "low", tasks[0].ID, "input is not reordered")
}

func TestOverdueExcludesCompleted(t *testing.T) {
	tasks := []model.Task{
		task("late", model.PriorityHigh, model.StatusTodo, now.Add(-time.Hour)),
		task("done", model.PriorityHigh, model.StatusCompleted, now.Add(-48*time.Hour)),
		task("future", model.PriorityHigh, model.StatusTodo, now.Add(time.Hour)),
	}
	assert.Equal(t, []string{"late"}, idsOf(Overdue(tasks, now)))
}

func TestUpcoming(t *testing.T) {
	tasks := []model.Task{
		task("in-six-days", model.PriorityLow, model.StatusTodo, now.Add(6*24*time.Hour)),
		task("past", model.PriorityLow, model.StatusTodo, now.Add(-time.Minute)),
		task("tomorrow", model.PriorityLow, model.StatusBlocked, now.Add(24*time.Hour)),
		task("done", model.PriorityLow, model.StatusCompleted, now.Add(time.Hour)),
		task("edge", model.PriorityLow, model.StatusTodo, now.Add(DashboardWindow)),
		task("too-far", model.PriorityLow, model.StatusTodo, now.Add(DashboardWindow+time.Second)),
		task("now", model.PriorityLow, model.StatusTodo, now),
	}
	assert.Equal(t, []string{"now", "tomorrow", "in-six-days", "edge"}, idsOf(Upcoming(tasks, now, DashboardWindow)))
}

func TestSelect(t *testing.T) {
	tasks := []model.Task{
		task("later", model.PriorityLow, model.StatusTodo, now.Add(48*time.Hour)),
		task("late", model.PriorityUrgent, model.StatusTodo, now.Add(-time.Hour)),
		task("done", model.PriorityHigh, model.StatusCompleted, now.Add(time.Hour)),
	}
	tests := map[string][]string{
		"":         {"later", "late", "done"},
		"all":      {"later", "late", "done"},
		"priority": {"late", "done", "later"},
		"active":   {"later", "late"},
		"overdue":  {"late"},
		"upcoming": {"later"},
		"today":    {"late", "done"},
	}
	for name, want := range tests {
		got, err := Select(name, tasks, now)
		require.NoError(t, err, name)
		assert.Equal(t, want, idsOf(got), name)
	}

	_, err := Select("someday", tasks, now)
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestBuildDashboardCaps(t *testing.T) {
	var tasks []model.Task
	for i := 0; i < 10; i++ {
		tasks = append(tasks, task(string(rune('a'+i)), model.PriorityMedium, model.StatusTodo, now.Add(time.Duration(i+1)*time.Hour)))
	}
	tasks = append(tasks, task("done", model.PriorityUrgent, model.StatusCompleted, now.Add(time.Hour)))

	d := BuildDashboard(tasks, now)
	assert.Equal(t, []string{"done", "a", "b", "c", "d", "e"}, idsOf(d.Priority))
	assert.Len(t, d.Upcoming, UpcomingLimit)
	assert.Equal(t, 11, d.Stats.Total)
	assert.Equal(t, []string{"a", "b"}, idsOf(Take(tasks, 2)))
	assert.Len(t, Take(tasks[:1], 5), 1)
}

func TestDashboardPriorityKeepsCompletedTasks(t *testing.T) {
	tasks := []model.Task{
		task("open", model.PriorityLow, model.StatusTodo, now.Add(time.Hour)),
		task("done", model.PriorityUrgent, model.StatusCompleted, now.Add(-time.Hour)),
	}
	d := BuildDashboard(tasks, now)
	assert.Equal(t, idsOf(ByPriority(tasks)), idsOf(d.Priority))
	assert.Equal(t, []string{"done", "open"}, idsOf(d.Priority))
}

func TestTrendBucketLayout(t *testing.T) {
	tests := []struct {
		r         Range
		opts      TrendOptions
		count     int
		first     string
		last      string
		lastStart time.Time
		lastEnd   time.Time
	}{
		{RangeDaily, TrendOptions{}, 7, "May 02", "May 08",
			time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)},
		{RangeWeekly, TrendOptions{}, 4, "Apr 15", "May 06",
			time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)},
		{RangeMonthly, TrendOptions{}, 12, "Jun 2023", "May 2024",
			time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{RangeYearly, TrendOptions{}, 12, "Jun 2023", "May 2024",
			time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{RangeYearly, TrendOptions{YearlyByYear: true}, 2, "2023", "2024",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			buckets, err := Buckets(now, tt.r, tt.opts)
			require.NoError(t, err)
			require.Len(t, buckets, tt.count)
			assert.Equal(t, tt.first, buckets[0].Label)
			last := buckets[len(buckets)-1]
			assert.Equal(t, tt.last, last.Label)
			assert.Equal(t, tt.lastStart, last.Start)
			assert.Equal(t, tt.lastEnd, last.End)
			for i := 1; i < len(buckets); i++ {
				assert.Equal(t, buckets[i-1].End, buckets[i].Start, "buckets must be contiguous")
			}
		})
	}

	_, err := Buckets(now, Range("hourly"), TrendOptions{})
	assert.Error(t, err)
}

func TestTrendCountsEachCompletionOnce(t *testing.T) {
	ranges := []struct {
		r    Range
		opts TrendOptions
	}{
		{RangeDaily, TrendOptions{}},
		{RangeWeekly, TrendOptions{}},
		{RangeMonthly, TrendOptions{}},
		{RangeYearly, TrendOptions{}},
		{RangeYearly, TrendOptions{YearlyByYear: true}},
	}
	for _, rr := range ranges {
		buckets, err := Buckets(now, rr.r, rr.opts)
		require.NoError(t, err)
		windowStart := buckets[0].Start
		windowEnd := buckets[len(buckets)-1].End

		for at := windowStart; at.Before(windowEnd); at = at.Add(11 * time.Hour) {
			trend, err := Trend([]model.Task{completedAt("x", at)}, now, rr.r, rr.opts)
			require.NoError(t, err)
			hits := 0
			for _, b := range trend {
				hits += b.Completed
				if b.Completed == 1 {
					assert.False(t, at.Before(b.Start), "%s: %v before bucket %s", rr.r, at, b.Label)
					assert.True(t, at.Before(b.End), "%s: %v after bucket %s", rr.r, at, b.Label)
				}
			}
			assert.Equal(t, 1, hits, "%s: completion at %v", rr.r, at)
		}

		trend, err := Trend([]model.Task{completedAt("old", windowStart.Add(-time.Second))}, now, rr.r, rr.opts)
		require.NoError(t, err)
		for _, b := range trend {
			assert.Zero(t, b.Completed)
		}
	}
}

func TestTrendUsesUpdatedAtAndIgnoresOpenTasks(t *testing.T) {
	done := completedAt("done", now.Add(-time.Hour))
	done.Deadline = now.AddDate(0, 0, -30)
	open := task("open", model.PriorityLow, model.StatusTodo, now)
	open.UpdatedAt = now

	trend, err := Trend([]model.Task{done, open}, now, RangeDaily, TrendOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, trend[len(trend)-1].Completed)
	total := 0
	for _, b := range trend {
		total += b.Completed
	}
	assert.Equal(t, 1, total)
}

func TestTrendUsesNowLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	localNow := time.Date(2024, 5, 8, 8, 0, 0, 0, tokyo)
	// 2024-05-07 20:00 UTC is already May 8 in Tokyo.
	trend, err := Trend([]model.Task{completedAt("x", time.Date(2024, 5, 7, 20, 0, 0, 0, time.UTC))}, localNow, RangeDaily, TrendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "May 08", trend[6].Label)
	assert.Equal(t, 1, trend[6].Completed)
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("weekly")
	require.NoError(t, err)
	assert.Equal(t, RangeWeekly, r)
	_, err = ParseRange("fortnightly")
	assert.Error(t, err)
}

func TestAnalytics(t *testing.T) {
	tasks := []model.Task{
		completedAt("a", now.Add(-time.Hour)),
		completedAt("b", now.Add(-48*time.Hour)),
		task("c", model.PriorityUrgent, model.StatusTodo, now.Add(-time.Hour)),
	}
	tasks[2].Category = model.CategoryHealth

	a, err := ComputeAnalytics(tasks, now, RangeDaily, TrendOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Total)
	assert.Equal(t, 2, a.Completed)
	assert.Equal(t, 1, a.Overdue)
	assert.Equal(t, 67, a.ProductivityScore)
	assert.Len(t, a.Trend, 7)
	assert.Equal(t, map[model.Category]int{
		model.CategoryPersonal: 0,
		model.CategoryWork:     2,
		model.CategoryLearning: 0,
		model.CategoryHealth:   1,
	}, a.Breakdown.Categories)
	assert.Equal(t, 2, a.Breakdown.Priorities[model.PriorityMedium])
	assert.Equal(t, 1, a.Breakdown.Priorities[model.PriorityUrgent])
	assert.Equal(t, 0, a.Breakdown.Priorities[model.PriorityLow])

	assert.Equal(t, 0, ProductivityScore(Stats{}))

	_, err = ComputeAnalytics(tasks, now, Range("bogus"), TrendOptions{})
	assert.Error(t, err)
}

func TestCalendar(t *testing.T) {
	tasks := []model.Task{
		task("late", model.PriorityLow, model.StatusTodo, time.Date(2024, 5, 8, 22, 0, 0, 0, time.UTC)),
		task("early", model.PriorityLow, model.StatusCompleted, time.Date(2024, 5, 8, 7, 0, 0, 0, time.UTC)),
		task("next-day", model.PriorityLow, model.StatusTodo, time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)),
		task("june", model.PriorityLow, model.StatusTodo, time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)),
	}
	assert.Equal(t, []string{"early", "late"}, idsOf(OnDay(tasks, now)))

	days := Month(tasks, 2024, time.May, time.UTC)
	require.Len(t, days, 31)
	assert.Equal(t, "2024-05-01", days[0].Date)
	assert.Equal(t, DaySummary{Date: "2024-05-08", Total: 2, Completed: 1}, days[7])
	assert.Equal(t, DaySummary{Date: "2024-05-09", Total: 1}, days[8])
	assert.Equal(t, DaySummary{Date: "2024-05-31"}, days[30])

	assert.Len(t, Month(nil, 2024, time.February, time.UTC), 29)
}
