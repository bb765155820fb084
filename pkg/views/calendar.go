package views

import (
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// OnDay returns tasks whose deadline falls on day's calendar date in day's
// location, soonest first.
func OnDay(tasks []model.Task, day time.Time) []model.Task {
	start := startOfDay(day)
	end := start.AddDate(0, 0, 1)
	out := filter(tasks, func(t model.Task) bool {
		d := t.Deadline.In(day.Location())
		return !d.Before(start) && d.Before(end)
	})
	sortByDeadline(out)
	return out
}

type DaySummary struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Month summarizes every day of the given month in loc.
func Month(tasks []model.Task, year int, month time.Month, loc *time.Location) []DaySummary {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	next := first.AddDate(0, 1, 0)

	var days []DaySummary
	index := make(map[string]int)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		index[key] = len(days)
		days = append(days, DaySummary{Date: key})
	}
	for _, t := range tasks {
		i, ok := index[t.Deadline.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		days[i].Total++
		if t.IsCompleted() {
			days[i].Completed++
		}
	}
	return days
}
