// Package views derives read-only projections from a task snapshot. Every
// function is pure: the same tasks and the same now give the same result.
package views

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

const (
	// DashboardWindow is how far ahead the dashboard looks for upcoming work.
	DashboardWindow = 7 * 24 * time.Hour
	PriorityLimit   = 6
	UpcomingLimit   = 5
)

type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
	InProgress int `json:"inProgress"`
	Blocked    int `json:"blocked"`
}

func ComputeStats(tasks []model.Task, now time.Time) Stats {
	st := Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case model.StatusCompleted:
			st.Completed++
		case model.StatusInProgress:
			st.InProgress++
		case model.StatusBlocked:
			st.Blocked++
		}
		if t.IsOverdue(now) {
			st.Overdue++
		}
	}
	return st
}

// ByPriority returns a copy ordered by priority rank, then deadline.
// Ties keep their input order.
func ByPriority(tasks []model.Task) []model.Task {
	out := append([]model.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Deadline.Before(out[j].Deadline)
	})
	return out
}

func Overdue(tasks []model.Task, now time.Time) []model.Task {
	return filter(tasks, func(t model.Task) bool { return t.IsOverdue(now) })
}

// Upcoming returns unfinished tasks due in [now, now+window], soonest first.
func Upcoming(tasks []model.Task, now time.Time, window time.Duration) []model.Task {
	end := now.Add(window)
	out := filter(tasks, func(t model.Task) bool {
		return !t.IsCompleted() && !t.Deadline.Before(now) && !t.Deadline.After(end)
	})
	sortByDeadline(out)
	return out
}

// Active returns tasks that are not completed.
func Active(tasks []model.Task) []model.Task {
	return filter(tasks, func(t model.Task) bool { return !t.IsCompleted() })
}

// Take returns at most the first n tasks.
func Take(tasks []model.Task, n int) []model.Task {
	if n < 0 || len(tasks) <= n {
		return tasks
	}
	return tasks[:n]
}

var ErrUnknownView = errors.New("unknown view")

// Names lists the views Select accepts.
var Names = []string{"all", "priority", "active", "overdue", "upcoming", "today"}

// Select applies the named list view. Upcoming uses DashboardWindow.
func Select(name string, tasks []model.Task, now time.Time) ([]model.Task, error) {
	switch name {
	case "", "all":
		return tasks, nil
	case "priority":
		return ByPriority(tasks), nil
	case "active":
		return Active(tasks), nil
	case "overdue":
		return Overdue(tasks, now), nil
	case "upcoming":
		return Upcoming(tasks, now, DashboardWindow), nil
	case "today":
		return OnDay(tasks, now), nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownView, name)
}

type Dashboard struct {
	Stats    Stats        `json:"stats"`
	Priority []model.Task `json:"priority"`
	Upcoming []model.Task `json:"upcoming"`
}

// BuildDashboard assembles the home screen: stats, the first tasks of the
// whole collection in priority order, completed ones included, and what is
// due this week.
func BuildDashboard(tasks []model.Task, now time.Time) Dashboard {
	return Dashboard{
		Stats:    ComputeStats(tasks, now),
		Priority: Take(ByPriority(tasks), PriorityLimit),
		Upcoming: Take(Upcoming(tasks, now, DashboardWindow), UpcomingLimit),
	}
}

func filter(tasks []model.Task, keep func(model.Task) bool) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortByDeadline(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Deadline.Before(tasks[j].Deadline)
	})
}
