package taskwarrior

import (
	"strings"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

var priorities = map[string]model.Priority{
	"H": model.PriorityHigh,
	"M": model.PriorityMedium,
	"L": model.PriorityLow,
}

// ToDraft maps a Taskwarrior task onto a new task. Deleted and recurring
// templates, and tasks with neither due nor scheduled date, are skipped.
// Taskwarrior dependencies refer to UUIDs that have no counterpart and
// are dropped.
func ToDraft(t Task) (model.Draft, bool) {
	if t.Status == StatusDeleted || t.Status == StatusRecurring || strings.TrimSpace(t.Description) == "" {
		return model.Draft{}, false
	}

	var deadline Timestamp
	switch {
	case t.Due.Set():
		deadline = *t.Due
	case t.Scheduled.Set():
		deadline = *t.Scheduled
	default:
		return model.Draft{}, false
	}

	d := model.Draft{
		Name:        strings.TrimSpace(t.Description),
		Description: notes(t.Annotations),
		Priority:    priorityOf(t),
		Category:    categoryOf(t),
		Deadline:    deadline.Time,
		Status:      statusOf(t),
		Tags:        append([]string(nil), t.Tags...),
	}
	if t.Est != "" {
		if _, err := model.ParseEffort(t.Est); err == nil {
			d.Effort = t.Est
		}
	}
	return d, true
}

func statusOf(t Task) model.Status {
	switch {
	case t.Status == StatusCompleted:
		return model.StatusCompleted
	case t.Status == StatusWaiting:
		return model.StatusBlocked
	case t.Start.Set():
		return model.StatusInProgress
	}
	return model.StatusTodo
}

// priorityOf maps H, M and L. A high priority task tagged "next" is urgent.
func priorityOf(t Task) model.Priority {
	p, ok := priorities[strings.ToUpper(t.Priority)]
	if !ok {
		return model.PriorityMedium
	}
	if p == model.PriorityHigh {
		for _, tag := range t.Tags {
			if tag == "next" {
				return model.PriorityUrgent
			}
		}
	}
	return p
}

// categoryOf uses the top-level project ("work.reports" gives work), then
// the tags, and falls back to personal.
func categoryOf(t Task) model.Category {
	top, _, _ := strings.Cut(strings.ToLower(t.Project), ".")
	if c := model.Category(top); c.Valid() {
		return c
	}
	for _, tag := range t.Tags {
		if c := model.Category(strings.ToLower(tag)); c.Valid() {
			return c
		}
	}
	return model.CategoryPersonal
}

func notes(annotations []Annotation) string {
	lines := make([]string, 0, len(annotations))
	for _, a := range annotations {
		if s := strings.TrimSpace(a.Description); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}
