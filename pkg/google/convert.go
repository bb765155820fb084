package google

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// TaskIDProperty is the private extended property linking an event to its
// task.
const TaskIDProperty = "taskmaster_id"

const (
	prefixCompleted = "✓"
	prefixStarted   = "‣"
	prefixOverdue   = "!"

	defaultDuration = time.Hour
)

// Google Calendar event color ids.
var categoryColors = map[model.Category]string{
	model.CategoryPersonal: "2",  // sage
	model.CategoryWork:     "9",  // blueberry
	model.CategoryLearning: "5",  // banana
	model.CategoryHealth:   "10", // basil
}

const completedColor = "8" // graphite

// Summary is the event title for t, prefixed by its state.
func Summary(t model.Task, now time.Time) string {
	prefix := ""
	switch {
	case t.IsCompleted():
		prefix = prefixCompleted
	case t.Status == model.StatusInProgress:
		prefix = prefixStarted
	case t.IsOverdue(now):
		prefix = prefixOverdue
	}
	if prefix == "" {
		return t.Name
	}
	return prefix + " " + t.Name
}

func colorFor(t model.Task) string {
	if t.IsCompleted() {
		return completedColor
	}
	if id, ok := categoryColors[t.Category]; ok {
		return id
	}
	return "1"
}

// ConvertTaskToEvent builds the event mirroring t. The event ends at the
// deadline and starts one effort earlier.
func ConvertTaskToEvent(t model.Task, now time.Time) (*calendar.Event, error) {
	if t.ID == "" {
		return nil, fmt.Errorf("could not convert task without id")
	}
	if t.Deadline.IsZero() {
		return nil, fmt.Errorf("task has no deadline: %s", t.ID)
	}

	effort, err := model.ParseEffort(t.Effort)
	if err != nil || effort <= 0 {
		effort = defaultDuration
	}
	end := t.Deadline
	start := end.Add(-effort)

	return &calendar.Event{
		Summary:     Summary(t, now),
		ColorId:     colorFor(t),
		Description: describe(t, effort),
		Start:       &calendar.EventDateTime{DateTime: start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.UTC().Format(time.RFC3339)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: t.ID},
		},
	}, nil
}

func describe(t model.Task, effort time.Duration) string {
	var b strings.Builder

	if len(t.Tags) > 0 {
		for _, tag := range t.Tags {
			fmt.Fprintf(&b, "#%s ", tag)
		}
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Status: %s\n", t.Status)
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Category: %s\n", t.Category)
	fmt.Fprintf(&b, "ID: %s\n", t.ID)

	b.WriteString("\nAccounting:\n")
	fmt.Fprintf(&b, "• estimated: %s\n", effort)
	if len(t.Dependencies) > 0 {
		fmt.Fprintf(&b, "• depends on: %s\n", strings.Join(t.Dependencies, ", "))
	}

	if desc := strings.TrimSpace(t.Description); desc != "" {
		b.WriteString("\nNotes:\n")
		for _, line := range strings.Split(desc, "\n") {
			fmt.Fprintf(&b, "‣ %s\n", line)
		}
	}
	return b.String()
}

// EventNeedsUpdate returns a patch carrying the fields of target that
// differ from existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}

	sameTimes, err := sameSpan(existing, target)
	if err != nil {
		return nil, err
	}
	if !sameTimes {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameSpan(a, b *calendar.Event) (bool, error) {
	if a.Start == nil || a.End == nil || a.Start.DateTime == "" || a.End.DateTime == "" {
		return false, nil
	}
	aStart, err := time.Parse(time.RFC3339, a.Start.DateTime)
	if err != nil {
		return false, err
	}
	aEnd, err := time.Parse(time.RFC3339, a.End.DateTime)
	if err != nil {
		return false, err
	}
	bStart, err := time.Parse(time.RFC3339, b.Start.DateTime)
	if err != nil {
		return false, err
	}
	bEnd, err := time.Parse(time.RFC3339, b.End.DateTime)
	if err != nil {
		return false, err
	}
	return aStart.Equal(bStart) && aEnd.Equal(bEnd), nil
}
