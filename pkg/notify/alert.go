// Package notify decides when to alert the user and fans alerts out to
// delivery channels.
package notify

import (
	"strings"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/store"
)

// Tags identify alerts of the same kind. A channel keeps at most one
// active alert per tag.
const (
	TagOverdue        = "overdue-tasks"
	TagUpcoming       = "upcoming-tasks"
	TagDigest         = "daily-digest"
	TagTaskUpdate     = "task-update"
	TagMilestone      = "milestone"
	TagBreakTime      = "break-time"
	TagFocusSession   = "focus-session"
	reminderTagPrefix = "reminder-"
)

// ReminderTag is the tag of the reminder for one task.
func ReminderTag(taskID string) string { return reminderTagPrefix + taskID }

// Message is what a channel delivers.
type Message struct {
	Title string    `json:"title"`
	Body  string    `json:"body"`
	Tag   string    `json:"tag"`
	At    time.Time `json:"at"`
}

// Localizer renders message ids; see translator.Localizer.
type Localizer interface {
	Localize(id string, data map[string]any, count any) string
}

// Alert is one kind of user-facing alert. Each kind carries only the
// fields it needs.
type Alert interface {
	Tag() string
	Render(l Localizer) (title, body string)
}

type OverdueAlert struct{ Count int }

func (a OverdueAlert) Tag() string { return TagOverdue }

func (a OverdueAlert) Render(l Localizer) (string, string) {
	return l.Localize("overdueTitle", nil, nil),
		l.Localize("overdueBody", map[string]any{"Count": a.Count}, a.Count)
}

type UpcomingAlert struct{ Count int }

func (a UpcomingAlert) Tag() string { return TagUpcoming }

func (a UpcomingAlert) Render(l Localizer) (string, string) {
	return l.Localize("upcomingTitle", nil, nil),
		l.Localize("upcomingBody", map[string]any{"Count": a.Count}, a.Count)
}

// DigestAlert lists the names of tasks due today.
type DigestAlert struct{ Names []string }

func (a DigestAlert) Tag() string { return TagDigest }

func (a DigestAlert) Render(l Localizer) (string, string) {
	var b strings.Builder
	b.WriteString(l.Localize("digestBody", map[string]any{"Count": len(a.Names)}, len(a.Names)))
	for _, name := range a.Names {
		b.WriteString("\n• ")
		b.WriteString(name)
	}
	return l.Localize("digestTitle", nil, nil), b.String()
}

type ReminderAlert struct {
	TaskID   string
	TaskName string
}

func (a ReminderAlert) Tag() string { return ReminderTag(a.TaskID) }

func (a ReminderAlert) Render(l Localizer) (string, string) {
	return l.Localize("reminderTitle", nil, nil),
		l.Localize("reminderBody", map[string]any{"Name": a.TaskName}, nil)
}

type MilestoneAlert struct{ Completed int }

func (a MilestoneAlert) Tag() string { return TagMilestone }

func (a MilestoneAlert) Render(l Localizer) (string, string) {
	return l.Localize("milestoneTitle", nil, nil),
		l.Localize("milestoneBody", map[string]any{"Count": a.Completed}, nil)
}

// MutationAlert reports a create, update or delete.
type MutationAlert struct {
	Kind     store.EventKind
	TaskName string
}

func (a MutationAlert) Tag() string { return TagTaskUpdate }

func (a MutationAlert) Render(l Localizer) (string, string) {
	var action string
	switch a.Kind {
	case store.EventCreated:
		action = l.Localize("actionCreated", nil, nil)
	case store.EventDeleted:
		action = l.Localize("actionDeleted", nil, nil)
	default:
		action = l.Localize("actionUpdated", nil, nil)
	}
	return l.Localize("taskUpdateTitle", nil, nil),
		l.Localize("taskUpdateBody", map[string]any{"Name": a.TaskName, "Action": action}, nil)
}

// WorkSessionDoneAlert fires when a focus work session ends.
type WorkSessionDoneAlert struct{ LongBreak bool }

func (a WorkSessionDoneAlert) Tag() string { return TagBreakTime }

func (a WorkSessionDoneAlert) Render(l Localizer) (string, string) {
	body := "focusWorkDoneShort"
	if a.LongBreak {
		body = "focusWorkDoneLong"
	}
	return l.Localize("focusWorkDoneTitle", nil, nil), l.Localize(body, nil, nil)
}

// BreakOverAlert fires when a focus break ends.
type BreakOverAlert struct{}

func (BreakOverAlert) Tag() string { return TagFocusSession }

func (BreakOverAlert) Render(l Localizer) (string, string) {
	return l.Localize("focusBreakOverTitle", nil, nil), l.Localize("focusBreakOverBody", nil, nil)
}
