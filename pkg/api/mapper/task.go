package mapper

import (
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/focus"
	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/views"
)

func ToTaskItems(tasks []model.Task, now time.Time) []dto.TaskItem {
	items := make([]dto.TaskItem, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, ToTaskItem(task, now))
	}
	return items
}

func ToTaskItem(task model.Task, now time.Time) dto.TaskItem {
	item := dto.TaskItem{
		ID:           task.ID,
		Name:         task.Name,
		Description:  task.Description,
		Priority:     string(task.Priority),
		Category:     string(task.Category),
		Deadline:     task.Deadline.Format(time.RFC3339),
		Status:       string(task.Status),
		Effort:       task.Effort,
		Tags:         task.Tags,
		Dependencies: task.Dependencies,
		Overdue:      task.IsOverdue(now),
		CreatedAt:    task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    task.UpdatedAt.Format(time.RFC3339),
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.Dependencies == nil {
		item.Dependencies = []string{}
	}
	return item
}

func ToDashboard(d views.Dashboard, now time.Time) dto.Dashboard {
	return dto.Dashboard{
		Stats:    d.Stats,
		Priority: ToTaskItems(d.Priority, now),
		Upcoming: ToTaskItems(d.Upcoming, now),
	}
}

func ToFocusState(s focus.State) dto.FocusState {
	return dto.FocusState{
		Phase:            string(s.Phase),
		Session:          s.Session,
		Running:          s.Running,
		Paused:           s.Paused,
		RemainingSeconds: int(s.Remaining.Round(time.Second) / time.Second),
		TotalSeconds:     int(s.Total / time.Second),
		Progress:         s.Progress,
		Settings:         ToFocusSettings(s.Settings),
	}
}

func ToFocusSettings(s focus.Settings) dto.FocusSettings {
	return dto.FocusSettings{
		WorkMinutes:            int(s.Work / time.Minute),
		ShortBreakMinutes:      int(s.ShortBreak / time.Minute),
		LongBreakMinutes:       int(s.LongBreak / time.Minute),
		SessionsUntilLongBreak: s.SessionsUntilLongBreak,
	}
}

func FromFocusSettings(s dto.FocusSettings) focus.Settings {
	return focus.Settings{
		Work:                   time.Duration(s.WorkMinutes) * time.Minute,
		ShortBreak:             time.Duration(s.ShortBreakMinutes) * time.Minute,
		LongBreak:              time.Duration(s.LongBreakMinutes) * time.Minute,
		SessionsUntilLongBreak: s.SessionsUntilLongBreak,
	}
}
