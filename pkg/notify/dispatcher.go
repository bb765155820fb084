package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/reminder"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
	"github.com/harrisonrobin/taskmaster/pkg/store"
	"github.com/harrisonrobin/taskmaster/pkg/views"
)

// Policy holds the timing knobs of the decision rules.
type Policy struct {
	OverdueInterval  time.Duration
	UpcomingInterval time.Duration
	// ReminderInterval is how often tasks are scanned for reminders.
	ReminderInterval time.Duration
	UpcomingWindow   time.Duration
	ReminderHorizon  time.Duration
	ReminderLead     time.Duration
	DigestHour       int
	DigestMinute     int
	Milestones       []int
}

func DefaultPolicy() Policy {
	return Policy{
		OverdueInterval:  10 * time.Minute,
		UpcomingInterval: time.Hour,
		ReminderInterval: 15 * time.Minute,
		UpcomingWindow:   24 * time.Hour,
		ReminderHorizon:  2 * time.Hour,
		ReminderLead:     30 * time.Minute,
		DigestHour:       9,
		Milestones:       []int{5, 10, 25, 50, 100},
	}
}

// TaskSource is the read side of the store.
type TaskSource interface {
	Tasks() []model.Task
	Get(id string) (model.Task, bool)
}

type Option func(*Dispatcher)

func WithPolicy(p Policy) Option { return func(d *Dispatcher) { d.policy = p } }

func WithLogger(logger *zap.Logger) Option { return func(d *Dispatcher) { d.logger = logger } }

// WithReminders injects a (possibly persisted) reminder table.
func WithReminders(t *reminder.Table) Option { return func(d *Dispatcher) { d.reminders = t } }

type channelState struct {
	Channel
	disabled bool
}

// Dispatcher evaluates the alert rules against the task collection and the
// scheduler's clock. It never mutates tasks.
type Dispatcher struct {
	tasks     TaskSource
	sched     *schedule.Scheduler
	localizer Localizer
	policy    Policy
	logger    *zap.Logger
	reminders *reminder.Table

	mu         sync.Mutex
	channels   []*channelState
	lastDigest string
}

func New(tasks TaskSource, sched *schedule.Scheduler, localizer Localizer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		tasks:     tasks,
		sched:     sched,
		localizer: localizer,
		policy:    DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.reminders == nil {
		d.reminders = reminder.NewTable(nil)
	}
	return d
}

func (d *Dispatcher) AddChannel(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, &channelState{Channel: ch})
}

// RequestPermissions asks every channel that needs it, once. Denied
// channels are disabled; other failures are only logged.
func (d *Dispatcher) RequestPermissions(ctx context.Context) {
	for _, ch := range d.snapshotChannels() {
		pr, ok := ch.Channel.(PermissionRequester)
		if !ok {
			continue
		}
		if err := pr.RequestPermission(ctx); err != nil {
			d.handleChannelError(ch, err)
		}
	}
}

// Emit renders a and hands it to every enabled channel. Delivery is best
// effort.
func (d *Dispatcher) Emit(ctx context.Context, a Alert) {
	title, body := a.Render(d.localizer)
	msg := Message{Title: title, Body: body, Tag: a.Tag(), At: d.sched.Now()}
	for _, ch := range d.snapshotChannels() {
		if err := ch.Send(ctx, msg); err != nil {
			d.handleChannelError(ch, err)
		}
	}
}

func (d *Dispatcher) snapshotChannels() []*channelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*channelState, 0, len(d.channels))
	for _, ch := range d.channels {
		if !ch.disabled {
			out = append(out, ch)
		}
	}
	return out
}

func (d *Dispatcher) handleChannelError(ch *channelState, err error) {
	if errors.Is(err, ErrPermissionDenied) {
		d.mu.Lock()
		ch.disabled = true
		d.mu.Unlock()
		d.logger.Warn("alert channel disabled", zap.String("channel", ch.Name()), zap.Error(err))
		return
	}
	d.logger.Warn("alert delivery failed", zap.String("channel", ch.Name()), zap.Error(err))
}

// CheckOverdue alerts when any task is overdue.
func (d *Dispatcher) CheckOverdue(ctx context.Context, now time.Time) bool {
	n := len(views.Overdue(d.tasks.Tasks(), now))
	if n == 0 {
		return false
	}
	d.Emit(ctx, OverdueAlert{Count: n})
	return true
}

// CheckUpcoming alerts when an unfinished task is due within the upcoming
// window.
func (d *Dispatcher) CheckUpcoming(ctx context.Context, now time.Time) bool {
	n := len(views.Upcoming(d.tasks.Tasks(), now, d.policy.UpcomingWindow))
	if n == 0 {
		return false
	}
	d.Emit(ctx, UpcomingAlert{Count: n})
	return true
}

// SendDailyDigest lists unfinished tasks due on now's date. It sends at
// most once per calendar day.
func (d *Dispatcher) SendDailyDigest(ctx context.Context, now time.Time) bool {
	day := now.Format(time.DateOnly)
	d.mu.Lock()
	if d.lastDigest == day {
		d.mu.Unlock()
		return false
	}
	d.lastDigest = day
	d.mu.Unlock()

	due := views.Active(views.OnDay(d.tasks.Tasks(), now))
	if len(due) == 0 {
		return false
	}
	names := make([]string, len(due))
	for i, t := range due {
		names[i] = t.Name
	}
	d.Emit(ctx, DigestAlert{Names: names})
	return true
}

// ScheduleReminders schedules one reminder, ReminderLead before the
// deadline, for every unfinished task due within ReminderHorizon. Tasks
// that already have a reminder for the same deadline are skipped. It
// returns how many reminders were scheduled.
func (d *Dispatcher) ScheduleReminders(ctx context.Context, now time.Time) int {
	for _, e := range d.reminders.Sweep(now) {
		d.sched.Cancel(ReminderTag(e.TaskID))
	}

	scheduled := 0
	for _, t := range views.Upcoming(d.tasks.Tasks(), now, d.policy.ReminderHorizon) {
		if d.scheduleReminder(t, now) {
			scheduled++
		}
	}
	d.saveReminders(ctx)
	return scheduled
}

func (d *Dispatcher) scheduleReminder(t model.Task, now time.Time) bool {
	fireAt := t.Deadline.Add(-d.policy.ReminderLead)
	if fireAt.Before(now) {
		fireAt = now
	}
	if !d.reminders.Update(t.ID, t.Name, t.Deadline, fireAt) {
		return false
	}
	taskID, deadline := t.ID, t.Deadline
	d.sched.At(ReminderTag(taskID), fireAt, func(ctx context.Context, now time.Time) {
		d.fireReminder(ctx, taskID, deadline)
	})
	d.logger.Debug("reminder scheduled", zap.String("task_id", taskID), zap.Time("fire_at", fireAt))
	return true
}

// fireReminder re-checks the task at fire time so edits made after
// scheduling are honoured.
func (d *Dispatcher) fireReminder(ctx context.Context, taskID string, deadline time.Time) {
	t, ok := d.tasks.Get(taskID)
	if !ok || t.IsCompleted() || !t.Deadline.Equal(deadline) {
		return
	}
	entry, ok := d.reminders.Get(taskID)
	if !ok || entry.Fired || !entry.Deadline.Equal(deadline) {
		return
	}
	d.reminders.MarkFired(taskID)
	d.saveReminders(ctx)
	d.Emit(ctx, ReminderAlert{TaskID: t.ID, TaskName: t.Name})
}

func (d *Dispatcher) saveReminders(ctx context.Context) {
	if err := d.reminders.Save(ctx); err != nil {
		d.logger.Warn("could not save reminder table", zap.Error(err))
	}
}

// OnEvent handles a store mutation: it always sends a mutation alert, a
// milestone alert when a task's completion lifts the completed count onto
// a milestone, and refreshes the task's reminder.
func (d *Dispatcher) OnEvent(e store.Event) {
	ctx := context.Background()
	d.Emit(ctx, MutationAlert{Kind: e.Kind, TaskName: e.Task.Name})

	if becameCompleted(e) {
		completed := views.ComputeStats(d.tasks.Tasks(), d.sched.Now()).Completed
		if d.isMilestone(completed) {
			d.Emit(ctx, MilestoneAlert{Completed: completed})
		}
	}

	if e.Kind == store.EventDeleted || e.Task.IsCompleted() {
		d.reminders.Remove(e.Task.ID)
		d.sched.Cancel(ReminderTag(e.Task.ID))
		d.saveReminders(ctx)
	} else {
		now := d.sched.Now()
		if len(views.Upcoming([]model.Task{e.Task}, now, d.policy.ReminderHorizon)) == 1 && d.scheduleReminder(e.Task, now) {
			d.saveReminders(ctx)
		}
	}
}

func becameCompleted(e store.Event) bool {
	switch e.Kind {
	case store.EventCreated:
		return e.Task.IsCompleted()
	case store.EventUpdated:
		return e.Task.IsCompleted() && (e.Previous == nil || !e.Previous.IsCompleted())
	}
	return false
}

func (d *Dispatcher) isMilestone(n int) bool {
	for _, m := range d.policy.Milestones {
		if n == m {
			return true
		}
	}
	return false
}

// Start registers the periodic rules on the scheduler and runs the overdue
// and reminder rules once right away.
func (d *Dispatcher) Start(ctx context.Context) {
	d.RequestPermissions(ctx)

	d.sched.Every("overdue-check", d.policy.OverdueInterval, func(ctx context.Context, now time.Time) {
		d.CheckOverdue(ctx, now)
	})
	d.sched.Every("upcoming-check", d.policy.UpcomingInterval, func(ctx context.Context, now time.Time) {
		d.CheckUpcoming(ctx, now)
	})
	d.sched.Every("reminder-scan", d.policy.ReminderInterval, func(ctx context.Context, now time.Time) {
		d.ScheduleReminders(ctx, now)
	})
	d.sched.DailyAt("daily-digest", d.policy.DigestHour, d.policy.DigestMinute, func(ctx context.Context, now time.Time) {
		d.SendDailyDigest(ctx, now)
	})

	now := d.sched.Now()
	d.Reschedule(now)
	d.CheckOverdue(ctx, now)
	d.ScheduleReminders(ctx, now)
}

// Reschedule re-arms reminders that were scheduled but not yet sent, for
// instance after a restart with a persisted reminder table.
func (d *Dispatcher) Reschedule(now time.Time) int {
	n := 0
	for _, e := range d.reminders.Pending() {
		if e.Deadline.Before(now) {
			continue
		}
		fireAt := e.FireAt
		if fireAt.Before(now) {
			fireAt = now
		}
		taskID, deadline := e.TaskID, e.Deadline
		d.sched.At(ReminderTag(taskID), fireAt, func(ctx context.Context, now time.Time) {
			d.fireReminder(ctx, taskID, deadline)
		})
		n++
	}
	return n
}
