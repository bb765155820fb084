package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
	"github.com/harrisonrobin/taskmaster/pkg/storage"
	"github.com/harrisonrobin/taskmaster/pkg/store"
	"github.com/harrisonrobin/taskmaster/pkg/translator"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Message
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *recordingChannel) tagged(tag string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.sent {
		if m.Tag == tag {
			out = append(out, m)
		}
	}
	return out
}

func (c *recordingChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

type deniedChannel struct{ recordingChannel }

func (c *deniedChannel) RequestPermission(context.Context) error { return ErrPermissionDenied }

type fixture struct {
	clock *clock
	store *store.Store
	sched *schedule.Scheduler
	disp  *Dispatcher
	ch    *recordingChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{now: time.Date(2024, 5, 8, 8, 0, 0, 0, time.UTC)}
	n := 0
	s := store.New(storage.NewMemoryKV(), store.WithClock(c.Now), store.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("t%d", n)
	}))
	s.Load(context.Background())
	sched := schedule.New(schedule.WithClock(c.Now))
	d := New(s, sched, translator.New(translator.Config{}).For(translator.LanguageEn))
	ch := &recordingChannel{name: "rec"}
	d.AddChannel(ch)
	s.Subscribe(d.OnEvent)
	return &fixture{clock: c, store: s, sched: sched, disp: d, ch: ch}
}

func (f *fixture) create(t *testing.T, name string, deadline time.Time, status model.Status) model.Task {
	t.Helper()
	task, err := f.store.Create(context.Background(), model.Draft{
		Name:     name,
		Priority: model.PriorityMedium,
		Category: model.CategoryPersonal,
		Deadline: deadline,
		Status:   status,
	})
	require.NoError(t, err)
	return task
}

func TestCheckOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	assert.False(t, f.disp.CheckOverdue(ctx, now))

	f.create(t, "late", now.Add(-time.Hour), model.StatusTodo)
	f.create(t, "later", now.Add(-2*time.Hour), model.StatusInProgress)
	f.create(t, "done", now.Add(-time.Hour), model.StatusCompleted)

	require.True(t, f.disp.CheckOverdue(ctx, now))
	msgs := f.ch.tagged(TagOverdue)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Overdue Tasks Alert!", msgs[0].Title)
	assert.Equal(t, "You have 2 overdue tasks. Please review them.", msgs[0].Body)
}

func TestCheckUpcoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.create(t, "next week", now.Add(72*time.Hour), model.StatusTodo)
	assert.False(t, f.disp.CheckUpcoming(ctx, now))

	f.create(t, "tonight", now.Add(12*time.Hour), model.StatusTodo)
	require.True(t, f.disp.CheckUpcoming(ctx, now))
	msgs := f.ch.tagged(TagUpcoming)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "1 task due")
}

func TestDailyDigestOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.create(t, "Pay rent", now.Add(4*time.Hour), model.StatusTodo)
	f.create(t, "Already done", now.Add(5*time.Hour), model.StatusCompleted)
	f.create(t, "Tomorrow", now.Add(24*time.Hour), model.StatusTodo)

	require.True(t, f.disp.SendDailyDigest(ctx, now))
	assert.False(t, f.disp.SendDailyDigest(ctx, now.Add(time.Hour)), "second digest on the same day")

	msgs := f.ch.tagged(TagDigest)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Daily Task Digest", msgs[0].Title)
	assert.Equal(t, "Good morning! You have 1 task scheduled for today.\n• Pay rent", msgs[0].Body)

	assert.True(t, f.disp.SendDailyDigest(ctx, now.Add(24*time.Hour)))
}

func TestReminderScheduledOnceAndFiresBeforeDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	soon := f.create(t, "Call dentist", now.Add(90*time.Minute), model.StatusTodo)
	f.create(t, "Later", now.Add(3*time.Hour), model.StatusTodo)
	f.ch.reset()

	assert.Equal(t, 0, f.disp.ScheduleReminders(ctx, now), "creation already scheduled the reminder")
	at, ok := f.sched.Pending(ReminderTag(soon.ID))
	require.True(t, ok)
	assert.Equal(t, soon.Deadline.Add(-30*time.Minute), at)

	f.sched.RunDue(ctx, at.Add(-time.Second))
	assert.Empty(t, f.ch.tagged(ReminderTag(soon.ID)))

	f.sched.RunDue(ctx, at)
	msgs := f.ch.tagged(ReminderTag(soon.ID))
	require.Len(t, msgs, 1)
	assert.Equal(t, "Task Reminder", msgs[0].Title)
	assert.Equal(t, `"Call dentist" is due soon! Time to focus.`, msgs[0].Body)

	assert.Equal(t, 0, f.disp.ScheduleReminders(ctx, at), "a fired reminder is not scheduled again")
	f.sched.RunDue(ctx, at.Add(time.Hour))
	assert.Len(t, f.ch.tagged(ReminderTag(soon.ID)), 1)
}

func TestReminderScanPicksUpTasksEnteringHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	later := f.create(t, "Later", now.Add(3*time.Hour), model.StatusTodo)
	_, ok := f.sched.Pending(ReminderTag(later.ID))
	assert.False(t, ok)

	scan := now.Add(90 * time.Minute)
	assert.Equal(t, 1, f.disp.ScheduleReminders(ctx, scan))
	assert.Equal(t, 0, f.disp.ScheduleReminders(ctx, scan))
	at, ok := f.sched.Pending(ReminderTag(later.ID))
	require.True(t, ok)
	assert.Equal(t, later.Deadline.Add(-30*time.Minute), at)
}

func TestReminderInsideLeadFiresImmediately(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	task := f.create(t, "Now-ish", now.Add(10*time.Minute), model.StatusTodo)

	at, ok := f.sched.Pending(ReminderTag(task.ID))
	require.True(t, ok)
	assert.Equal(t, now, at)
}

func TestReminderSkippedWhenTaskCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	task := f.create(t, "Call dentist", now.Add(90*time.Minute), model.StatusTodo)

	_, err := f.store.Update(ctx, task.ID, model.SetStatus(model.StatusCompleted))
	require.NoError(t, err)
	_, ok := f.sched.Pending(ReminderTag(task.ID))
	assert.False(t, ok)

	f.sched.RunDue(ctx, task.Deadline)
	assert.Empty(t, f.ch.tagged(ReminderTag(task.ID)))
}

func TestReminderFollowsMovedDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	task := f.create(t, "Call dentist", now.Add(90*time.Minute), model.StatusTodo)

	moved := now.Add(100 * time.Minute)
	_, err := f.store.Update(ctx, task.ID, model.Patch{Deadline: &moved})
	require.NoError(t, err)

	at, ok := f.sched.Pending(ReminderTag(task.ID))
	require.True(t, ok)
	assert.Equal(t, moved.Add(-30*time.Minute), at)

	f.sched.RunDue(ctx, moved)
	assert.Len(t, f.ch.tagged(ReminderTag(task.ID)), 1)
}

func TestMutationAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.create(t, "Write report", f.clock.Now().Add(48*time.Hour), model.StatusTodo)
	_, err := f.store.Update(ctx, task.ID, model.SetStatus(model.StatusInProgress))
	require.NoError(t, err)
	_, err = f.store.Delete(ctx, task.ID)
	require.NoError(t, err)
	_, err = f.store.Delete(ctx, task.ID)
	require.ErrorIs(t, err, model.ErrTaskNotFound)

	msgs := f.ch.tagged(TagTaskUpdate)
	require.Len(t, msgs, 3)
	assert.Equal(t, "Task Updated", msgs[0].Title)
	assert.Equal(t, "Write report has been created", msgs[0].Body)
	assert.Equal(t, "Write report has been updated", msgs[1].Body)
	assert.Equal(t, "Write report has been deleted", msgs[2].Body)
}

func TestMilestoneFiresOnlyOnTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var tasks []model.Task
	for i := 0; i < 6; i++ {
		tasks = append(tasks, f.create(t, fmt.Sprintf("task %d", i), f.clock.Now().Add(48*time.Hour), model.StatusTodo))
	}
	complete := func(id string) {
		_, err := f.store.Update(ctx, id, model.SetStatus(model.StatusCompleted))
		require.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		complete(tasks[i].ID)
	}
	assert.Empty(t, f.ch.tagged(TagMilestone))

	complete(tasks[4].ID)
	msgs := f.ch.tagged(TagMilestone)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Congratulations! You've completed 5 tasks. Keep up the great work!", msgs[0].Body)

	complete(tasks[5].ID)
	assert.Len(t, f.ch.tagged(TagMilestone), 1, "6 is not a milestone")

	_, err := f.store.Update(ctx, tasks[5].ID, model.SetStatus(model.StatusTodo))
	require.NoError(t, err)
	assert.Len(t, f.ch.tagged(TagMilestone), 1, "dropping back to 5 is not a milestone")

	name := "renamed"
	_, err = f.store.Update(ctx, tasks[0].ID, model.Patch{Name: &name})
	require.NoError(t, err)
	assert.Len(t, f.ch.tagged(TagMilestone), 1, "editing a completed task is not a completion")
}

func TestPermissionDeniedDisablesChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	denied := &deniedChannel{recordingChannel{name: "denied"}}
	f.disp.AddChannel(denied)
	flaky := &recordingChannel{name: "flaky", err: errors.New("socket closed")}
	f.disp.AddChannel(flaky)
	revoked := &recordingChannel{name: "revoked", err: fmt.Errorf("send: %w", ErrPermissionDenied)}
	f.disp.AddChannel(revoked)

	f.disp.RequestPermissions(ctx)
	f.disp.Emit(ctx, OverdueAlert{Count: 1})
	f.disp.Emit(ctx, OverdueAlert{Count: 2})

	assert.Len(t, f.ch.tagged(TagOverdue), 2)
	assert.Empty(t, denied.tagged(TagOverdue))

	states := f.disp.snapshotChannels()
	var names []string
	for _, s := range states {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"rec", "flaky"}, names)
}

func TestStartRegistersRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	f.create(t, "late", now.Add(-time.Hour), model.StatusTodo)

	f.disp.Start(ctx)
	assert.Len(t, f.ch.tagged(TagOverdue), 1, "overdue is checked on start")
	for _, name := range []string{"overdue-check", "upcoming-check", "reminder-scan", "daily-digest"} {
		_, ok := f.sched.Pending(name)
		assert.True(t, ok, name)
	}

	f.sched.RunDue(ctx, now.Add(10*time.Minute))
	assert.Len(t, f.ch.tagged(TagOverdue), 2)

	digestAt, _ := f.sched.Pending("daily-digest")
	assert.Equal(t, time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC), digestAt)
}

func TestRescheduleRestoresPendingReminders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	task := f.create(t, "Call dentist", now.Add(90*time.Minute), model.StatusTodo)
	f.disp.ScheduleReminders(ctx, now)

	f.sched.Clear()
	assert.Equal(t, 1, f.disp.Reschedule(now))
	f.sched.RunDue(ctx, task.Deadline.Add(-30*time.Minute))
	assert.Len(t, f.ch.tagged(ReminderTag(task.ID)), 1)
}

func TestDesktopChannel(t *testing.T) {
	ch := NewDesktopChannel("definitely-not-a-real-notifier")
	err := ch.RequestPermission(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var gotName string
	var gotArgs []string
	ch.run = func(_ context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		return nil
	}
	require.NoError(t, ch.Send(context.Background(), Message{Title: "T", Body: "B", Tag: TagMilestone}))
	assert.Equal(t, "definitely-not-a-real-notifier", gotName)
	assert.Contains(t, gotArgs, "--hint=string:x-dunst-stack-tag:milestone")
	assert.Equal(t, []string{"T", "B"}, gotArgs[len(gotArgs)-2:])
}
