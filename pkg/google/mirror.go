package google

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/index"
	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/overdue"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
	"github.com/harrisonrobin/taskmaster/pkg/store"
)

// DefaultSweep is how often mirrored events are checked for a passed
// deadline.
const DefaultSweep = 5 * time.Minute

const (
	sweepJob  = "calendar-overdue-sweep"
	queueSize = 256
)

// TaskGetter resolves a task by id.
type TaskGetter interface {
	Get(id string) (model.Task, bool)
}

type MirrorOption func(*Mirror)

func WithClock(now func() time.Time) MirrorOption { return func(m *Mirror) { m.now = now } }

func WithLogger(logger *zap.Logger) MirrorOption { return func(m *Mirror) { m.logger = logger } }

// Mirror keeps a calendar in step with the store. Store events are queued
// and applied by Run, so a slow API never blocks a mutation.
type Mirror struct {
	client *CalendarClient
	tasks  TaskGetter
	index  *index.EventIndex
	sweep  *overdue.Table
	now    func() time.Time
	logger *zap.Logger
	queue  chan store.Event
}

// NewMirror returns a mirror writing through client. idx and sweep may be
// nil.
func NewMirror(client *CalendarClient, tasks TaskGetter, idx *index.EventIndex, sweep *overdue.Table, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		client: client,
		tasks:  tasks,
		index:  idx,
		sweep:  sweep,
		now:    time.Now,
		logger: zap.NewNop(),
		queue:  make(chan store.Event, queueSize),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnEvent queues e. It is meant for store.Subscribe and never blocks; when
// the queue is full the event is dropped and picked up by the next full
// sync.
func (m *Mirror) OnEvent(e store.Event) {
	select {
	case m.queue <- e:
	default:
		m.logger.Warn("calendar queue full, dropping event",
			zap.String("task", e.Task.ID), zap.String("kind", string(e.Kind)))
	}
}

// Run applies queued events until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-m.queue:
			if err := m.Apply(ctx, e); err != nil {
				m.logger.Error("calendar sync failed",
					zap.String("task", e.Task.ID), zap.String("kind", string(e.Kind)), zap.Error(err))
			}
		}
	}
}

// Apply mirrors one store event. Deleted and blocked tasks lose their
// event.
func (m *Mirror) Apply(ctx context.Context, e store.Event) error {
	defer m.save(ctx)
	if e.Kind == store.EventDeleted || e.Task.Status == model.StatusBlocked {
		return m.remove(ctx, e.Task.ID)
	}
	return m.sync(ctx, e.Task)
}

func (m *Mirror) sync(ctx context.Context, t model.Task) error {
	now := m.now()
	event, err := m.client.SyncEvent(ctx, t, now)
	if err != nil {
		return err
	}
	m.track(t, event.Id, now)
	return nil
}

func (m *Mirror) remove(ctx context.Context, taskID string) error {
	if m.sweep != nil {
		m.sweep.Remove(taskID)
	}
	return m.client.DeleteTask(ctx, taskID)
}

// track keeps tasks that will turn overdue in the sweep table.
func (m *Mirror) track(t model.Task, eventID string, now time.Time) {
	if m.sweep == nil {
		return
	}
	if t.IsCompleted() || t.Status == model.StatusInProgress {
		m.sweep.Remove(t.ID)
		return
	}
	m.sweep.Update(t.ID, eventID, t.Name, t.Deadline, now)
}

// SyncAll mirrors every task and returns how many failed.
func (m *Mirror) SyncAll(ctx context.Context, tasks []model.Task) int {
	defer m.save(ctx)
	failed := 0
	for _, t := range tasks {
		var err error
		if t.Status == model.StatusBlocked {
			err = m.remove(ctx, t.ID)
		} else {
			err = m.sync(ctx, t)
		}
		if err != nil {
			failed++
			m.logger.Error("calendar sync failed", zap.String("task", t.ID), zap.Error(err))
		}
	}
	return failed
}

// Sweep re-syncs the events whose deadline passed since they were last
// written, so they pick up the overdue marker.
func (m *Mirror) Sweep(ctx context.Context) int {
	if m.sweep == nil {
		return 0
	}
	defer m.save(ctx)
	swept := 0
	for _, entry := range m.sweep.Sweep(m.now()) {
		t, ok := m.tasks.Get(entry.TaskID)
		if !ok {
			continue
		}
		if err := m.sync(ctx, t); err != nil {
			m.logger.Warn("overdue sweep could not update event",
				zap.String("task", entry.TaskID), zap.String("event", entry.EventID), zap.Error(err))
			continue
		}
		swept++
	}
	return swept
}

// Start registers the periodic overdue sweep on sched.
func (m *Mirror) Start(sched *schedule.Scheduler, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweep
	}
	sched.Every(sweepJob, interval, func(ctx context.Context, _ time.Time) {
		m.Sweep(ctx)
	})
}

func (m *Mirror) save(ctx context.Context) {
	if m.index != nil {
		if err := m.index.Save(ctx); err != nil {
			m.logger.Warn("failed to save event index", zap.Error(err))
		}
	}
	if m.sweep != nil {
		if err := m.sweep.Save(ctx); err != nil {
			m.logger.Warn("failed to save overdue sweep table", zap.Error(err))
		}
	}
}
