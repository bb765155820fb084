// Package schedule runs named jobs at fixed times: one-shot, periodic or
// daily at a wall-clock time. Entries live in a queue ordered by fire time.
// RunDue drives the queue from any clock, Run drives it from the real one.
package schedule

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job runs when its entry comes due. now is the time the queue was driven
// with, not the entry's fire time.
type Job func(ctx context.Context, now time.Time)

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func WithLogger(logger *zap.Logger) Option { return func(s *Scheduler) { s.logger = logger } }

type Scheduler struct {
	mu     sync.Mutex
	queue  queue
	byName map[string]*entry
	seq    uint64
	now    func() time.Time
	logger *zap.Logger
	wake   chan struct{}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		byName: make(map[string]*entry),
		now:    time.Now,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Now reports the scheduler's clock.
func (s *Scheduler) Now() time.Time { return s.now() }

// At schedules job once at t, replacing any entry with the same name.
func (s *Scheduler) At(name string, t time.Time, job Job) {
	s.push(&entry{name: name, at: t, job: job})
}

// After schedules job once, d from now.
func (s *Scheduler) After(name string, d time.Duration, job Job) {
	s.At(name, s.now().Add(d), job)
}

// Every runs job every interval, first one interval from now.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	if interval <= 0 {
		s.logger.Warn("ignoring periodic job with non-positive interval", zap.String("job", name), zap.Duration("interval", interval))
		return
	}
	s.push(&entry{
		name: name,
		at:   s.now().Add(interval),
		job:  job,
		next: func(prev time.Time) time.Time { return prev.Add(interval) },
	})
}

// DailyAt runs job every day at hour:minute in the clock's location.
func (s *Scheduler) DailyAt(name string, hour, minute int, job Job) {
	s.push(&entry{
		name: name,
		at:   NextDaily(s.now(), hour, minute),
		job:  job,
		next: func(prev time.Time) time.Time { return NextDaily(prev, hour, minute) },
	})
}

// NextDaily returns the first hour:minute strictly after t, in t's location.
func NextDaily(t time.Time, hour, minute int) time.Time {
	y, m, d := t.Date()
	next := time.Date(y, m, d, hour, minute, 0, 0, t.Location())
	if !next.After(t) {
		next = time.Date(y, m, d+1, hour, minute, 0, 0, t.Location())
	}
	return next
}

// Cancel removes the named entry. It reports whether one was pending.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byName[name]
	if !ok {
		return false
	}
	heap.Remove(&s.queue, e.index)
	delete(s.byName, name)
	return true
}

// Pending returns the next fire time of the named entry.
func (s *Scheduler) Pending(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byName[name]; ok {
		return e.at, true
	}
	return time.Time{}, false
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Clear drops every pending entry.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.byName = make(map[string]*entry)
}

// RunDue runs every entry due at or before now, earliest first, and
// returns how many ran. Periodic entries are re-queued for their next time
// after now; missed periods are skipped, not replayed. Jobs run without the
// lock held, so they may schedule or cancel entries; anything they schedule
// runs on a later call.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []*entry
	for s.queue.Len() > 0 && !s.queue[0].at.After(now) {
		e := heap.Pop(&s.queue).(*entry)
		delete(s.byName, e.name)
		due = append(due, e)
	}
	for _, e := range due {
		if e.next == nil {
			continue
		}
		at := e.next(e.at)
		for !at.After(now) {
			at = e.next(at)
		}
		if _, taken := s.byName[e.name]; !taken {
			s.insert(&entry{name: e.name, at: at, job: e.job, next: e.next})
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		s.logger.Debug("running scheduled job", zap.String("job", e.name), zap.Time("due", e.at))
		e.job(ctx, now)
	}
	return len(due)
}

// Run drives the queue from the scheduler's clock until ctx is done, then
// clears every pending entry.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.Clear()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		s.RunDue(ctx, s.now())
		timer.Reset(s.untilNext())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		case <-s.wake:
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return time.Hour
	}
	d := s.queue[0].at.Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Scheduler) push(e *entry) {
	s.mu.Lock()
	if old, ok := s.byName[e.name]; ok {
		heap.Remove(&s.queue, old.index)
	}
	s.insert(e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// insert must be called with mu held.
func (s *Scheduler) insert(e *entry) {
	s.seq++
	e.seq = s.seq
	heap.Push(&s.queue, e)
	s.byName[e.name] = e
}

type entry struct {
	name  string
	at    time.Time
	job   Job
	next  func(prev time.Time) time.Time
	seq   uint64
	index int
}

// queue is a min-heap on (at, seq).
type queue []*entry

func (q queue) Len() int { return len(q) }

func (q queue) Less(i, j int) bool {
	if !q[i].at.Equal(q[j].at) {
		return q[i].at.Before(q[j].at)
	}
	return q[i].seq < q[j].seq
}

func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
