// Package focus implements the pomodoro focus timer: alternating work
// sessions and breaks, with a long break after every few sessions.
package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/notify"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
)

var (
	ErrInvalidSettings = errors.New("invalid focus settings")
	ErrInvalidState    = errors.New("focus timer cannot do that in its current state")
)

// phaseJob is the scheduler entry that ends the current phase.
const phaseJob = "focus-phase-end"

type Phase string

const (
	PhaseWork       Phase = "work"
	PhaseShortBreak Phase = "short_break"
	PhaseLongBreak  Phase = "long_break"
)

func (p Phase) IsBreak() bool { return p != PhaseWork }

type Settings struct {
	Work                   time.Duration `json:"work"`
	ShortBreak             time.Duration `json:"shortBreak"`
	LongBreak              time.Duration `json:"longBreak"`
	SessionsUntilLongBreak int           `json:"sessionsUntilLongBreak"`
}

func DefaultSettings() Settings {
	return Settings{
		Work:                   25 * time.Minute,
		ShortBreak:             5 * time.Minute,
		LongBreak:              15 * time.Minute,
		SessionsUntilLongBreak: 4,
	}
}

// Validate enforces work 1-60m, short break 1-30m, long break 1-60m and
// 2-10 sessions per long break.
func (s Settings) Validate() error {
	check := func(name string, d, max time.Duration) error {
		if d < time.Minute || d > max {
			return fmt.Errorf("%w: %s must be between 1m and %s, got %s", ErrInvalidSettings, name, max, d)
		}
		return nil
	}
	if err := check("work", s.Work, 60*time.Minute); err != nil {
		return err
	}
	if err := check("short break", s.ShortBreak, 30*time.Minute); err != nil {
		return err
	}
	if err := check("long break", s.LongBreak, 60*time.Minute); err != nil {
		return err
	}
	if s.SessionsUntilLongBreak < 2 || s.SessionsUntilLongBreak > 10 {
		return fmt.Errorf("%w: sessions until long break must be between 2 and 10, got %d", ErrInvalidSettings, s.SessionsUntilLongBreak)
	}
	return nil
}

func (s Settings) duration(p Phase) time.Duration {
	switch p {
	case PhaseShortBreak:
		return s.ShortBreak
	case PhaseLongBreak:
		return s.LongBreak
	}
	return s.Work
}

// Emitter receives the alerts raised on phase changes; notify.Dispatcher
// implements it.
type Emitter interface {
	Emit(ctx context.Context, a notify.Alert)
}

// State is a point-in-time snapshot of the timer.
type State struct {
	Phase     Phase         `json:"phase"`
	Session   int           `json:"session"`
	Running   bool          `json:"running"`
	Paused    bool          `json:"paused"`
	Remaining time.Duration `json:"remaining"`
	Total     time.Duration `json:"total"`
	Progress  float64       `json:"progress"`
	Settings  Settings      `json:"settings"`
}

type Option func(*Timer)

// WithScheduler makes the timer arm a scheduler entry for the end of each
// running phase, so nobody has to call Tick.
func WithScheduler(s *schedule.Scheduler) Option { return func(t *Timer) { t.sched = s } }

func WithEmitter(e Emitter) Option { return func(t *Timer) { t.emitter = e } }

func WithLogger(logger *zap.Logger) Option { return func(t *Timer) { t.logger = logger } }

type Timer struct {
	sched   *schedule.Scheduler
	emitter Emitter
	logger  *zap.Logger

	mu        sync.Mutex
	settings  Settings
	phase     Phase
	session   int
	running   bool
	paused    bool
	endsAt    time.Time     // valid while running and not paused
	remaining time.Duration // valid otherwise
}

// New returns an idle timer at the start of the first work session.
func New(settings Settings, opts ...Option) (*Timer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	t := &Timer{settings: settings}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	t.reset()
	return t, nil
}

func (t *Timer) reset() {
	t.phase = PhaseWork
	t.session = 1
	t.running = false
	t.paused = false
	t.endsAt = time.Time{}
	t.remaining = t.settings.Work
}

func (t *Timer) Start(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("start: %w", ErrInvalidState)
	}
	t.running = true
	t.paused = false
	t.endsAt = now.Add(t.remaining)
	t.arm()
	t.logger.Debug("focus timer started", zap.String("phase", string(t.phase)), zap.Int("session", t.session))
	return nil
}

func (t *Timer) Pause(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return fmt.Errorf("pause: %w", ErrInvalidState)
	}
	t.remaining = t.endsAt.Sub(now)
	if t.remaining < 0 {
		t.remaining = 0
	}
	t.paused = true
	t.disarm()
	return nil
}

func (t *Timer) Resume(now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return fmt.Errorf("resume: %w", ErrInvalidState)
	}
	t.paused = false
	t.endsAt = now.Add(t.remaining)
	t.arm()
	return nil
}

// Reset stops the timer and returns to the first work session.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarm()
	t.reset()
}

// SetSettings replaces the durations. An idle timer restarts its current
// phase with the new length; a running one keeps its current deadline.
func (t *Timer) SetSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = s
	if !t.running {
		t.remaining = s.duration(t.phase)
	}
	return nil
}

// Tick ends every phase whose deadline is at or before now, raising one
// alert per transition, and returns how many phases ended. The timer keeps
// running into the next phase.
func (t *Timer) Tick(ctx context.Context, now time.Time) int {
	t.mu.Lock()
	var alerts []notify.Alert
	for t.running && !t.paused && !now.Before(t.endsAt) {
		alerts = append(alerts, t.advance())
	}
	if len(alerts) > 0 {
		t.arm()
	}
	t.mu.Unlock()

	if t.emitter != nil {
		for _, a := range alerts {
			t.emitter.Emit(ctx, a)
		}
	}
	return len(alerts)
}

// advance must be called with mu held.
func (t *Timer) advance() notify.Alert {
	var alert notify.Alert
	if t.phase == PhaseWork {
		long := t.session%t.settings.SessionsUntilLongBreak == 0
		t.phase = PhaseShortBreak
		if long {
			t.phase = PhaseLongBreak
		}
		alert = notify.WorkSessionDoneAlert{LongBreak: long}
	} else {
		t.phase = PhaseWork
		t.session++
		alert = notify.BreakOverAlert{}
	}
	t.endsAt = t.endsAt.Add(t.settings.duration(t.phase))
	t.logger.Info("focus phase changed", zap.String("phase", string(t.phase)), zap.Int("session", t.session))
	return alert
}

// arm and disarm must be called with mu held.
func (t *Timer) arm() {
	if t.sched == nil {
		return
	}
	t.sched.At(phaseJob, t.endsAt, func(ctx context.Context, now time.Time) {
		t.Tick(ctx, now)
	})
}

func (t *Timer) disarm() {
	if t.sched != nil {
		t.sched.Cancel(phaseJob)
	}
}

func (t *Timer) State(now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	remaining := t.remaining
	if t.running && !t.paused {
		remaining = t.endsAt.Sub(now)
		if remaining < 0 {
			remaining = 0
		}
	}
	total := t.settings.duration(t.phase)
	progress := 0.0
	if total > 0 {
		progress = float64(total-remaining) / float64(total) * 100
	}
	if progress < 0 {
		progress = 0
	}
	return State{
		Phase:     t.phase,
		Session:   t.session,
		Running:   t.running,
		Paused:    t.paused,
		Remaining: remaining,
		Total:     total,
		Progress:  progress,
		Settings:  t.settings,
	}
}
