package focus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskmaster/pkg/notify"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
)

var t0 = time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (r *recorder) Emit(_ context.Context, a notify.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func shortSettings() Settings {
	return Settings{Work: 10 * time.Minute, ShortBreak: 2 * time.Minute, LongBreak: 5 * time.Minute, SessionsUntilLongBreak: 2}
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"work too short", func(s *Settings) { s.Work = 30 * time.Second }},
		{"work too long", func(s *Settings) { s.Work = 61 * time.Minute }},
		{"short break too long", func(s *Settings) { s.ShortBreak = 31 * time.Minute }},
		{"long break zero", func(s *Settings) { s.LongBreak = 0 }},
		{"one session", func(s *Settings) { s.SessionsUntilLongBreak = 1 }},
		{"eleven sessions", func(s *Settings) { s.SessionsUntilLongBreak = 11 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidSettings)
		})
	}

	_, err := New(Settings{})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCycleThroughPhases(t *testing.T) {
	rec := &recorder{}
	timer, err := New(shortSettings(), WithEmitter(rec))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, timer.Start(t0))
	assert.Equal(t, 0, timer.Tick(ctx, t0.Add(9*time.Minute)))

	now := t0.Add(10 * time.Minute)
	assert.Equal(t, 1, timer.Tick(ctx, now))
	st := timer.State(now)
	assert.Equal(t, PhaseShortBreak, st.Phase)
	assert.Equal(t, 1, st.Session)
	assert.Equal(t, 2*time.Minute, st.Remaining)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, timer.Tick(ctx, now))
	st = timer.State(now)
	assert.Equal(t, PhaseWork, st.Phase)
	assert.Equal(t, 2, st.Session)

	now = now.Add(10 * time.Minute)
	timer.Tick(ctx, now)
	assert.Equal(t, PhaseLongBreak, timer.State(now).Phase, "second session ends in a long break")

	require.Len(t, rec.alerts, 3)
	assert.Equal(t, notify.WorkSessionDoneAlert{LongBreak: false}, rec.alerts[0])
	assert.Equal(t, notify.BreakOverAlert{}, rec.alerts[1])
	assert.Equal(t, notify.WorkSessionDoneAlert{LongBreak: true}, rec.alerts[2])
	assert.Equal(t, notify.TagBreakTime, rec.alerts[0].Tag())
	assert.Equal(t, notify.TagFocusSession, rec.alerts[1].Tag())
}

func TestTickCatchesUpMissedPhases(t *testing.T) {
	rec := &recorder{}
	timer, err := New(shortSettings(), WithEmitter(rec))
	require.NoError(t, err)

	require.NoError(t, timer.Start(t0))
	// work 10, short 2, work 10 ends at 22m; long break runs to 27m.
	n := timer.Tick(context.Background(), t0.Add(25*time.Minute))
	assert.Equal(t, 3, n)
	st := timer.State(t0.Add(25 * time.Minute))
	assert.Equal(t, PhaseLongBreak, st.Phase)
	assert.Equal(t, 2*time.Minute, st.Remaining)
}

func TestPauseResume(t *testing.T) {
	timer, err := New(shortSettings())
	require.NoError(t, err)

	assert.ErrorIs(t, timer.Pause(t0), ErrInvalidState)
	assert.ErrorIs(t, timer.Resume(t0), ErrInvalidState)

	require.NoError(t, timer.Start(t0))
	assert.ErrorIs(t, timer.Start(t0), ErrInvalidState)

	require.NoError(t, timer.Pause(t0.Add(4*time.Minute)))
	assert.ErrorIs(t, timer.Pause(t0.Add(5*time.Minute)), ErrInvalidState)

	st := timer.State(t0.Add(time.Hour))
	assert.True(t, st.Paused)
	assert.Equal(t, 6*time.Minute, st.Remaining)
	assert.InDelta(t, 40.0, st.Progress, 0.001)
	assert.Equal(t, 0, timer.Tick(context.Background(), t0.Add(time.Hour)), "a paused timer does not advance")

	resumeAt := t0.Add(time.Hour)
	require.NoError(t, timer.Resume(resumeAt))
	assert.Equal(t, 0, timer.Tick(context.Background(), resumeAt.Add(5*time.Minute)))
	assert.Equal(t, 1, timer.Tick(context.Background(), resumeAt.Add(6*time.Minute)))
}

func TestReset(t *testing.T) {
	timer, err := New(shortSettings())
	require.NoError(t, err)
	require.NoError(t, timer.Start(t0))
	timer.Tick(context.Background(), t0.Add(12*time.Minute))

	timer.Reset()
	st := timer.State(t0.Add(13 * time.Minute))
	assert.Equal(t, State{
		Phase:     PhaseWork,
		Session:   1,
		Remaining: 10 * time.Minute,
		Total:     10 * time.Minute,
		Settings:  shortSettings(),
	}, st)
}

func TestSetSettings(t *testing.T) {
	timer, err := New(DefaultSettings())
	require.NoError(t, err)

	assert.ErrorIs(t, timer.SetSettings(Settings{}), ErrInvalidSettings)
	require.NoError(t, timer.SetSettings(shortSettings()))
	assert.Equal(t, 10*time.Minute, timer.State(t0).Remaining)
}

func TestSchedulerDrivesPhases(t *testing.T) {
	rec := &recorder{}
	sched := schedule.New(schedule.WithClock(func() time.Time { return t0 }))
	timer, err := New(shortSettings(), WithEmitter(rec), WithScheduler(sched))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, timer.Start(t0))
	at, ok := sched.Pending(phaseJob)
	require.True(t, ok)
	assert.Equal(t, t0.Add(10*time.Minute), at)

	sched.RunDue(ctx, at)
	require.Len(t, rec.alerts, 1)
	at, ok = sched.Pending(phaseJob)
	require.True(t, ok)
	assert.Equal(t, t0.Add(12*time.Minute), at)

	require.NoError(t, timer.Pause(t0.Add(11*time.Minute)))
	_, ok = sched.Pending(phaseJob)
	assert.False(t, ok)

	require.NoError(t, timer.Resume(t0.Add(20*time.Minute)))
	at, _ = sched.Pending(phaseJob)
	assert.Equal(t, t0.Add(21*time.Minute), at)

	timer.Reset()
	assert.Equal(t, 0, sched.Len())
}
