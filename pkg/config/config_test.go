package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrisonrobin/taskmaster/pkg/notify"
	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, notify.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, 25*time.Minute, cfg.FocusSettings().Work)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
calendar: ""
storage:
  driver: sqlite3
  dsn: /tmp/tasks.db
notifications:
  reminder_lead: 45m
  digest_time: "07:30"
pomodoro:
  work_duration: 50m
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultCalendar, cfg.Calendar, "empty calendar falls back")
	assert.Equal(t, "sqlite3", cfg.Storage.Driver)
	assert.Equal(t, 50*time.Minute, cfg.Pomodoro.WorkDuration)
	assert.Equal(t, 5*time.Minute, cfg.Pomodoro.ShortBreak, "unset keys keep defaults")

	p := cfg.Policy()
	assert.Equal(t, 45*time.Minute, p.ReminderLead)
	assert.Equal(t, 7, p.DigestHour)
	assert.Equal(t, 30, p.DigestMinute)
	assert.Equal(t, time.Hour, p.UpcomingInterval)

	opts, err := cfg.StorageOptions()
	require.NoError(t, err)
	assert.Equal(t, storage.Options{Driver: "sqlite3", DSN: "/tmp/tasks.db"}, opts)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TASKMASTER_CALENDAR", "Work")
	t.Setenv("TASKMASTER_STORAGE_DRIVER", "memory")
	t.Setenv("TASKMASTER_ADDR", "127.0.0.1:9999")
	t.Setenv("TASKMASTER_DESKTOP", "off")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Work", cfg.Calendar)
	assert.Equal(t, storage.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.False(t, cfg.Notifications.Desktop)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown driver":    "storage:\n  driver: redis\n",
		"sql without dsn":   "storage:\n  driver: postgres\n",
		"bad digest time":   "notifications:\n  digest_time: noon\n",
		"pomodoro too long": "pomodoro:\n  work_duration: 2h\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(data), 0600))
			_, err := Load(path)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("calendar: [unterminated"), 0600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Calendar = "Deadlines"
	cfg.Trend.YearlyByYear = true
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestStorageOptionsDefaultDir(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	opts, err := Default().StorageOptions()
	require.NoError(t, err)
	assert.Equal(t, storage.DriverFile, opts.Driver)
	assert.Equal(t, "data", filepath.Base(opts.Dir))
	assert.Equal(t, "taskmaster", filepath.Base(filepath.Dir(opts.Dir)))
}
