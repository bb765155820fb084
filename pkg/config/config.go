// Package config loads the taskmaster settings file and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/taskmaster/pkg/focus"
	"github.com/harrisonrobin/taskmaster/pkg/notify"
	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

const (
	xdgAppName = "taskmaster"
	configFile = "config.yaml"

	DefaultCalendar = "Tasks"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Calendar      string              `yaml:"calendar"`
	CalendarSync  bool                `yaml:"calendar_sync"`
	Language      string              `yaml:"language"`
	Translations  string              `yaml:"translations,omitempty"`
	Storage       StorageConfig       `yaml:"storage"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Pomodoro      PomodoroConfig      `yaml:"pomodoro"`
	Server        ServerConfig        `yaml:"server"`
	Trend         TrendConfig         `yaml:"trend"`
	Log           LogConfig           `yaml:"log"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Dir    string `yaml:"dir,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type NotificationsConfig struct {
	Desktop          bool          `yaml:"desktop"`
	DesktopCommand   string        `yaml:"desktop_command,omitempty"`
	OverdueInterval  time.Duration `yaml:"overdue_interval"`
	UpcomingInterval time.Duration `yaml:"upcoming_interval"`
	ReminderInterval time.Duration `yaml:"reminder_interval"`
	UpcomingWindow   time.Duration `yaml:"upcoming_window"`
	ReminderHorizon  time.Duration `yaml:"reminder_horizon"`
	ReminderLead     time.Duration `yaml:"reminder_lead"`
	DigestTime       string        `yaml:"digest_time"`
	Milestones       []int         `yaml:"milestones,flow"`
}

type PomodoroConfig struct {
	WorkDuration   time.Duration `yaml:"work_duration"`
	ShortBreak     time.Duration `yaml:"short_break"`
	LongBreak      time.Duration `yaml:"long_break"`
	LongBreakAfter int           `yaml:"long_break_after"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type TrendConfig struct {
	// YearlyByYear makes the yearly trend count per calendar year instead
	// of per month.
	YearlyByYear bool `yaml:"yearly_by_year"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	policy := notify.DefaultPolicy()
	settings := focus.DefaultSettings()
	return &Config{
		Calendar: DefaultCalendar,
		Language: "en",
		Storage:  StorageConfig{Driver: storage.DriverFile},
		Notifications: NotificationsConfig{
			Desktop:          true,
			OverdueInterval:  policy.OverdueInterval,
			UpcomingInterval: policy.UpcomingInterval,
			ReminderInterval: policy.ReminderInterval,
			UpcomingWindow:   policy.UpcomingWindow,
			ReminderHorizon:  policy.ReminderHorizon,
			ReminderLead:     policy.ReminderLead,
			DigestTime:       fmt.Sprintf("%02d:%02d", policy.DigestHour, policy.DigestMinute),
			Milestones:       policy.Milestones,
		},
		Pomodoro: PomodoroConfig{
			WorkDuration:   settings.Work,
			ShortBreak:     settings.ShortBreak,
			LongBreak:      settings.LongBreak,
			LongBreakAfter: settings.SessionsUntilLongBreak,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Dir is ~/.config/taskmaster, home of the config file, the OAuth files
// and the default data directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", xdgAppName), nil
}

// GetConfigPath returns TASKMASTER_CONFIG if set, else Dir()/config.yaml.
func GetConfigPath() (string, error) {
	if p := os.Getenv("TASKMASTER_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads path (GetConfigPath when empty) over the defaults, then applies
// .env and TASKMASTER_* overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	cfg.applyEnv()
	if cfg.Calendar == "" {
		cfg.Calendar = DefaultCalendar
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Calendar = getEnv("TASKMASTER_CALENDAR", c.Calendar)
	c.Language = getEnv("TASKMASTER_LANGUAGE", c.Language)
	c.Translations = getEnv("TASKMASTER_TRANSLATIONS", c.Translations)
	c.Storage.Driver = getEnv("TASKMASTER_STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Dir = getEnv("TASKMASTER_STORAGE_DIR", c.Storage.Dir)
	c.Storage.DSN = getEnv("TASKMASTER_DSN", c.Storage.DSN)
	c.Server.Addr = getEnv("TASKMASTER_ADDR", c.Server.Addr)
	c.Log.Level = getEnv("TASKMASTER_LOG_LEVEL", c.Log.Level)
	if v, ok := os.LookupEnv("TASKMASTER_CALENDAR_SYNC"); ok {
		c.CalendarSync = parseBool(v)
	}
	if v, ok := os.LookupEnv("TASKMASTER_DESKTOP"); ok {
		c.Notifications.Desktop = parseBool(v)
	}
	if v, ok := os.LookupEnv("TASKMASTER_LOG_DEVELOPMENT"); ok {
		c.Log.Development = parseBool(v)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "", storage.DriverFile, storage.DriverMemory:
	case storage.DriverSQLite, storage.DriverPostgres, storage.DriverMySQL:
		if c.Storage.DSN == "" {
			return fmt.Errorf("%w: storage driver %s needs a dsn", ErrInvalidConfig, c.Storage.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if _, _, err := c.Notifications.digestClock(); err != nil {
		return err
	}
	if err := c.FocusSettings().Validate(); err != nil {
		return fmt.Errorf("%w: pomodoro: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (n NotificationsConfig) digestClock() (int, int, error) {
	t, err := time.Parse("15:04", n.DigestTime)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: digest_time %q is not HH:MM", ErrInvalidConfig, n.DigestTime)
	}
	return t.Hour(), t.Minute(), nil
}

// Policy converts the notification section; zero durations keep their
// defaults.
func (c *Config) Policy() notify.Policy {
	p := notify.DefaultPolicy()
	n := c.Notifications
	setDuration(&p.OverdueInterval, n.OverdueInterval)
	setDuration(&p.UpcomingInterval, n.UpcomingInterval)
	setDuration(&p.ReminderInterval, n.ReminderInterval)
	setDuration(&p.UpcomingWindow, n.UpcomingWindow)
	setDuration(&p.ReminderHorizon, n.ReminderHorizon)
	setDuration(&p.ReminderLead, n.ReminderLead)
	if h, m, err := n.digestClock(); err == nil {
		p.DigestHour, p.DigestMinute = h, m
	}
	if n.Milestones != nil {
		p.Milestones = n.Milestones
	}
	return p
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func (c *Config) FocusSettings() focus.Settings {
	return focus.Settings{
		Work:                   c.Pomodoro.WorkDuration,
		ShortBreak:             c.Pomodoro.ShortBreak,
		LongBreak:              c.Pomodoro.LongBreak,
		SessionsUntilLongBreak: c.Pomodoro.LongBreakAfter,
	}
}

// StorageOptions resolves the storage section; the file driver defaults to
// Dir()/data.
func (c *Config) StorageOptions() (storage.Options, error) {
	opts := storage.Options{Driver: c.Storage.Driver, Dir: c.Storage.Dir, DSN: c.Storage.DSN}
	if (opts.Driver == "" || opts.Driver == storage.DriverFile) && opts.Dir == "" {
		dir, err := Dir()
		if err != nil {
			return opts, err
		}
		opts.Dir = filepath.Join(dir, "data")
	}
	return opts, nil
}

// Save writes cfg to path (GetConfigPath when empty).
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
