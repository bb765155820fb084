package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/api"
	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/api/handlers"
	"github.com/harrisonrobin/taskmaster/pkg/api/validation"
	"github.com/harrisonrobin/taskmaster/pkg/api/ws"
	"github.com/harrisonrobin/taskmaster/pkg/config"
	"github.com/harrisonrobin/taskmaster/pkg/focus"
	"github.com/harrisonrobin/taskmaster/pkg/google"
	"github.com/harrisonrobin/taskmaster/pkg/index"
	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/notify"
	"github.com/harrisonrobin/taskmaster/pkg/overdue"
	"github.com/harrisonrobin/taskmaster/pkg/reminder"
	"github.com/harrisonrobin/taskmaster/pkg/schedule"
	"github.com/harrisonrobin/taskmaster/pkg/storage"
	"github.com/harrisonrobin/taskmaster/pkg/store"
	"github.com/harrisonrobin/taskmaster/pkg/translator"
	"github.com/harrisonrobin/taskmaster/pkg/views"
)

// app holds what every command needs: the loaded config, the storage
// backend, the task store on top of it and the alert dispatcher
// subscribed to it, so CLI mutations raise the same alerts as the API.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	kv         storage.KV
	store      *store.Store
	localizer  *translator.Localizer
	sched      *schedule.Scheduler
	dispatcher *notify.Dispatcher

	closeOnce sync.Once
}

func openApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	opts, err := cfg.StorageOptions()
	if err != nil {
		return nil, err
	}
	kv, err := storage.Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	translator.Init(translator.Config{TranslationFolder: cfg.Translations})
	localizer := translator.Default.For(cfg.Language)
	s := store.New(kv, store.WithLogger(logger))
	s.Load(ctx)

	reminders, err := reminder.Load(ctx, kv)
	if err != nil {
		logger.Warn("failed to load reminder table, starting empty", zap.Error(err))
	}
	sched := schedule.New(schedule.WithLogger(logger))
	dispatcher := notify.New(s, sched, localizer,
		notify.WithPolicy(cfg.Policy()),
		notify.WithLogger(logger),
		notify.WithReminders(reminders),
	)
	dispatcher.AddChannel(notify.NewLogChannel(logger))
	if cfg.Notifications.Desktop {
		dispatcher.AddChannel(notify.NewDesktopChannel(cfg.Notifications.DesktopCommand))
	}
	s.Subscribe(dispatcher.OnEvent)

	return &app{
		cfg:        cfg,
		logger:     logger,
		kv:         kv,
		store:      s,
		localizer:  localizer,
		sched:      sched,
		dispatcher: dispatcher,
	}, nil
}

// Close flushes unsaved tasks and releases the backend.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.Flush(ctx); err != nil {
			a.logger.Error("failed to flush tasks", zap.Error(err))
		}
		if err := a.kv.Close(); err != nil {
			a.logger.Warn("failed to close storage", zap.Error(err))
		}
	})
}

// serve runs the API, the alert rules, the focus timer and, when enabled,
// the calendar mirror until ctx is done.
func (a *app) serve(ctx context.Context) error {
	sched, dispatcher := a.sched, a.dispatcher
	hub := ws.NewHub(a.logger)
	defer hub.Close()
	dispatcher.AddChannel(hub)

	timer, err := focus.New(a.cfg.FocusSettings(),
		focus.WithScheduler(sched),
		focus.WithEmitter(dispatcher),
		focus.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}

	if a.cfg.CalendarSync {
		mirror, err := a.openMirror(ctx)
		if err != nil {
			a.logger.Warn("calendar sync disabled", zap.Error(err))
		} else {
			a.store.Subscribe(mirror.OnEvent)
			mirror.Start(sched, google.DefaultSweep)
			go func() {
				if failed := mirror.SyncAll(ctx, a.store.Tasks()); failed > 0 {
					a.logger.Warn("initial calendar sync incomplete", zap.Int("failed", failed))
				}
				_ = mirror.Run(ctx)
			}()
		}
	}

	dispatcher.Start(ctx)
	go func() {
		_ = sched.Run(ctx)
	}()

	engine := api.NewEngine(a.logger, api.Handlers{
		Health: handlers.NewHealthHandler(a.store, hub),
		Tasks:  handlers.NewTaskHandler(a.store, nil),
		Views:  handlers.NewViewHandler(a.store, nil, views.TrendOptions{YearlyByYear: a.cfg.Trend.YearlyByYear}),
		Focus:  handlers.NewFocusHandler(timer, nil),
		Hub:    hub,
	})
	return api.Serve(ctx, a.cfg.Server.Addr, engine, a.logger)
}

func (a *app) openMirror(ctx context.Context) (*google.Mirror, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	idx, err := index.NewEventIndex(ctx, a.kv, index.DefaultKey)
	if err != nil {
		return nil, err
	}
	sweep, err := overdue.NewTable(ctx, a.kv)
	if err != nil {
		return nil, err
	}
	client, err := google.NewClient(ctx, dir, a.cfg.Calendar, idx, a.logger)
	if err != nil {
		return nil, fmt.Errorf("error creating Google Calendar client: %w", err)
	}
	return google.NewMirror(client, a.store, idx, sweep, google.WithLogger(a.logger)), nil
}

func (a *app) syncCalendar(ctx context.Context) error {
	mirror, err := a.openMirror(ctx)
	if err != nil {
		return err
	}
	tasks := a.store.Tasks()
	failed := mirror.SyncAll(ctx, tasks)
	fmt.Printf("Synced %d of %d tasks to %q\n", len(tasks)-failed, len(tasks), a.cfg.Calendar)
	if failed > 0 {
		return fmt.Errorf("%d tasks failed to sync", failed)
	}
	return nil
}

func (a *app) addTask(ctx context.Context, name, priority, category, due, effort, tags string) error {
	req := dto.CreateTaskRequest{
		Name:     name,
		Priority: priority,
		Category: category,
		Deadline: due,
		Tags:     model.ParseTags(tags),
	}
	if effort != "" {
		req.Effort = &effort
	}
	draft, err := validation.BuildDraft(req, nil, time.Local)
	if err != nil {
		return fmt.Errorf("%w: name and a deadline like 2006-01-02T15:04 are required", err)
	}
	task, err := a.store.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %s\n", task.ID)
	return nil
}

func (a *app) listTasks(view string) error {
	now := time.Now()
	tasks, err := views.Select(view, a.store.Tasks(), now)
	if err != nil {
		return fmt.Errorf("%w, use one of %s", err, strings.Join(views.Names, ", "))
	}
	printTasks(tasks, now)
	return nil
}

func printTasks(tasks []model.Task, now time.Time) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tDEADLINE\tNAME")
	for _, t := range tasks {
		status := string(t.Status)
		if t.IsOverdue(now) {
			status += " (overdue)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.ID, status, t.Priority, t.Deadline.Local().Format("2006-01-02 15:04"), t.Name)
	}
	_ = w.Flush()
}

func (a *app) printStats() error {
	st := views.ComputeStats(a.store.Tasks(), time.Now())
	fmt.Printf("Total: %d\nCompleted: %d\nIn progress: %d\nBlocked: %d\nOverdue: %d\nProductivity: %d%%\n",
		st.Total, st.Completed, st.InProgress, st.Blocked, st.Overdue, views.ProductivityScore(st))
	return nil
}

func (a *app) printTrend(name string) error {
	r, err := views.ParseRange(name)
	if err != nil {
		return err
	}
	an, err := views.ComputeAnalytics(a.store.Tasks(), time.Now(), r,
		views.TrendOptions{YearlyByYear: a.cfg.Trend.YearlyByYear})
	if err != nil {
		return err
	}
	fmt.Printf("Productivity: %d%% (%d of %d completed, %d overdue)\n",
		an.ProductivityScore, an.Completed, an.Total, an.Overdue)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, b := range an.Trend {
		fmt.Fprintf(w, "%s\t%d\t%s\n", b.Label, b.Completed, strings.Repeat("█", b.Completed))
	}
	return w.Flush()
}

func (a *app) advanceTask(ctx context.Context, id string) error {
	task, err := a.store.Advance(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", task.Name, task.Status)
	return nil
}

func (a *app) completeTask(ctx context.Context, id string) error {
	task, err := a.store.Update(ctx, id, model.SetStatus(model.StatusCompleted))
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", task.Name, task.Status)
	return nil
}

func (a *app) deleteTask(ctx context.Context, id string) error {
	task, err := a.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", task.Name)
	return nil
}

func (a *app) printDigest() error {
	due := views.Active(views.OnDay(a.store.Tasks(), time.Now()))
	names := make([]string, len(due))
	for i, t := range due {
		names[i] = t.Name
	}
	title, body := notify.DigestAlert{Names: names}.Render(a.localizer)
	fmt.Printf("%s\n%s\n", title, body)
	return nil
}
