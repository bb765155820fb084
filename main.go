package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/auth"
	"github.com/harrisonrobin/taskmaster/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default ~/.config/taskmaster/config.yaml)")
	calendarName := flag.String("calendar", "", "Google Calendar name to sync with (overrides config)")
	setCalendar := flag.String("set-calendar", "", "Set the default Google Calendar name")
	doAuth := flag.Bool("auth", false, "Authenticate with Google Calendar")
	serve := flag.Bool("serve", false, "Run the API server, alerts and focus timer")
	syncAll := flag.Bool("sync", false, "Mirror every task to Google Calendar and exit")

	add := flag.String("add", "", "Add a task with this name")
	priority := flag.String("priority", "medium", "Priority for -add: urgent, high, medium or low")
	category := flag.String("category", "personal", "Category for -add: personal, work, learning or health")
	due := flag.String("due", "", "Deadline for -add, RFC 3339 or 2006-01-02T15:04")
	effort := flag.String("effort", "", `Effort for -add, e.g. "2 hrs"`)
	tags := flag.String("tags", "", "Comma separated tags for -add")

	list := flag.String("list", "", "List tasks: all, priority, active, overdue, upcoming or today")
	stats := flag.Bool("stats", false, "Print task statistics")
	trend := flag.String("trend", "", "Print analytics for daily, weekly, monthly or yearly")
	advance := flag.String("advance", "", "Advance the task with this id to its next status")
	complete := flag.String("complete", "", "Mark the task with this id completed")
	remove := flag.String("delete", "", "Delete the task with this id")
	digest := flag.Bool("digest", false, "Print the tasks due today")
	importOrg := flag.String("import-org", "", "Import dated TODO headlines from comma separated Org files")
	importTW := flag.String("import-taskwarrior", "", `Import a Taskwarrior export from a file, "-" for stdin or "export" to run task`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *calendarName != "" {
		cfg.Calendar = *calendarName
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	// Packages without an injected logger log through zap.L().
	zap.ReplaceGlobals(logger)
	defer func() {
		_ = logger.Sync()
	}()

	if *setCalendar != "" {
		cfg.Calendar = *setCalendar
		if err := config.Save(cfg, *configPath); err != nil {
			logger.Fatal("error saving config", zap.Error(err))
		}
		fmt.Printf("Default calendar set to: %s\n", *setCalendar)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *doAuth {
		dir, err := config.Dir()
		if err != nil {
			logger.Fatal("could not find configuration directory", zap.Error(err))
		}
		if err := auth.ResetToken(dir); err != nil {
			logger.Fatal("could not remove cached token, delete it manually", zap.Error(err))
		}
		if _, err := auth.GetCalendarService(ctx, dir); err != nil {
			logger.Fatal("authentication failed", zap.Error(err))
		}
		fmt.Printf("Authentication successful! Token saved to %s\n", dir)
		return
	}

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("could not open task store", zap.Error(err))
	}
	defer a.Close()

	switch {
	case *serve:
		err = a.serve(ctx)
	case *syncAll:
		err = a.syncCalendar(ctx)
	case *add != "":
		err = a.addTask(ctx, *add, *priority, *category, *due, *effort, *tags)
	case *list != "":
		err = a.listTasks(*list)
	case *stats:
		err = a.printStats()
	case *trend != "":
		err = a.printTrend(*trend)
	case *advance != "":
		err = a.advanceTask(ctx, *advance)
	case *complete != "":
		err = a.completeTask(ctx, *complete)
	case *remove != "":
		err = a.deleteTask(ctx, *remove)
	case *digest:
		err = a.printDigest()
	case *importOrg != "":
		err = a.importOrg(ctx, *importOrg)
	case *importTW != "":
		err = a.importTaskwarrior(ctx, *importTW)
	default:
		err = a.listTasks("active")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}
