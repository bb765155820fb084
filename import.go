package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/orgmode"
	"github.com/harrisonrobin/taskmaster/pkg/taskwarrior"
)

func (a *app) importOrg(ctx context.Context, files string) error {
	entries, err := orgmode.ParseFiles(model.ParseTags(files), time.Local)
	if err != nil {
		return err
	}
	drafts := make([]model.Draft, len(entries))
	for i, e := range entries {
		drafts[i] = orgmode.ToDraft(e)
	}
	return a.importDrafts(ctx, drafts)
}

func (a *app) importTaskwarrior(ctx context.Context, source string) error {
	var tasks []taskwarrior.Task
	var err error
	switch source {
	case "export":
		tasks, err = taskwarrior.NewExporter().Export(ctx)
	case "-":
		tasks, err = taskwarrior.Decode(os.Stdin)
	default:
		tasks, err = decodeTaskwarriorFile(source)
	}
	if err != nil {
		return err
	}

	var drafts []model.Draft
	for _, t := range tasks {
		if d, ok := taskwarrior.ToDraft(t); ok {
			drafts = append(drafts, d)
		} else {
			a.logger.Debug("skipping taskwarrior task", zap.String("uuid", t.UUID), zap.String("status", t.Status))
		}
	}
	return a.importDrafts(ctx, drafts)
}

func decodeTaskwarriorFile(path string) ([]taskwarrior.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return taskwarrior.Decode(f)
}

// importDrafts creates every draft that does not already exist with the
// same name and deadline, so importing twice is harmless.
func (a *app) importDrafts(ctx context.Context, drafts []model.Draft) error {
	type key struct {
		name     string
		deadline int64
	}
	seen := make(map[key]bool)
	for _, t := range a.store.Tasks() {
		seen[key{strings.TrimSpace(t.Name), t.Deadline.Unix()}] = true
	}

	created, skipped := 0, 0
	for _, d := range drafts {
		// The store trims names, so the key must too.
		k := key{strings.TrimSpace(d.Name), d.Deadline.Unix()}
		if seen[k] {
			skipped++
			continue
		}
		if _, err := a.store.Create(ctx, d); err != nil {
			a.logger.Warn("could not import task", zap.String("name", d.Name), zap.Error(err))
			skipped++
			continue
		}
		seen[k] = true
		created++
	}
	fmt.Printf("Imported %d tasks, skipped %d\n", created, skipped)
	return nil
}
