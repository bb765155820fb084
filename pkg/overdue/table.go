// Package overdue tracks mirrored events whose deadline is still ahead, so
// a sweep can mark them overdue on the calendar once it passes.
package overdue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

// DefaultKey is the storage slot holding the table.
const DefaultKey = "taskmaster-overdue-sweep"

type Entry struct {
	TaskID   string    `json:"task_id"`
	EventID  string    `json:"event_id"`
	Summary  string    `json:"summary"`
	Deadline time.Time `json:"deadline"`
}

type Table struct {
	Entries map[string]Entry `json:"entries"`

	mu    sync.Mutex
	kv    storage.KV
	key   string
	dirty bool
}

// NewTable loads the table from kv. A missing slot gives an empty table.
func NewTable(ctx context.Context, kv storage.KV) (*Table, error) {
	t := &Table{Entries: make(map[string]Entry), kv: kv, key: DefaultKey}
	data, err := kv.Get(ctx, t.key)
	if errors.Is(err, storage.ErrNotFound) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("overdue: read %s: %w", t.key, err)
	}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("overdue: decode %s: %w", t.key, err)
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return t, nil
}

func (t *Table) Save(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	if err := t.kv.Put(ctx, t.key, data); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// Update tracks taskID when its deadline is still after now. Otherwise the
// entry is dropped.
func (t *Table) Update(taskID, eventID, summary string, deadline, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if deadline.IsZero() || !deadline.After(now) {
		t.removeLocked(taskID)
		return
	}
	entry := Entry{TaskID: taskID, EventID: eventID, Summary: summary, Deadline: deadline}
	if old, exists := t.Entries[taskID]; !exists || old != entry {
		t.Entries[taskID] = entry
		t.dirty = true
	}
}

func (t *Table) Remove(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(taskID)
}

func (t *Table) removeLocked(taskID string) {
	if _, exists := t.Entries[taskID]; exists {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Sweep removes and returns the entries whose deadline is before now.
func (t *Table) Sweep(now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var swept []Entry
	for id, entry := range t.Entries {
		if entry.Deadline.Before(now) {
			swept = append(swept, entry)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	return swept
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Entries)
}
