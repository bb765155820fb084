package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

// DefaultKey is the storage slot the table is saved under.
const DefaultKey = "taskmaster-reminders"

// Entry is one per-task reminder.
type Entry struct {
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	Deadline time.Time `json:"deadline"`
	FireAt   time.Time `json:"fire_at"`
	Fired    bool      `json:"fired"`
}

// Table remembers which reminders have been scheduled or sent, so a task
// gets at most one reminder per deadline.
type Table struct {
	Entries map[string]Entry `json:"entries"`

	mu    sync.Mutex
	kv    storage.KV
	key   string
	dirty bool
}

// NewTable returns an empty table. kv may be nil for an unsaved table.
func NewTable(kv storage.KV) *Table {
	return &Table{Entries: make(map[string]Entry), kv: kv, key: DefaultKey}
}

// Load reads a saved table from kv. A missing slot gives an empty table.
func Load(ctx context.Context, kv storage.KV) (*Table, error) {
	t := NewTable(kv)
	data, err := kv.Get(ctx, t.key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return t, nil
		}
		return t, err
	}
	if err := json.Unmarshal(data, t); err != nil {
		return NewTable(kv), err
	}
	if t.Entries == nil {
		t.Entries = make(map[string]Entry)
	}
	return t, nil
}

func (t *Table) Save(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty || t.kv == nil {
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

// Update records a reminder for a task at fireAt. It reports whether the
// entry is new or its deadline moved, i.e. whether the caller has to
// (re)schedule it. A zero deadline removes the entry.
func (t *Table) Update(taskID, name string, deadline, fireAt time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if deadline.IsZero() {
		t.remove(taskID)
		return false
	}
	old, exists := t.Entries[taskID]
	if exists && old.Deadline.Equal(deadline) {
		if old.TaskName != name {
			old.TaskName = name
			t.Entries[taskID] = old
			t.dirty = true
		}
		return false
	}
	t.Entries[taskID] = Entry{
		TaskID:   taskID,
		TaskName: name,
		Deadline: deadline,
		FireAt:   fireAt,
	}
	t.dirty = true
	return true
}

func (t *Table) Get(taskID string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.Entries[taskID]
	return e, ok
}

// MarkFired records that the reminder for taskID was sent.
func (t *Table) MarkFired(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.Entries[taskID]; ok && !e.Fired {
		e.Fired = true
		t.Entries[taskID] = e
		t.dirty = true
	}
}

func (t *Table) Remove(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(taskID)
}

func (t *Table) remove(taskID string) {
	if _, exists := t.Entries[taskID]; exists {
		delete(t.Entries, taskID)
		t.dirty = true
	}
}

// Pending returns entries that have not fired yet.
func (t *Table) Pending() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Entry
	for _, e := range t.Entries {
		if !e.Fired {
			out = append(out, e)
		}
	}
	return out
}

// Sweep returns entries whose deadline has passed (Deadline < now) and
// removes them.
func (t *Table) Sweep(now time.Time) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	var swept []Entry
	for id, e := range t.Entries {
		if e.Deadline.Before(now) {
			swept = append(swept, e)
			delete(t.Entries, id)
			t.dirty = true
		}
	}
	return swept
}
