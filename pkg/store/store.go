// Package store owns the canonical task collection. Every mutation is
// applied in memory, written through to a storage.KV slot and then
// published to subscribers.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/model"
	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

// DefaultKey is the storage slot holding the collection.
const DefaultKey = "taskmaster-tasks"

// BackupSuffix names the slot that keeps a payload Load could not read.
// It is written before the first save replaces the original.
const BackupSuffix = "-backup"

var ErrIDCollision = errors.New("could not generate a unique task id")

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event describes one applied mutation. Previous is set for updates.
type Event struct {
	Kind     EventKind
	Task     model.Task
	Previous *model.Task
}

type Option func(*Store)

func WithKey(key string) Option { return func(s *Store) { s.key = key } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func WithIDGenerator(newID func() string) Option { return func(s *Store) { s.newID = newID } }

func WithLogger(logger *zap.Logger) Option { return func(s *Store) { s.logger = logger } }

type Store struct {
	kv     storage.KV
	key    string
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	// writeMu serializes mutations end to end, including persistence and
	// publishing, so subscribers see events in mutation order.
	writeMu sync.Mutex
	mu      sync.RWMutex
	tasks   []model.Task
	unsaved bool
	// unreadable holds a stored payload that failed to decode until it is
	// copied to the backup slot.
	unreadable []byte

	subMu       sync.RWMutex
	subscribers []func(Event)
}

func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		key:   DefaultKey,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Load replaces the in-memory collection with the persisted one. A missing
// or unreadable slot yields an empty collection; the problem is logged only.
func (s *Store) Load(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tasks, unreadable := s.read(ctx)

	s.mu.Lock()
	s.tasks = tasks
	s.unsaved = false
	s.unreadable = unreadable
	s.mu.Unlock()
	s.logger.Info("tasks loaded", zap.String("key", s.key), zap.Int("count", len(tasks)))
}

// read returns the stored tasks. A payload that exists but cannot be
// decoded, including one written by a newer version, is returned as well
// so it can be backed up before it is overwritten.
func (s *Store) read(ctx context.Context) ([]model.Task, []byte) {
	data, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("could not read task storage, starting empty", zap.String("key", s.key), zap.Error(err))
		}
		return nil, nil
	}
	decoded, err := Decode(data)
	if err != nil {
		s.logger.Warn("could not decode task storage, starting empty; it is backed up on the next save",
			zap.String("key", s.key), zap.String("backup", s.key+BackupSuffix), zap.Error(err))
		return nil, data
	}

	seen := make(map[string]bool, len(decoded))
	tasks := make([]model.Task, 0, len(decoded))
	for _, t := range decoded {
		if t.ID == "" || seen[t.ID] {
			s.logger.Warn("skipping stored task with missing or duplicate id", zap.String("id", t.ID))
			continue
		}
		seen[t.ID] = true
		if t.Status == "" {
			t.Status = model.StatusTodo
		}
		if t.Effort == "" {
			t.Effort = model.DefaultEffort
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Create assigns an id and timestamps to d, appends it and persists.
func (s *Store) Create(ctx context.Context, d model.Draft) (model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	id, err := s.uniqueID()
	if err != nil {
		s.mu.Unlock()
		return model.Task{}, err
	}
	task := d.Task(id, s.now())
	if err := task.Validate(); err != nil {
		s.mu.Unlock()
		return model.Task{}, err
	}
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	s.persist(ctx)
	s.logger.Debug("task created", zap.String("id", task.ID), zap.String("name", task.Name))
	s.publish(Event{Kind: EventCreated, Task: task.Clone()})
	return task.Clone(), nil
}

// Update merges p over the task with id. A missing id changes nothing and
// returns model.ErrTaskNotFound.
func (s *Store) Update(ctx context.Context, id string, p model.Patch) (model.Task, error) {
	return s.update(ctx, id, func(model.Task) model.Patch { return p })
}

// Advance moves the task one step along the status cycle.
func (s *Store) Advance(ctx context.Context, id string) (model.Task, error) {
	return s.update(ctx, id, func(t model.Task) model.Patch { return model.SetStatus(t.Status.Next()) })
}

func (s *Store) update(ctx context.Context, id string, patchFor func(model.Task) model.Patch) (model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, fmt.Errorf("update %s: %w", id, model.ErrTaskNotFound)
	}
	previous := s.tasks[i].Clone()
	updated := patchFor(previous).Apply(previous, s.now())
	if err := updated.Validate(); err != nil {
		s.mu.Unlock()
		return model.Task{}, err
	}
	s.tasks[i] = updated
	s.mu.Unlock()

	s.persist(ctx)
	s.logger.Debug("task updated", zap.String("id", id), zap.String("status", string(updated.Status)))
	s.publish(Event{Kind: EventUpdated, Task: updated.Clone(), Previous: &previous})
	return updated.Clone(), nil
}

// Delete removes the task with id. A missing id changes nothing and
// returns model.ErrTaskNotFound.
func (s *Store) Delete(ctx context.Context, id string) (model.Task, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return model.Task{}, fmt.Errorf("delete %s: %w", id, model.ErrTaskNotFound)
	}
	removed := s.tasks[i]
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.mu.Unlock()

	s.persist(ctx)
	s.logger.Debug("task deleted", zap.String("id", id))
	s.publish(Event{Kind: EventDeleted, Task: removed.Clone()})
	return removed, nil
}

// Flush rewrites the collection if the last write failed.
func (s *Store) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	unsaved := s.unsaved
	s.mu.RUnlock()
	if !unsaved {
		return nil
	}
	return s.persist(ctx)
}

// Unsaved reports whether the last write failed and has not been retried
// successfully.
func (s *Store) Unsaved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsaved
}

// persist writes the whole collection. Failures are logged and leave the
// in-memory collection authoritative; the next mutation rewrites it all.
func (s *Store) persist(ctx context.Context) error {
	s.mu.RLock()
	data, err := Encode(s.tasks)
	unreadable := s.unreadable
	s.mu.RUnlock()
	if err == nil && unreadable != nil {
		if err = s.kv.Put(ctx, s.key+BackupSuffix, unreadable); err == nil {
			s.logger.Warn("backed up unreadable task storage", zap.String("backup", s.key+BackupSuffix))
			s.mu.Lock()
			s.unreadable = nil
			s.mu.Unlock()
		}
	}
	if err == nil {
		err = s.kv.Put(ctx, s.key, data)
	}

	s.mu.Lock()
	s.unsaved = err != nil
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("could not save tasks, keeping in-memory state", zap.String("key", s.key), zap.Error(err))
	}
	return err
}

// Tasks returns a snapshot of the collection in insertion order.
func (s *Store) Tasks() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i].Clone(), true
	}
	return model.Task{}, false
}

// Subscribe registers fn for every applied mutation. fn runs synchronously
// on the mutating goroutine and must not mutate the store.
func (s *Store) Subscribe(fn func(Event)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store) publish(e Event) {
	s.subMu.RLock()
	subscribers := s.subscribers
	s.subMu.RUnlock()
	for _, fn := range subscribers {
		fn(e)
	}
}

// indexOf must be called with mu held.
func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// uniqueID must be called with mu held.
func (s *Store) uniqueID() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		id := s.newID()
		if id != "" && s.indexOf(id) < 0 {
			return id, nil
		}
	}
	return "", ErrIDCollision
}
