// Package index remembers which calendar event mirrors which task so a
// sync can skip the search API.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/harrisonrobin/taskmaster/pkg/storage"
)

// DefaultKey is the storage slot holding the mappings.
const DefaultKey = "taskmaster-events"

type EventIndex struct {
	Mappings map[string]string `json:"mappings"`

	kv    storage.KV
	key   string
	mu    sync.RWMutex
	dirty bool
}

// NewEventIndex loads the mappings kept in kv under key. A missing slot
// gives an empty index.
func NewEventIndex(ctx context.Context, kv storage.KV, key string) (*EventIndex, error) {
	if key == "" {
		key = DefaultKey
	}
	idx := &EventIndex{
		Mappings: make(map[string]string),
		kv:       kv,
		key:      key,
	}
	if err := idx.Load(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *EventIndex) Load(ctx context.Context) error {
	data, err := idx.kv.Get(ctx, idx.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("index: read %s: %w", idx.key, err)
	}

	mappings := make(map[string]string)
	if err := json.Unmarshal(data, &mappings); err != nil {
		return fmt.Errorf("index: decode %s: %w", idx.key, err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.Mappings = mappings
	idx.dirty = false
	return nil
}

// Save writes the mappings if anything changed since the last save.
func (idx *EventIndex) Save(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if !idx.dirty {
		return nil
	}

	data, err := json.Marshal(idx.Mappings)
	if err != nil {
		return err
	}
	if err := idx.kv.Put(ctx, idx.key, data); err != nil {
		return fmt.Errorf("index: write %s: %w", idx.key, err)
	}
	idx.dirty = false
	return nil
}

func (idx *EventIndex) Get(taskID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.Mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.Mappings[taskID] != eventID {
		idx.Mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.Mappings[taskID]; exists {
		delete(idx.Mappings, taskID)
		idx.dirty = true
	}
}

func (idx *EventIndex) Dirty() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dirty
}
