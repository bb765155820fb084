package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// FormatVersion is written into every saved document. Version 0 is the
// unversioned bare JSON array, still accepted on load.
const FormatVersion = 1

var ErrUnsupportedVersion = errors.New("task document version is newer than supported")

type document struct {
	Version int          `json:"version"`
	Tasks   []model.Task `json:"tasks"`
}

// Encode serializes the collection. Timestamps are RFC 3339 text.
func Encode(tasks []model.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []model.Task{}
	}
	return json.MarshalIndent(document{Version: FormatVersion, Tasks: tasks}, "", "  ")
}

// Decode parses either a versioned document or a legacy bare array.
func Decode(data []byte) ([]model.Task, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var tasks []model.Task
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return nil, fmt.Errorf("decode legacy task list: %w", err)
		}
		return tasks, nil
	}

	var doc document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decode task document: %w", err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, support %d", ErrUnsupportedVersion, doc.Version, FormatVersion)
	}
	return doc.Tasks, nil
}
