// Package taskwarrior reads Taskwarrior JSON exports so existing tasks can
// be imported.
package taskwarrior

import (
	"fmt"
	"strings"
	"time"
)

// Task statuses as written by Taskwarrior.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusWaiting   = "waiting"
	StatusDeleted   = "deleted"
	StatusRecurring = "recurring"
)

// timestampLayout is Taskwarrior's compact UTC form, e.g. 20240508T093000Z.
const timestampLayout = "20060102T150405Z"

// Timestamp is a Taskwarrior date. Empty and "0" decode to the zero time.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	v := strings.Trim(string(b), `"`)
	switch v {
	case "", "0", "null":
		ts.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(timestampLayout, v)
	if err != nil {
		return fmt.Errorf("taskwarrior date %q: %w", v, err)
	}
	ts.Time = parsed
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + ts.UTC().Format(timestampLayout) + `"`), nil
}

// Set reports whether ts holds a date. A nil Timestamp is unset.
func (ts *Timestamp) Set() bool { return ts != nil && !ts.IsZero() }

type Annotation struct {
	Entry       *Timestamp `json:"entry,omitempty"`
	Description string     `json:"description"`
}

// Task holds the export fields the importer reads.
type Task struct {
	UUID        string       `json:"uuid"`
	Status      string       `json:"status"`
	Description string       `json:"description"`
	Project     string       `json:"project,omitempty"`
	Priority    string       `json:"priority,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Due         *Timestamp   `json:"due,omitempty"`
	Scheduled   *Timestamp   `json:"scheduled,omitempty"`
	Start       *Timestamp   `json:"start,omitempty"`
	End         *Timestamp   `json:"end,omitempty"`
	Depends     []string     `json:"depends,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
	// Est is the estimate UDA, an ISO 8601 duration such as PT1H30M.
	Est string `json:"est,omitempty"`
}
