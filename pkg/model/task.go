package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority in rank order.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank orders priorities from most (0) to least (3) urgent.
// Unknown values sort after low.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

func (p Priority) Valid() bool { return p.Rank() < 4 }

// Category groups tasks by area of life.
type Category string

const (
	CategoryPersonal Category = "personal"
	CategoryWork     Category = "work"
	CategoryLearning Category = "learning"
	CategoryHealth   Category = "health"
)

var Categories = []Category{CategoryPersonal, CategoryWork, CategoryLearning, CategoryHealth}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
)

var Statuses = []Status{StatusTodo, StatusInProgress, StatusBlocked, StatusCompleted}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the status a one-click advance moves to:
// todo -> in-progress -> completed -> todo, and blocked -> in-progress.
func (s Status) Next() Status {
	switch s {
	case StatusTodo, StatusBlocked:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusTodo
	}
}

// DefaultEffort is used when a task is created without an effort label.
const DefaultEffort = "1 hr"

// Task is the only persisted entity.
type Task struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Priority     Priority  `json:"priority"`
	Category     Category  `json:"category"`
	Deadline     time.Time `json:"deadline"`
	Status       Status    `json:"status"`
	Effort       string    `json:"effort"`
	Tags         []string  `json:"tags"`
	Dependencies []string  `json:"dependencies"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsOverdue reports whether the deadline has passed on an unfinished task.
func (t Task) IsOverdue(now time.Time) bool {
	return t.Deadline.Before(now) && t.Status != StatusCompleted
}

func (t Task) IsCompleted() bool { return t.Status == StatusCompleted }

// Clone returns a copy that shares no slices with t.
func (t Task) Clone() Task {
	c := t
	c.Tags = cloneStrings(t.Tags)
	c.Dependencies = cloneStrings(t.Dependencies)
	return c
}

// Validate checks the invariants the store refuses to persist without.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrEmptyName)
	}
	if !t.Priority.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidTask, ErrInvalidPriority, t.Priority)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidTask, ErrInvalidCategory, t.Category)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidTask, ErrInvalidStatus, t.Status)
	}
	if t.Deadline.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidTask, ErrMissingDeadline)
	}
	return nil
}

// Draft is the caller-supplied part of a new task. The store assigns
// ID, CreatedAt and UpdatedAt.
type Draft struct {
	Name         string
	Description  string
	Priority     Priority
	Category     Category
	Deadline     time.Time
	Status       Status
	Effort       string
	Tags         []string
	Dependencies []string
}

// Task builds the record for d, filling defaults for status and effort.
func (d Draft) Task(id string, now time.Time) Task {
	t := Task{
		ID:           id,
		Name:         strings.TrimSpace(d.Name),
		Description:  d.Description,
		Priority:     d.Priority,
		Category:     d.Category,
		Deadline:     d.Deadline,
		Status:       d.Status,
		Effort:       strings.TrimSpace(d.Effort),
		Tags:         cloneStrings(d.Tags),
		Dependencies: cloneStrings(d.Dependencies),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Effort == "" {
		t.Effort = DefaultEffort
	}
	return t
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name         *string
	Description  *string
	Priority     *Priority
	Category     *Category
	Deadline     *time.Time
	Status       *Status
	Effort       *string
	Tags         *[]string
	Dependencies *[]string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Priority == nil &&
		p.Category == nil && p.Deadline == nil && p.Status == nil &&
		p.Effort == nil && p.Tags == nil && p.Dependencies == nil
}

// Apply merges p over t shallowly and stamps UpdatedAt.
func (p Patch) Apply(t Task, now time.Time) Task {
	out := t.Clone()
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Deadline != nil {
		out.Deadline = *p.Deadline
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Effort != nil {
		out.Effort = *p.Effort
	}
	if p.Tags != nil {
		out.Tags = cloneStrings(*p.Tags)
	}
	if p.Dependencies != nil {
		out.Dependencies = cloneStrings(*p.Dependencies)
	}
	// Never let a skewed clock break CreatedAt <= UpdatedAt.
	if now.Before(out.CreatedAt) {
		now = out.CreatedAt
	}
	out.UpdatedAt = now
	return out
}

// SetStatus is shorthand for a patch that only changes the status.
func SetStatus(s Status) Patch { return Patch{Status: &s} }

// ParseTags splits a comma separated list, dropping blanks.
func ParseTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
