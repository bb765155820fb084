package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/harrisonrobin/taskmaster/pkg/api/dto"
	"github.com/harrisonrobin/taskmaster/pkg/model"
)

var ErrInvalidTaskPayload = errors.New("invalid task payload")

// datetimeLocal is what an HTML datetime-local input submits.
const datetimeLocal = "2006-01-02T15:04"

func BuildDraft(req dto.CreateTaskRequest, raw map[string]json.RawMessage, loc *time.Location) (model.Draft, error) {
	if hasJSONField(raw, "status") && req.Status == nil {
		return model.Draft{}, ErrInvalidTaskPayload
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Draft{}, ErrInvalidTaskPayload
	}
	deadline, err := ParseDeadline(req.Deadline, loc)
	if err != nil {
		return model.Draft{}, ErrInvalidTaskPayload
	}

	draft := model.Draft{
		Name:         name,
		Priority:     model.Priority(req.Priority),
		Category:     model.Category(req.Category),
		Deadline:     deadline,
		Tags:         trimAll(req.Tags),
		Dependencies: trimAll(req.Dependencies),
	}
	if req.Description != nil {
		draft.Description = *req.Description
	}
	if req.Status != nil {
		draft.Status = model.Status(*req.Status)
	}
	if req.Effort != nil {
		draft.Effort = strings.TrimSpace(*req.Effort)
	}
	return draft, nil
}

func BuildPatch(req dto.UpdateTaskRequest, raw map[string]json.RawMessage, loc *time.Location) (model.Patch, error) {
	if !hasTaskUpdateFields(raw) {
		return model.Patch{}, ErrInvalidTaskPayload
	}
	// Only description, effort, tags and dependencies may be cleared.
	for _, field := range []string{"name", "priority", "category", "deadline", "status"} {
		if hasJSONField(raw, field) && isJSONNull(raw[field]) {
			return model.Patch{}, ErrInvalidTaskPayload
		}
	}

	var p model.Patch
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return model.Patch{}, ErrInvalidTaskPayload
		}
		p.Name = &name
	}
	if hasJSONField(raw, "description") {
		description := ""
		if req.Description != nil {
			description = *req.Description
		}
		p.Description = &description
	}
	if req.Priority != nil {
		v := model.Priority(*req.Priority)
		p.Priority = &v
	}
	if req.Category != nil {
		v := model.Category(*req.Category)
		p.Category = &v
	}
	if req.Deadline != nil {
		deadline, err := ParseDeadline(*req.Deadline, loc)
		if err != nil {
			return model.Patch{}, ErrInvalidTaskPayload
		}
		p.Deadline = &deadline
	}
	if req.Status != nil {
		v := model.Status(*req.Status)
		p.Status = &v
	}
	if hasJSONField(raw, "effort") {
		effort := model.DefaultEffort
		if req.Effort != nil && strings.TrimSpace(*req.Effort) != "" {
			effort = strings.TrimSpace(*req.Effort)
		}
		p.Effort = &effort
	}
	if hasJSONField(raw, "tags") {
		tags := []string{}
		if req.Tags != nil {
			tags = trimAll(*req.Tags)
		}
		p.Tags = &tags
	}
	if hasJSONField(raw, "dependencies") {
		deps := []string{}
		if req.Dependencies != nil {
			deps = trimAll(*req.Dependencies)
		}
		p.Dependencies = &deps
	}
	return p, nil
}

// ParseDeadline accepts RFC 3339, or a datetime-local value read in loc.
func ParseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(datetimeLocal, s, loc)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasTaskUpdateFields(raw map[string]json.RawMessage) bool {
	for _, field := range []string{"name", "description", "priority", "category", "deadline", "status", "effort", "tags", "dependencies"} {
		if hasJSONField(raw, field) {
			return true
		}
	}
	return false
}

func hasJSONField(raw map[string]json.RawMessage, field string) bool {
	_, ok := raw[field]
	return ok
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}
