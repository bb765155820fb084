package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Exporter runs `task export`.
type Exporter struct {
	// Bin is the Taskwarrior binary, "task" by default.
	Bin string
}

func NewExporter() *Exporter {
	return &Exporter{Bin: "task"}
}

// Export returns the tasks matching filter. Hooks are disabled so an
// on-modify hook cannot recurse into this process.
func (e *Exporter) Export(ctx context.Context, filter ...string) ([]Task, error) {
	args := make([]string, 0, len(filter)+2)
	args = append(args, filter...)
	args = append(args, "rc.hooks=0", "export")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s export exited with %d: %s", e.Bin, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s export: %w", e.Bin, err)
	}
	return Decode(bytes.NewReader(out))
}

// Decode reads tasks from r. It accepts the JSON array written by
// `task export` as well as objects written one after another, the way
// hooks receive them.
func Decode(r io.Reader) ([]Task, error) {
	dec := json.NewDecoder(r)
	var tasks []Task
	for {
		var raw json.RawMessage
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return tasks, nil
		}
		if err != nil {
			return nil, fmt.Errorf("taskwarrior json: %w", err)
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var batch []Task
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("taskwarrior json: %w", err)
			}
			tasks = append(tasks, batch...)
			continue
		}
		var t Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("taskwarrior json: %w", err)
		}
		tasks = append(tasks, t)
	}
}
