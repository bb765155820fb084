// Package orgmode reads TODO and DONE headlines with a DEADLINE from
// Org-mode files so they can be imported as tasks.
package orgmode

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrisonrobin/taskmaster/pkg/model"
)

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|NEXT|WAITING|DONE)(?:\s+|$)(?:\[#([A-Z])\]\s*)?(.*?)(?:\s+(:(\w+(:\w+)*):))?\s*$`)
	anyHeadline   = regexp.MustCompile(`^\*+\s`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{2}:\d{2}))?[^>]*>`)
	idRegex       = regexp.MustCompile(`:ID:\s+(\S+)`)
	effortRegex   = regexp.MustCompile(`:Effort:\s+(\d+):(\d{2})`)
)

// Entry is one dated headline.
type Entry struct {
	ID       string
	Source   string
	Keyword  string
	Priority string
	Name     string
	Tags     []string
	Deadline time.Time
	Effort   string
}

// ParseFiles parses every file in order.
func ParseFiles(filePaths []string, loc *time.Location) ([]Entry, error) {
	var all []Entry
	for _, filePath := range filePaths {
		entries, err := parseFile(filePath, loc)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func parseFile(filePath string, loc *time.Location) ([]Entry, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Parse(file, filePath, loc)
}

// Parse reads r and returns the TODO-style headlines carrying a deadline.
// Deadlines without a time fall at the end of the day in loc.
func Parse(r io.Reader, source string, loc *time.Location) ([]Entry, error) {
	zap.L().Debug("parsing org file", zap.String("source", source))
	scanner := bufio.NewScanner(r)
	var entries []Entry
	var current *Entry

	flush := func() {
		if current != nil && current.Name != "" && !current.Deadline.IsZero() {
			entries = append(entries, *current)
		}
		current = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if anyHeadline.MatchString(line) {
			flush()
			matches := headlineRegex.FindStringSubmatch(line)
			if matches == nil {
				continue
			}
			current = &Entry{
				Source:   source,
				Keyword:  matches[1],
				Priority: matches[2],
				Name:     strings.TrimSpace(matches[3]),
			}
			if matches[4] != "" {
				current.Tags = strings.Split(strings.Trim(matches[4], ":"), ":")
			}
			continue
		}
		if current == nil {
			continue
		}

		if m := deadlineRegex.FindStringSubmatch(line); m != nil {
			current.Deadline = parseDeadline(m[1], m[2], loc)
		}
		if m := idRegex.FindStringSubmatch(line); m != nil {
			current.ID = m[1]
		}
		if m := effortRegex.FindStringSubmatch(line); m != nil {
			current.Effort = m[1] + " hr " + m[2] + " min"
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func parseDeadline(day, clock string, loc *time.Location) time.Time {
	if clock == "" {
		t, err := time.ParseInLocation(time.DateOnly, day, loc)
		if err != nil {
			return time.Time{}
		}
		return t.Add(23*time.Hour + 59*time.Minute)
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", day+" "+clock, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

var priorities = map[string]model.Priority{
	"A": model.PriorityUrgent,
	"B": model.PriorityHigh,
	"C": model.PriorityLow,
}

// ToDraft maps e onto a new task. The first tag naming a category sets
// it, personal otherwise.
func ToDraft(e Entry) model.Draft {
	d := model.Draft{
		Name:     e.Name,
		Priority: model.PriorityMedium,
		Category: model.CategoryPersonal,
		Deadline: e.Deadline,
		Status:   model.StatusTodo,
		Effort:   e.Effort,
		Tags:     append([]string(nil), e.Tags...),
	}
	if p, ok := priorities[e.Priority]; ok {
		d.Priority = p
	}
	switch e.Keyword {
	case "DONE":
		d.Status = model.StatusCompleted
	case "NEXT":
		d.Status = model.StatusInProgress
	case "WAITING":
		d.Status = model.StatusBlocked
	}
	for _, tag := range e.Tags {
		if c := model.Category(strings.ToLower(tag)); c.Valid() {
			d.Category = c
			break
		}
	}
	return d
}

// FilterEntries keeps the entries carrying tag.
func FilterEntries(entries []Entry, tag string) []Entry {
	var filtered []Entry
	for _, e := range entries {
		for _, t := range e.Tags {
			if t == tag {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}
