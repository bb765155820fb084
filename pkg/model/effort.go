package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	effortPart = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([a-z]+)`)
	isoPart    = regexp.MustCompile(`(\d+)([HMS])`)
)

// ParseEffort turns a free-form effort label such as "1 hr", "2 hrs 30 min",
// "1.5 hours", "2 days" or ISO 8601 "PT1H30M" into a duration.
// An empty label parses to zero.
func ParseEffort(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if strings.HasPrefix(s, "PT") {
		return parseISODuration(s)
	}

	matches := effortPart.FindAllStringSubmatch(strings.ToLower(s), -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid effort %q", s)
	}

	var total time.Duration
	for _, match := range matches {
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid effort %q: %w", s, err)
		}
		unit, ok := effortUnit(match[2])
		if !ok {
			return 0, fmt.Errorf("invalid effort unit %q in %q", match[2], s)
		}
		total += time.Duration(value * float64(unit))
	}
	return total, nil
}

func effortUnit(word string) (time.Duration, bool) {
	switch word {
	case "m", "min", "mins", "minute", "minutes":
		return time.Minute, true
	case "h", "hr", "hrs", "hour", "hours":
		return time.Hour, true
	case "d", "day", "days":
		return 24 * time.Hour, true
	case "w", "wk", "wks", "week", "weeks":
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

func parseISODuration(s string) (time.Duration, error) {
	var total time.Duration
	for _, match := range isoPart.FindAllStringSubmatch(s[2:], -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: %s", s)
	}
	return total, nil
}
