package google

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/taskmaster/pkg/auth"
	"github.com/harrisonrobin/taskmaster/pkg/index"
)

// NewClient authenticates with the token cached in configDir and binds to
// the calendar named calendarName.
func NewClient(ctx context.Context, configDir, calendarName string, idx *index.EventIndex, logger *zap.Logger) (*CalendarClient, error) {
	srv, err := auth.GetCalendarService(ctx, configDir)
	if err != nil {
		return nil, err
	}
	return NewClientForService(ctx, srv, calendarName, idx, logger)
}

// NewClientForService looks calendarName up in the user's calendar list.
func NewClientForService(ctx context.Context, srv *calendar.Service, calendarName string, idx *index.EventIndex, logger *zap.Logger) (*CalendarClient, error) {
	calendarID, err := findCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, logger), nil
}

func findCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
