// Package google mirrors tasks onto a Google Calendar.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/harrisonrobin/taskmaster/pkg/index"
	"github.com/harrisonrobin/taskmaster/pkg/model"
)

// CalendarClient is a Google Calendar API client bound to one calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	logger     *zap.Logger
}

// NewCalendarClient wraps srv. idx may be nil, every lookup then goes
// through the search API.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, logger *zap.Logger) *CalendarClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, logger: logger}
}

func (c *CalendarClient) CalendarID() string { return c.calendarID }

// SyncEvent creates the event mirroring task or patches the existing one
// where it differs.
func (c *CalendarClient) SyncEvent(ctx context.Context, task model.Task, now time.Time) (*calendar.Event, error) {
	event, err := ConvertTaskToEvent(task, now)
	if err != nil {
		return nil, err
	}

	existing, err := c.findEvent(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("error searching for event: %w", err)
	}

	if existing != nil {
		patch, err := EventNeedsUpdate(existing, event)
		if err != nil {
			c.logger.Warn("could not compare task with its calendar event", zap.String("task", task.ID), zap.Error(err))
			return nil, err
		}
		if patch == nil {
			c.remember(task.ID, existing.Id)
			return existing, nil
		}
		updated, err := c.PatchEvent(ctx, existing.Id, patch)
		if err != nil {
			return nil, err
		}
		c.remember(task.ID, updated.Id)
		return updated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	c.remember(task.ID, created.Id)
	return created, nil
}

// findEvent tries the local index first and falls back to the search API.
func (c *CalendarClient) findEvent(ctx context.Context, taskID string) (*calendar.Event, error) {
	if c.index != nil {
		if eventID := c.index.Get(taskID); eventID != "" {
			existing, err := c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err == nil && existing.Status != "cancelled" {
				return existing, nil
			}
			c.index.Remove(taskID)
		}
	}
	return c.GetEventByTaskID(ctx, taskID)
}

func (c *CalendarClient) remember(taskID, eventID string) {
	if c.index != nil {
		c.index.Set(taskID, eventID)
	}
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event. An event that is already gone is not an
// error.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if isGone(err) {
		return nil
	}
	return err
}

// DeleteTask removes the event mirroring taskID, if any.
func (c *CalendarClient) DeleteTask(ctx context.Context, taskID string) error {
	existing, err := c.findEvent(ctx, taskID)
	if err != nil {
		return fmt.Errorf("error searching for event: %w", err)
	}
	if c.index != nil {
		c.index.Remove(taskID)
	}
	if existing == nil {
		return nil
	}
	return c.DeleteEvent(ctx, existing.Id)
}

// ListEvents fetches events starting from timeMin.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).TimeMin(timeMin.Format(time.RFC3339)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from calendar: %w", err)
	}
	return events.Items, nil
}

// GetEventByTaskID searches for the event carrying taskID in its private
// extended properties. It returns nil, nil when there is none.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
