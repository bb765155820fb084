package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const testCalendarID = "cal-1"

// fakeCalendar serves the handful of Calendar API calls the client makes.
type fakeCalendar struct {
	mu     sync.Mutex
	events map[string]*calendar.Event
	seq    int
	calls  map[string]int
}

func newFakeCalendar(t *testing.T) (*fakeCalendar, *calendar.Service) {
	t.Helper()
	f := &fakeCalendar{events: make(map[string]*calendar.Event), calls: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /calendar/v3/users/me/calendarList", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &calendar.CalendarList{Items: []*calendar.CalendarListEntry{
			{Id: "other", Summary: "Birthdays"},
			{Id: testCalendarID, Summary: "Tasks"},
		}})
	})
	mux.HandleFunc("GET /calendar/v3/calendars/{cal}/events", f.list)
	mux.HandleFunc("POST /calendar/v3/calendars/{cal}/events", f.insert)
	mux.HandleFunc("GET /calendar/v3/calendars/{cal}/events/{id}", f.get)
	mux.HandleFunc("PATCH /calendar/v3/calendars/{cal}/events/{id}", f.patch)
	mux.HandleFunc("DELETE /calendar/v3/calendars/{cal}/events/{id}", f.delete)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/calendar/v3/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return f, svc
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"code": http.StatusNotFound, "message": "Not Found"},
	})
}

func (f *fakeCalendar) list(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list"]++

	want := r.URL.Query().Get("privateExtendedProperty")
	out := &calendar.Events{}
	for _, e := range f.sortedLocked() {
		if e.Status == "cancelled" {
			continue
		}
		if want != "" {
			key, value, _ := strings.Cut(want, "=")
			if e.ExtendedProperties == nil || e.ExtendedProperties.Private[key] != value {
				continue
			}
		}
		out.Items = append(out.Items, e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (f *fakeCalendar) insert(w http.ResponseWriter, r *http.Request) {
	var e calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert"]++
	f.seq++
	e.Id = fmt.Sprintf("evt-%d", f.seq)
	e.Status = "confirmed"
	f.events[e.Id] = &e
	writeJSON(w, http.StatusOK, &e)
}

func (f *fakeCalendar) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	e, ok := f.events[r.PathValue("id")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (f *fakeCalendar) patch(w http.ResponseWriter, r *http.Request) {
	var p calendar.Event
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["patch"]++
	e, ok := f.events[r.PathValue("id")]
	if !ok {
		notFound(w)
		return
	}
	if p.Summary != "" {
		e.Summary = p.Summary
	}
	if p.Description != "" {
		e.Description = p.Description
	}
	if p.ColorId != "" {
		e.ColorId = p.ColorId
	}
	if p.Start != nil {
		e.Start = p.Start
	}
	if p.End != nil {
		e.End = p.End
	}
	writeJSON(w, http.StatusOK, e)
}

func (f *fakeCalendar) delete(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	e, ok := f.events[r.PathValue("id")]
	if !ok || e.Status == "cancelled" {
		writeJSON(w, http.StatusGone, map[string]any{
			"error": map[string]any{"code": http.StatusGone, "message": "Resource has been deleted"},
		})
		return
	}
	e.Status = "cancelled"
	w.WriteHeader(http.StatusNoContent)
}

// sortedLocked must be called with mu held.
func (f *fakeCalendar) sortedLocked() []*calendar.Event {
	out := make([]*calendar.Event, 0, len(f.events))
	for i := 1; i <= f.seq; i++ {
		if e, ok := f.events[fmt.Sprintf("evt-%d", i)]; ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeCalendar) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

// live returns the non-cancelled event mirroring taskID.
func (f *fakeCalendar) live(taskID string) *calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.sortedLocked() {
		if e.Status != "cancelled" && e.ExtendedProperties != nil && e.ExtendedProperties.Private[TaskIDProperty] == taskID {
			copied := *e
			return &copied
		}
	}
	return nil
}
