// Package calendar reads events from the gog command-line tool. The dashboard
// always gets something to render: a missing binary yields no events and a
// failing one yields a small fixed set.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultBinary is the calendar CLI looked up on PATH.
const DefaultBinary = "gog"

// upcomingLimit caps the "upcoming" window.
const upcomingLimit = 50

// timeFormat is the ISO-8601 UTC form passed to the CLI and used in fallback data.
const timeFormat = "2006-01-02T15:04:05.000Z"

// Source says where a result came from.
type Source string

const (
	SourceCLI         Source = "cli"
	SourceFallback    Source = "fallback"
	SourceUnavailable Source = "unavailable"
)

// Event is a normalised calendar event.
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Location    string   `json:"location,omitempty"`
	Attendees   []string `json:"attendees,omitempty"`
	CalendarID  string   `json:"calendarId"`
	IsAllDay    bool     `json:"isAllDay"`
	URL         string   `json:"url,omitempty"`
}

// Calendar is a calendar the CLI account can read.
type Calendar struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	Primary bool   `json:"primary"`
}

// Options bound an event query. Zero values are omitted from the command line.
type Options struct {
	CalendarID string
	TimeMin    time.Time
	TimeMax    time.Time
	MaxResults int
}

// Runner executes the calendar CLI.
type Runner struct {
	bin     string
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// NewRunner creates a Runner. timeout bounds each invocation (0 = 20s).
func NewRunner(bin string, timeout time.Duration, logger zerolog.Logger) *Runner {
	if bin == "" {
		bin = DefaultBinary
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Runner{
		bin:     bin,
		timeout: timeout,
		logger:  logger.With().Str("component", "calendar").Logger(),
		now:     time.Now,
	}
}

// SetClock replaces the time source (for testing).
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}

// Available reports whether the CLI binary can be found.
func (r *Runner) Available() bool {
	_, err := exec.LookPath(r.bin)
	return err == nil
}

// Events returns events matching opts.
func (r *Runner) Events(ctx context.Context, opts Options) ([]Event, Source) {
	if !r.Available() {
		r.logger.Debug().Str("bin", r.bin).Msg("calendar cli not installed")
		return []Event{}, SourceUnavailable
	}

	args := []string{"calendar", "events"}
	if opts.CalendarID != "" {
		args = append(args, "--calendar-id", opts.CalendarID)
	}
	if !opts.TimeMin.IsZero() {
		args = append(args, "--time-min", opts.TimeMin.UTC().Format(timeFormat))
	}
	if !opts.TimeMax.IsZero() {
		args = append(args, "--time-max", opts.TimeMax.UTC().Format(timeFormat))
	}
	if opts.MaxResults > 0 {
		args = append(args, "--max-results", strconv.Itoa(opts.MaxResults))
	}
	args = append(args, "--format", "json")

	out, err := r.run(ctx, args...)
	if err == nil {
		var events []Event
		events, err = parseEvents(out, opts.CalendarID)
		if err == nil {
			return events, SourceCLI
		}
	}
	r.logger.Error().Err(err).Msg("failed to fetch calendar events")
	return fallbackEvents(r.now()), SourceFallback
}

// Today returns events from local midnight to the next midnight.
func (r *Runner) Today(ctx context.Context) ([]Event, Source) {
	now := r.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return r.Events(ctx, Options{TimeMin: start, TimeMax: start.AddDate(0, 0, 1)})
}

// Upcoming returns at most 50 events from now until now+days.
func (r *Runner) Upcoming(ctx context.Context, days int) ([]Event, Source) {
	now := r.now()
	return r.Events(ctx, Options{
		TimeMin:    now,
		TimeMax:    now.Add(time.Duration(days) * 24 * time.Hour),
		MaxResults: upcomingLimit,
	})
}

// Range resolves a named window: "today", "week" (7 days) or anything else
// as "upcoming" (14 days).
func (r *Runner) Range(ctx context.Context, name string) ([]Event, Source) {
	switch name {
	case "today":
		return r.Today(ctx)
	case "week":
		return r.Upcoming(ctx, 7)
	default:
		return r.Upcoming(ctx, 14)
	}
}

// Calendars lists the calendars the CLI account can read.
func (r *Runner) Calendars(ctx context.Context) ([]Calendar, Source) {
	if !r.Available() {
		return []Calendar{{ID: "primary", Name: "Primary", Primary: true}}, SourceUnavailable
	}
	out, err := r.run(ctx, "calendar", "list", "--format", "json")
	if err == nil {
		var cals []Calendar
		cals, err = parseCalendars(out)
		if err == nil {
			return cals, SourceCLI
		}
	}
	r.logger.Error().Err(err).Msg("failed to fetch calendars")
	return []Calendar{
		{ID: "primary", Name: "Primary", Primary: true},
		{ID: "work", Name: "Work", Primary: false},
	}, SourceFallback
}

func (r *Runner) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug().Str("bin", r.bin).Strs("args", args).Msg("running calendar cli")

	err := cmd.Run()
	if msg := strings.TrimSpace(stderr.String()); msg != "" && !strings.Contains(msg, "warning") {
		r.logger.Warn().Str("stderr", msg).Msg("calendar cli wrote to stderr")
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.bin, strings.Join(args[:2], " "), err)
	}
	return stdout.Bytes(), nil
}

// parseEvents normalises the CLI output. A bare array and an {"events": [...]}
// wrapper are both accepted.
func parseEvents(out []byte, calendarID string) ([]Event, error) {
	list, err := jsonList(out, "events")
	if err != nil {
		return nil, err
	}
	if calendarID == "" {
		calendarID = "primary"
	}

	events := make([]Event, 0, len(list))
	for _, e := range list {
		ev := Event{
			ID:          e.Get("id").String(),
			Title:       firstString(e, "summary", "title"),
			Description: e.Get("description").String(),
			StartTime:   firstString(e, "start.dateTime", "start.date"),
			EndTime:     firstString(e, "end.dateTime", "end.date"),
			Location:    e.Get("location").String(),
			CalendarID:  firstString(e, "calendarId"),
			IsAllDay:    e.Get("start.date").String() != "" && e.Get("start.dateTime").String() == "",
			URL:         firstString(e, "htmlLink", "url"),
		}
		if ev.Title == "" {
			ev.Title = "Untitled"
		}
		if ev.CalendarID == "" {
			ev.CalendarID = calendarID
		}
		for _, a := range e.Get("attendees").Array() {
			if email := a.Get("email").String(); email != "" {
				ev.Attendees = append(ev.Attendees, email)
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseCalendars(out []byte) ([]Calendar, error) {
	list, err := jsonList(out, "calendars")
	if err != nil {
		return nil, err
	}
	cals := make([]Calendar, 0, len(list))
	for _, c := range list {
		id := c.Get("id").String()
		cals = append(cals, Calendar{
			ID:      id,
			Name:    firstString(c, "summary", "name"),
			Color:   c.Get("color").String(),
			Primary: c.Get("primary").Bool() || id == "primary",
		})
	}
	return cals, nil
}

func jsonList(out []byte, wrapper string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("calendar cli returned invalid JSON")
	}
	doc := gjson.ParseBytes(out)
	if doc.IsObject() {
		doc = doc.Get(wrapper)
	}
	if !doc.IsArray() {
		return nil, fmt.Errorf("calendar cli returned %s, want a list", doc.Type)
	}
	return doc.Array(), nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}

func fallbackEvents(now time.Time) []Event {
	at := func(d time.Duration) string { return now.Add(d).UTC().Format(timeFormat) }
	return []Event{
		{
			ID:          "evt-1",
			Title:       "Mission Control Review",
			Description: "Weekly dashboard review",
			StartTime:   at(2 * time.Hour),
			EndTime:     at(3 * time.Hour),
			CalendarID:  "primary",
		},
		{
			ID:         "evt-2",
			Title:      "Team Standup",
			StartTime:  at(24 * time.Hour),
			EndTime:    at(24*time.Hour + 30*time.Minute),
			CalendarID: "work",
		},
	}
}
