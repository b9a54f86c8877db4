package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	productID = "-//expiry-tracker//reminders//EN"
	uidDomain = "expiry-tracker"

	propNextEventID ical.Property          = "X-EXPIRY-TRACKER-NEXT-ID"
	propEventID     ical.ComponentProperty = "X-EXPIRY-TRACKER-ID"
)

// ICSCalendar keeps reminders in a single iCalendar file that calendar
// applications can subscribe to. Every call reads, modifies and atomically
// rewrites the file; filesystem failures surface as ErrUnavailable.
type ICSCalendar struct {
	path        string
	alarmOffset time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu sync.Mutex
}

func NewICS(path string, alarmOffset time.Duration, logger *slog.Logger) *ICSCalendar {
	if alarmOffset <= 0 {
		alarmOffset = DefaultAlarmOffset
	}
	return &ICSCalendar{
		path:        path,
		alarmOffset: alarmOffset,
		logger:      logger,
		now:         time.Now,
	}
}

func (c *ICSCalendar) CreateReminder(ctx context.Context, r Reminder) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return 0, err
	}

	id := nextEventID(cal)
	setNextEventID(cal, id+1)

	now := c.now().UTC()
	event := cal.AddEvent(uuid.NewString() + "@" + uidDomain)
	event.SetProperty(propEventID, strconv.FormatInt(id, 10))
	event.SetCreatedTime(now)
	event.SetDtStampTime(now)
	event.SetAllDayStartAt(r.Date.Time())
	event.SetAllDayEndAt(r.Date.AddDays(1).Time())
	event.SetSummary(r.Title)
	if r.Description != "" {
		event.SetDescription(r.Description)
	}

	alarm := event.AddAlarm()
	alarm.SetAction(ical.ActionDisplay)
	alarm.SetTrigger(alarmTrigger(c.alarmOffset))
	alarm.SetDescription(r.Title)

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := c.save(cal); err != nil {
		return 0, err
	}

	c.logger.Debug("calendar reminder created", "event_id", id, "date", r.Date.String())
	return id, nil
}

func (c *ICSCalendar) DeleteReminder(ctx context.Context, eventID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return false, err
	}

	want := strconv.FormatInt(eventID, 10)
	kept := cal.Components[:0]
	removed := false
	for _, comp := range cal.Components {
		if ev, ok := comp.(*ical.VEvent); ok && eventIDOf(ev) == want {
			removed = true
			continue
		}
		kept = append(kept, comp)
	}
	if !removed {
		return false, nil
	}
	cal.Components = kept

	if err := c.save(cal); err != nil {
		return false, err
	}

	c.logger.Debug("calendar reminder deleted", "event_id", eventID)
	return true, nil
}

// Feed returns the serialized calendar, or an empty calendar when nothing
// has been written yet.
func (c *ICSCalendar) Feed(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cal, err := c.load()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := cal.SerializeTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize calendar: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *ICSCalendar) load() (*ical.Calendar, error) {
	f, err := os.Open(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newCalendar(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, c.path, err)
	}
	defer f.Close()

	cal, err := ical.ParseCalendar(f)
	if err != nil {
		return nil, fmt.Errorf("parse calendar %s: %w", c.path, err)
	}
	return cal, nil
}

func (c *ICSCalendar) save(cal *ical.Calendar) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrUnavailable, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".reminders-*.ics")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if err := cal.SerializeTo(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("serialize calendar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write calendar: %v", ErrUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("%w: replace %s: %v", ErrUnavailable, c.path, err)
	}
	return nil
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Expiry reminders")
	return cal
}

func nextEventID(cal *ical.Calendar) int64 {
	for _, p := range cal.CalendarProperties {
		if p.IANAToken != string(propNextEventID) {
			continue
		}
		if id, err := strconv.ParseInt(p.Value, 10, 64); err == nil && id > 0 {
			return id
		}
	}

	// No counter yet: continue after the highest id present.
	var max int64
	for _, ev := range cal.Events() {
		if id, err := strconv.ParseInt(eventIDOf(ev), 10, 64); err == nil && id > max {
			max = id
		}
	}
	return max + 1
}

func setNextEventID(cal *ical.Calendar, next int64) {
	value := strconv.FormatInt(next, 10)
	for i := range cal.CalendarProperties {
		if cal.CalendarProperties[i].IANAToken == string(propNextEventID) {
			cal.CalendarProperties[i].Value = value
			return
		}
	}
	cal.CalendarProperties = append(cal.CalendarProperties, ical.CalendarProperty{
		BaseProperty: ical.BaseProperty{IANAToken: string(propNextEventID), Value: value},
	})
}

func eventIDOf(ev *ical.VEvent) string {
	if p := ev.GetProperty(propEventID); p != nil {
		return p.Value
	}
	return ""
}

// alarmTrigger renders a negative RFC 5545 duration such as -PT60M.
func alarmTrigger(offset time.Duration) string {
	return fmt.Sprintf("-PT%dM", int(offset.Minutes()))
}
