// Package calendar mirrors product expiry dates as reminder events in an
// external calendar. Gateways perform a single attempt per call; callers
// decide what a failure means.
package calendar

import (
	"context"
	"errors"
	"time"

	"expiry-tracker/internal/products"
)

// ErrUnavailable means the calendar could not be reached or written.
// It is an expected outcome, not a fault of the caller.
var ErrUnavailable = errors.New("calendar unavailable")

// DefaultAlarmOffset is how long before the event start the alert fires.
const DefaultAlarmOffset = 60 * time.Minute

// Reminder is the content of one all-day reminder event.
type Reminder struct {
	Title       string
	Description string
	Date        products.Date
}

// Gateway creates and removes reminder events.
type Gateway interface {
	CreateReminder(ctx context.Context, r Reminder) (int64, error)
	// DeleteReminder reports whether a matching event was removed.
	// A missing event is not an error.
	DeleteReminder(ctx context.Context, eventID int64) (bool, error)
}

// Disabled is used when no calendar is configured.
type Disabled struct{}

func (Disabled) CreateReminder(context.Context, Reminder) (int64, error) {
	return 0, ErrUnavailable
}

func (Disabled) DeleteReminder(context.Context, int64) (bool, error) {
	return false, ErrUnavailable
}
