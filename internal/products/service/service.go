package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expiry-tracker/internal/calendar"
	"expiry-tracker/internal/products"
	"expiry-tracker/internal/products/store"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultCalendarTimeout = 5 * time.Second

const (
	opCreateReminder = "create"
	opDeleteReminder = "delete"
)

type Store interface {
	GetByID(ctx context.Context, id int64) (products.Product, error)
	List(ctx context.Context) ([]products.Product, error)
	Insert(ctx context.Context, p products.Product) (int64, error)
	Update(ctx context.Context, p products.Product) error
	Delete(ctx context.Context, id int64) error
	SubscribeAll(ctx context.Context) (*store.Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, event products.ProductEvent) error
}

// Metrics groups the service counters. CalendarFailures is labelled by operation.
type Metrics struct {
	Created          prometheus.Counter
	Updated          prometheus.Counter
	Deleted          prometheus.Counter
	CalendarFailures *prometheus.CounterVec
}

// Service keeps each product's calendar mirror in step with its record.
// The store is authoritative: calendar failures degrade to "no reminder" and
// never block or roll back persistence. Mutations for the same product must
// not be issued concurrently.
type Service struct {
	store           Store
	calendar        calendar.Gateway
	publisher       Publisher
	logger          *slog.Logger
	metrics         Metrics
	calendarTimeout time.Duration
	location        *time.Location
	now             func() time.Time
}

type Option func(*Service)

func WithCalendarTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.calendarTimeout = d
		}
	}
}

// WithLocation sets the zone used to decide what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(st Store, cal calendar.Gateway, publisher Publisher, logger *slog.Logger, metrics Metrics, opts ...Option) *Service {
	s := &Service{
		store:           st,
		calendar:        cal,
		publisher:       publisher,
		logger:          logger,
		metrics:         metrics,
		calendarTimeout: defaultCalendarTimeout,
		location:        time.UTC,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the service location.
func (s *Service) Today() products.Date {
	return products.Today(s.now(), s.location)
}

// AddFromInput parses raw form values and adds the product.
func (s *Service) AddFromInput(ctx context.Context, name, productionDate, shelfLifeDays string) (products.Product, error) {
	in, err := products.ParseInput(name, productionDate, shelfLifeDays)
	if err != nil {
		return products.Product{}, err
	}
	return s.Add(ctx, in)
}

func (s *Service) Add(ctx context.Context, in products.Input) (products.Product, error) {
	if err := in.Validate(); err != nil {
		return products.Product{}, err
	}

	p := products.Product{
		Name:           in.Name,
		ProductionDate: in.ProductionDate,
		ShelfLifeDays:  in.ShelfLifeDays,
		ExpiryDate:     products.DeriveExpiry(in.ProductionDate, in.ShelfLifeDays),
	}
	p.CalendarEventID = s.createReminder(ctx, p)

	id, err := s.store.Insert(ctx, p)
	if err != nil {
		s.discardReminder(ctx, p.CalendarEventID)
		return products.Product{}, fmt.Errorf("store insert: %w", err)
	}
	p.ID = id

	s.publish(ctx, products.EventCreated, p)
	s.metrics.Created.Inc()
	return p, nil
}

// Update applies the user-editable fields of p to the stored product with
// p.ID and replaces its reminder. The stored calendar event id is
// authoritative; p.CalendarEventID is ignored.
func (s *Service) Update(ctx context.Context, p products.Product) (products.Product, error) {
	in := products.Input{Name: p.Name, ProductionDate: p.ProductionDate, ShelfLifeDays: p.ShelfLifeDays}
	if err := in.Validate(); err != nil {
		return products.Product{}, err
	}

	current, err := s.store.GetByID(ctx, p.ID)
	if err != nil {
		return products.Product{}, fmt.Errorf("store get: %w", err)
	}

	next := products.Product{
		ID:             current.ID,
		Name:           in.Name,
		ProductionDate: in.ProductionDate,
		ShelfLifeDays:  in.ShelfLifeDays,
		ExpiryDate:     products.DeriveExpiry(in.ProductionDate, in.ShelfLifeDays),
	}

	created := false
	if current.HasReminder() && sameReminder(current, next) {
		next.CalendarEventID = current.CalendarEventID
	} else {
		if current.HasReminder() {
			s.deleteReminder(ctx, *current.CalendarEventID)
		}
		next.CalendarEventID = s.createReminder(ctx, next)
		created = true
	}

	if err := s.store.Update(ctx, next); err != nil {
		if created {
			s.discardReminder(ctx, next.CalendarEventID)
		}
		return products.Product{}, fmt.Errorf("store update: %w", err)
	}

	s.publish(ctx, products.EventUpdated, next)
	s.metrics.Updated.Inc()
	return next, nil
}

// UpdateFromInput parses raw form values and updates product id.
func (s *Service) UpdateFromInput(ctx context.Context, id int64, name, productionDate, shelfLifeDays string) (products.Product, error) {
	in, err := products.ParseInput(name, productionDate, shelfLifeDays)
	if err != nil {
		return products.Product{}, err
	}
	return s.Update(ctx, products.Product{
		ID:             id,
		Name:           in.Name,
		ProductionDate: in.ProductionDate,
		ShelfLifeDays:  in.ShelfLifeDays,
	})
}

// Delete removes the stored product with p.ID and, best-effort, its
// reminder. The stored calendar event id is authoritative. A product that is
// already gone yields ErrNotFound and touches nothing.
func (s *Service) Delete(ctx context.Context, p products.Product) error {
	current, err := s.store.GetByID(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("store get: %w", err)
	}

	if current.HasReminder() {
		s.deleteReminder(ctx, *current.CalendarEventID)
	}

	if err := s.store.Delete(ctx, current.ID); err != nil {
		return fmt.Errorf("store delete: %w", err)
	}

	s.publish(ctx, products.EventDeleted, current)
	s.metrics.Deleted.Inc()
	return nil
}

func (s *Service) DeleteByID(ctx context.Context, id int64) error {
	return s.Delete(ctx, products.Product{ID: id})
}

func (s *Service) Get(ctx context.Context, id int64) (products.Product, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return products.Product{}, fmt.Errorf("store get: %w", err)
	}
	return p, nil
}

// List returns all products sorted by expiry date, described relative to today.
func (s *Service) List(ctx context.Context) ([]products.View, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("store list: %w", err)
	}
	return products.DescribeAll(list, s.Today()), nil
}

func (s *Service) Subscribe(ctx context.Context) (*store.Subscription, error) {
	return s.store.SubscribeAll(ctx)
}

func sameReminder(a, b products.Product) bool {
	return a.Name == b.Name && a.ExpiryDate == b.ExpiryDate
}

func (s *Service) publish(ctx context.Context, eventType string, p products.Product) {
	event := products.ProductEvent{
		EventType: eventType,
		ProductID: p.ID,
		Name:      p.Name,
		Timestamp: s.now().UTC(),
	}
	if eventType != products.EventDeleted {
		event.ExpiryDate = p.ExpiryDate.String()
		event.Status = products.Classify(products.DaysUntilExpiry(p.ExpiryDate, s.Today()))
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("publish product event failed",
			"event_type", eventType,
			"product_id", p.ID,
			"error", err,
		)
	}
}

type createResult struct {
	id  int64
	err error
}

// createReminder returns the new event id, or nil when the calendar is
// unavailable, fails or does not answer within the calendar timeout.
func (s *Service) createReminder(ctx context.Context, p products.Product) *int64 {
	callCtx, cancel := context.WithTimeout(ctx, s.calendarTimeout)
	defer cancel()

	reminder := calendar.Reminder{
		Title:       products.ReminderTitle(p.Name),
		Description: products.ReminderDescription(p.Name, p.ExpiryDate),
		Date:        p.ExpiryDate,
	}

	done := make(chan createResult, 1)
	go func() {
		id, err := s.calendar.CreateReminder(callCtx, reminder)
		done <- createResult{id: id, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			s.calendarFailed(opCreateReminder, p.ID, res.err)
			return nil
		}
		id := res.id
		return &id
	case <-callCtx.Done():
		s.calendarFailed(opCreateReminder, p.ID, fmt.Errorf("%w: %v", calendar.ErrUnavailable, callCtx.Err()))
		go s.discardLate(done)
		return nil
	}
}

// discardLate removes an event whose creation finished after we gave up on it.
func (s *Service) discardLate(done <-chan createResult) {
	res := <-done
	if res.err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.calendarTimeout)
	defer cancel()
	if _, err := s.calendar.DeleteReminder(ctx, res.id); err != nil {
		s.logger.Warn("remove late calendar reminder failed", "event_id", res.id, "error", err)
	}
}

func (s *Service) deleteReminder(ctx context.Context, eventID int64) {
	callCtx, cancel := context.WithTimeout(ctx, s.calendarTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		removed, err := s.calendar.DeleteReminder(callCtx, eventID)
		if err == nil && !removed {
			s.logger.Debug("calendar reminder already gone", "event_id", eventID)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			s.calendarFailed(opDeleteReminder, 0, err, "event_id", eventID)
		}
	case <-callCtx.Done():
		s.calendarFailed(opDeleteReminder, 0, fmt.Errorf("%w: %v", calendar.ErrUnavailable, callCtx.Err()), "event_id", eventID)
	}
}

func (s *Service) discardReminder(ctx context.Context, eventID *int64) {
	if eventID != nil {
		s.deleteReminder(context.WithoutCancel(ctx), *eventID)
	}
}

func (s *Service) calendarFailed(op string, productID int64, err error, kv ...any) {
	s.metrics.CalendarFailures.WithLabelValues(op).Inc()

	attrs := append([]any{"operation", op, "error", err}, kv...)
	if productID != 0 {
		attrs = append(attrs, "product_id", productID)
	}
	if errors.Is(err, calendar.ErrUnavailable) {
		s.logger.Warn("calendar unavailable", attrs...)
		return
	}
	s.logger.Error("calendar call failed", attrs...)
}
