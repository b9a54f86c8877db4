// Package report keeps the products_by_status gauge current. Status depends
// on the date, so the gauge is refreshed on a cron schedule as well as after
// every store change.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expiry-tracker/internal/products"
	"expiry-tracker/internal/products/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

const refreshTimeout = 10 * time.Second

type Lister interface {
	List(ctx context.Context) ([]products.Product, error)
	SubscribeAll(ctx context.Context) (*store.Subscription, error)
}

type StatusReporter struct {
	lister   Lister
	gauge    *prometheus.GaugeVec
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
	cron     *cron.Cron
}

func NewStatusGauge() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "products_by_status",
		Help: "Number of tracked products by expiry status",
	}, []string{"status"})
}

func NewStatusReporter(lister Lister, gauge *prometheus.GaugeVec, loc *time.Location, logger *slog.Logger) *StatusReporter {
	if loc == nil {
		loc = time.UTC
	}
	return &StatusReporter{
		lister:   lister,
		gauge:    gauge,
		logger:   logger,
		location: loc,
		now:      time.Now,
	}
}

// Refresh recounts products by status for today.
func (r *StatusReporter) Refresh(ctx context.Context) error {
	list, err := r.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	r.set(list)
	return nil
}

func (r *StatusReporter) set(list []products.Product) {
	today := products.Today(r.now(), r.location)
	counts := make(map[products.Status]int, len(products.Statuses))
	for _, p := range list {
		counts[products.Classify(products.DaysUntilExpiry(p.ExpiryDate, today))]++
	}
	for _, status := range products.Statuses {
		r.gauge.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}

// Start schedules Refresh with a cron spec and follows store changes until
// ctx is done.
func (r *StatusReporter) Start(ctx context.Context, schedule string) error {
	r.cron = cron.New(cron.WithLocation(r.location))
	if _, err := r.cron.AddFunc(schedule, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		if err := r.Refresh(refreshCtx); err != nil {
			r.logger.Error("scheduled status refresh failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	sub, err := r.lister.SubscribeAll(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to store: %w", err)
	}

	r.cron.Start()
	go func() {
		defer sub.Cancel()
		for snapshot := range sub.Updates() {
			r.set(snapshot)
		}
	}()

	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *StatusReporter) Stop() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
}
