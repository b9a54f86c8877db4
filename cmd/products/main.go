package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"expiry-tracker/internal/calendar"
	"expiry-tracker/internal/config"
	"expiry-tracker/internal/products"
	producthttp "expiry-tracker/internal/products/http"
	"expiry-tracker/internal/products/messaging"
	"expiry-tracker/internal/products/report"
	"expiry-tracker/internal/products/repository"
	"expiry-tracker/internal/products/service"
	"expiry-tracker/internal/products/store"

	_ "expiry-tracker/docs"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	metricCreatedTotal          = "products_created_total"
	metricUpdatedTotal          = "products_updated_total"
	metricDeletedTotal          = "products_deleted_total"
	metricCalendarFailuresTotal = "calendar_failures_total"
	migrateSourcePrefix         = "file://"
)

type backend interface {
	store.Repository
	Health() error
}

// @title        Expiry Tracker API
// @version      1.0
// @description  Perishable product tracker with expiry status, live updates and calendar reminders.
// @host         localhost:8080
// @BasePath     /
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadProducts()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	repo, closeDB, err := openBackend(cfg, logger)
	if err != nil {
		logger.Error("open backend", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer closeDB()

	var publisher service.Publisher = messaging.Discard{}
	if cfg.RabbitMQURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Error("connect rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitConn.Close()

		rabbit, err := messaging.NewRabbitPublisher(rabbitConn, products.EventsQueue)
		if err != nil {
			logger.Error("init publisher", "error", err)
			os.Exit(1)
		}
		defer rabbit.Close()
		publisher = rabbit
	} else {
		logger.Warn("RABBITMQ_URL not set, product events are not published")
	}

	var (
		gateway calendar.Gateway = calendar.Disabled{}
		feed    producthttp.CalendarFeed
	)
	if cfg.CalendarPath != "" {
		ics := calendar.NewICS(cfg.CalendarPath, cfg.CalendarAlarmOffset, logger)
		gateway, feed = ics, ics
		logger.Info("calendar mirror enabled", "path", cfg.CalendarPath)
	} else {
		logger.Warn("CALENDAR_PATH is empty, reminders are disabled")
	}

	metrics := service.Metrics{
		Created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricCreatedTotal,
			Help: "Total number of products created",
		}),
		Updated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricUpdatedTotal,
			Help: "Total number of products updated",
		}),
		Deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricDeletedTotal,
			Help: "Total number of products deleted",
		}),
		CalendarFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricCalendarFailuresTotal,
			Help: "Calendar reminder operations that failed or timed out",
		}, []string{"operation"}),
	}
	statusGauge := report.NewStatusGauge()
	prometheus.MustRegister(metrics.Created, metrics.Updated, metrics.Deleted, metrics.CalendarFailures, statusGauge)

	productStore := store.New(repo, logger)
	defer productStore.Close()

	svc := service.New(productStore, gateway, publisher, logger, metrics,
		service.WithCalendarTimeout(cfg.CalendarTimeout),
		service.WithLocation(cfg.Location),
	)
	handler := producthttp.NewHandler(svc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := report.NewStatusReporter(productStore, statusGauge, cfg.Location, logger)
	if err := reporter.Start(ctx, cfg.StatusRefreshSchedule); err != nil {
		logger.Error("start status reporter", "error", err)
		os.Exit(1)
	}
	defer reporter.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(producthttp.RequestIDMiddleware())
	router.Use(producthttp.AccessLogMiddleware(logger))
	producthttp.RegisterRoutes(router, handler, repo, feed)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	// Live streams hold connections open; end them before Shutdown waits.
	server.RegisterOnShutdown(productStore.Close)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("products service started", "addr", cfg.HTTPAddr, "driver", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("products service stopped")
}

func openBackend(cfg config.Products, logger *slog.Logger) (backend, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory storage, products are lost on restart")
		return repository.NewMemory(), func() {}, nil
	}

	if err := runMigrations(cfg.DatabaseURL, cfg.DriverMigrationsPath()); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	dsn := cfg.DatabaseURL
	if cfg.DBDriver == config.DriverMySQL {
		var err error
		if dsn, err = repository.MySQLDSN(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
	}

	db, err := sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() { _ = db.Close() }

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), cfg.DBPingTimeout)
	defer pingCancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.DBDriver == config.DriverMySQL {
		return repository.NewMySQL(db), closeDB, nil
	}
	return repository.NewPostgres(db), closeDB, nil
}

func runMigrations(databaseURL, migrationsPath string) error {
	m, err := migrate.New(migrateSourcePrefix+migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
