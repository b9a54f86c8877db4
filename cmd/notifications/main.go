package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expiry-tracker/internal/config"
	"expiry-tracker/internal/notifications"
	"expiry-tracker/internal/products"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
)

// notifications consumes product events and logs expiry alerts for
// products that are expired or due soon.
func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadNotifications()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, logger))
}

func run(ctx context.Context, cfg config.Notifications, logger *slog.Logger) int {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("connect rabbitmq", "error", err)
		return 1
	}
	defer conn.Close()

	consumer, err := notifications.NewConsumer(conn, products.EventsQueue, logger)
	if err != nil {
		logger.Error("init consumer", "error", err)
		return 1
	}
	defer consumer.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("notifications service started", "queue", products.EventsQueue)
		errCh <- consumer.Listen(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		if !awaitDrain(errCh, cfg.ShutdownTimeout, logger) {
			return 1
		}
	}

	logger.Info("notifications service stopped")
	return 0
}

// awaitDrain waits for the consumer to finish the delivery in hand.
func awaitDrain(errCh <-chan error, timeout time.Duration, logger *slog.Logger) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("consumer stop failed", "error", err)
			return false
		}
	case <-deadline.C:
		logger.Warn("consumer shutdown timeout reached")
	}
	return true
}
