package config

import (
	"fmt"
	"log/slog"
	"time"
)

type Notifications struct {
	RabbitMQURL     string
	LogLevel        slog.Level
	ShutdownTimeout time.Duration
}

func LoadNotifications() (Notifications, error) {
	cfg := Notifications{
		RabbitMQURL:     getEnv("RABBITMQ_URL", ""),
		ShutdownTimeout: defaultShutdownTimeout,
	}

	if cfg.RabbitMQURL == "" {
		return Notifications{}, fmt.Errorf("RABBITMQ_URL is required")
	}

	var err error
	if cfg.LogLevel, err = logLevel(); err != nil {
		return Notifications{}, err
	}

	return cfg, nil
}
