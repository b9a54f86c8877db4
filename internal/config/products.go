package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultDBDriver        = DriverPostgres
	defaultMigrationsPath  = "migrations/products"
	defaultShutdownTimeout = 10 * time.Second

	defaultDBMaxOpenConns    = 25
	defaultDBMaxIdleConns    = 5
	defaultDBConnMaxLifetime = 5 * time.Minute
	defaultDBPingTimeout     = 5 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second

	defaultCalendarPath          = "var/calendar/reminders.ics"
	defaultCalendarTimeout       = 5 * time.Second
	defaultCalendarAlarmOffset   = 60 * time.Minute
	defaultStatusRefreshSchedule = "5 0 * * *"
	defaultTimezone              = "UTC"
)

type Products struct {
	DBDriver          string
	DatabaseURL       string
	RabbitMQURL       string
	HTTPAddr          string
	MigrationsPath    string
	LogLevel          slog.Level
	ShutdownTimeout   time.Duration
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBPingTimeout     time.Duration
	ReadHeaderTimeout time.Duration

	// CalendarPath is the iCalendar file reminders are mirrored into.
	// Empty disables the mirror.
	CalendarPath          string
	CalendarTimeout       time.Duration
	CalendarAlarmOffset   time.Duration
	StatusRefreshSchedule string
	Location              *time.Location
}

func LoadProducts() (Products, error) {
	cfg := Products{
		DBDriver:              strings.ToLower(getEnv("DB_DRIVER", defaultDBDriver)),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RabbitMQURL:           getEnv("RABBITMQ_URL", ""),
		HTTPAddr:              getEnv("HTTP_ADDR", defaultHTTPAddr),
		MigrationsPath:        getEnv("MIGRATIONS_PATH", defaultMigrationsPath),
		ShutdownTimeout:       defaultShutdownTimeout,
		DBMaxOpenConns:        defaultDBMaxOpenConns,
		DBMaxIdleConns:        defaultDBMaxIdleConns,
		DBConnMaxLifetime:     defaultDBConnMaxLifetime,
		DBPingTimeout:         defaultDBPingTimeout,
		ReadHeaderTimeout:     defaultReadHeaderTimeout,
		CalendarPath:          calendarPath(),
		StatusRefreshSchedule: getEnv("STATUS_REFRESH_SCHEDULE", defaultStatusRefreshSchedule),
	}

	switch cfg.DBDriver {
	case DriverPostgres, DriverMySQL:
		if cfg.DatabaseURL == "" {
			return Products{}, fmt.Errorf("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return Products{}, fmt.Errorf("DB_DRIVER %q is not supported", cfg.DBDriver)
	}

	var err error
	if cfg.LogLevel, err = logLevel(); err != nil {
		return Products{}, err
	}
	if cfg.CalendarTimeout, err = getDuration("CALENDAR_TIMEOUT", defaultCalendarTimeout); err != nil {
		return Products{}, err
	}
	if cfg.CalendarAlarmOffset, err = getDuration("CALENDAR_ALARM_OFFSET", defaultCalendarAlarmOffset); err != nil {
		return Products{}, err
	}
	if cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", defaultTimezone)); err != nil {
		return Products{}, fmt.Errorf("TIMEZONE: %w", err)
	}

	return cfg, nil
}

// DriverMigrationsPath is the migrations directory for the configured driver.
func (c Products) DriverMigrationsPath() string {
	return strings.TrimRight(c.MigrationsPath, "/") + "/" + c.DBDriver
}

// calendarPath distinguishes an explicitly empty CALENDAR_PATH from an unset one.
func calendarPath() string {
	value, ok := os.LookupEnv("CALENDAR_PATH")
	if !ok {
		return defaultCalendarPath
	}
	return value
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, value)
	}
	return d, nil
}

func logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
