package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config описывает настройки запуска сервиса продаж.
type Config struct {
	// HTTPAddr — адрес HTTP API.
	HTTPAddr string
	// MetricsAddr — адрес сервера метрик Prometheus.
	MetricsAddr string
	// DatabaseURL — DSN PostgreSQL; пустая строка включает in-memory хранилище.
	DatabaseURL string
	// RabbitURL — AMQP URL брокера; пустая строка отключает публикацию событий.
	RabbitURL string
	// LogLevel — уровень логирования logrus.
	LogLevel string
	// ShutdownTimeout — предел ожидания graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает базовые адреса и таймауты.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig читает настройки из окружения, подхватывая .env при наличии.
func LoadConfig() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}

	cfg := DefaultConfig()
	cfg.HTTPAddr = envOrDefault("SALES_HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = envOrDefault("SALES_METRICS_ADDR", cfg.MetricsAddr)
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.RabbitURL = strings.TrimSpace(os.Getenv("RABBITMQ_URL"))
	cfg.LogLevel = envOrDefault("SALES_LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = envDurationOrDefault("SALES_SHUTDOWN_TIMEOUT_SEC", cfg.ShutdownTimeout)

	return cfg
}

func envOrDefault(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func envDurationOrDefault(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		log.WithField("name", name).Warnf("invalid duration value %q, using default", raw)
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
