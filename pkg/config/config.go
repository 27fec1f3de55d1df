// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds every knob the service reads at startup.
type Config struct {
	HTTPAddr        string
	BaseRoute       string
	ServiceName     string
	LogLevel        string
	ShutdownTimeout time.Duration
	TLSCertFile     string
	TLSKeyFile      string

	Store          string
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnMaxLife  time.Duration

	RedisAddr      string
	IdempotencyTTL time.Duration

	KafkaBrokers []string
	OrderTopic   string

	OtelHost         string
	OtelLogsEndpoint string
	OtelSampleRatio  float64
	OtelStdout       bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func floatenv(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func boolenv(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(atoienv(key, defSec)) * time.Second
}

func listenv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		BaseRoute:       strings.TrimRight(os.Getenv("BASE_ROUTE"), "/"),
		ServiceName:     getenv("SERVICE_NAME", "storefront"),
		LogLevel:        getenv("LOG_LEVEL", "debug"),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT_SEC", 15),
		TLSCertFile:     os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:      os.Getenv("TLS_KEY_FILE"),

		Store:          strings.ToLower(getenv("STORE", StorePostgres)),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBMaxOpenConns: atoienv("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: atoienv("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLife:  durenvs("DB_CONN_MAX_LIFETIME_SEC", 300),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		IdempotencyTTL: durenvs("IDEMPOTENCY_TTL_SEC", 86400),

		KafkaBrokers: listenv("KAFKA_BROKERS"),
		OrderTopic:   getenv("ORDER_TOPIC", "orders.placed"),

		OtelHost:         os.Getenv("OTEL_HOST"),
		OtelLogsEndpoint: os.Getenv("OTEL_LOGS_ENDPOINT"),
		OtelSampleRatio:  floatenv("OTEL_SAMPLE_RATIO", 1.0),
		OtelStdout:       boolenv("OTEL_STDOUT"),
	}
}

// Validate reports configuration that cannot start the service.
func (c Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE=postgres")
		}
	case StoreMemory:
	default:
		return errors.New("STORE must be postgres or memory")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	return nil
}

// TLS reports whether the server should listen with TLS.
func (c Config) TLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
