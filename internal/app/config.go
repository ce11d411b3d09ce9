package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/messaging/kafka"
)

// Поддерживаемые хранилища заказов.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"
)

// Config описывает настройки запуска. Хранилище выбирается один раз при старте
// и не меняется до остановки процесса.
type Config struct {
	StorageDriver string

	PostgresDSN         string
	PostgresAutoMigrate bool
	// PostgresMaxConns ограничивает пул; 0 оставляет значение по умолчанию.
	PostgresMaxConns int

	MongoURI      string
	MongoDatabase string

	HTTPAddr     string
	GRPCAddr     string
	MetricsAddr  string
	StoreTimeout time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	LogLevel log.Level
}

func DefaultConfig() Config {
	return Config{
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		MongoDatabase:       "orders",
		HTTPAddr:            ":8080",
		GRPCAddr:            ":50051",
		MetricsAddr:         ":9090",
		StoreTimeout:        5 * time.Second,
		KafkaTopic:          kafka.TopicOrderEvents,
		CacheTTL:            5 * time.Minute,
		LogLevel:            log.InfoLevel,
	}
}

// ConfigFromEnv накладывает переменные окружения на DefaultConfig.
// getenv обычно os.Getenv; в тестах подставляется map.
func ConfigFromEnv(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	env := func(key string) string { return strings.TrimSpace(getenv(key)) }

	// DB_TYPE оставлен для совместимости с прежними окружениями. Без обеих переменных
	// остаётся memory, а не postgres, как в прежнем сервисе.
	if v := firstNonEmpty(env("ORDERS_STORAGE_DRIVER"), env("DB_TYPE")); v != "" {
		cfg.StorageDriver = normalizeDriver(v)
	}
	if v := env("ORDERS_POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := env("ORDERS_MONGO_URI"); v != "" {
		cfg.MongoURI = v
	}
	if v := env("ORDERS_MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}
	if v := env("ORDERS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := env("ORDERS_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := env("ORDERS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := env("ORDERS_KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v := env("ORDERS_KAFKA_TOPIC"); v != "" {
		cfg.KafkaTopic = v
	}
	if v := env("ORDERS_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	cfg.RedisPassword = getenv("ORDERS_REDIS_PASSWORD")

	var errs []error
	if v := env("ORDERS_POSTGRES_AUTO_MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_POSTGRES_AUTO_MIGRATE: %w", err))
		}
		cfg.PostgresAutoMigrate = b
	}
	if v := env("ORDERS_STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_STORE_TIMEOUT: %w", err))
		}
		cfg.StoreTimeout = d
	}
	if v := env("ORDERS_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_CACHE_TTL: %w", err))
		}
		cfg.CacheTTL = d
	}
	if v := env("ORDERS_POSTGRES_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_POSTGRES_MAX_CONNS: %w", err))
		}
		cfg.PostgresMaxConns = n
	}
	if v := env("ORDERS_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_REDIS_DB: %w", err))
		}
		cfg.RedisDB = n
	}
	if v := env("ORDERS_LOG_LEVEL"); v != "" {
		level, err := log.ParseLevel(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ORDERS_LOG_LEVEL: %w", err))
		}
		cfg.LogLevel = level
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate проверяет, что для выбранного хранилища заданы параметры подключения.
func (c Config) Validate() error {
	var errs []error
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("ORDERS_POSTGRES_DSN is required for postgres storage"))
		}
	case StorageDriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("ORDERS_MONGO_URI is required for mongo storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q (use %s|%s|%s)",
			c.StorageDriver, StorageDriverPostgres, StorageDriverMongo, StorageDriverMemory))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("store timeout must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.PostgresMaxConns < 0 {
		errs = append(errs, errors.New("postgres max conns must be non-negative"))
	}
	if c.RedisDB < 0 {
		errs = append(errs, errors.New("redis db must be non-negative"))
	}
	return errors.Join(errs...)
}

// normalizeDriver приводит значение к нижнему регистру и принимает полные
// названия "postgresql" и "mongodb".
func normalizeDriver(v string) string {
	switch strings.ToLower(v) {
	case "postgresql", StorageDriverPostgres:
		return StorageDriverPostgres
	case "mongodb", StorageDriverMongo:
		return StorageDriverMongo
	default:
		return strings.ToLower(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
