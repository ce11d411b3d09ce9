package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/cache"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/mongo"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/postgres"
)

const cachePingTimeout = 2 * time.Second

// storeRuntime хранит выбранное хранилище и функцию освобождения его ресурсов.
type storeRuntime struct {
	store   domain.OrderStore
	backend string
	close   func(ctx context.Context) error
}

// initStore выбирает реализацию OrderStore по cfg.StorageDriver. Вызывается
// один раз при старте; переключения хранилища во время работы не бывает.
func initStore(ctx context.Context, cfg Config, logger *log.Entry) (storeRuntime, error) {
	noClose := func(context.Context) error { return nil }

	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Warn("using in-memory order storage; data is lost on restart")
		return storeRuntime{store: memory.NewOrderStore(), backend: StorageDriverMemory, close: noClose}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return storeRuntime{}, fmt.Errorf("postgres storage requires a DSN")
		}
		pg, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.WithMaxOpenConns(cfg.PostgresMaxConns))
		if err != nil {
			return storeRuntime{}, err
		}
		if cfg.PostgresAutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				return storeRuntime{}, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		store := postgres.NewOrderStore(pg,
			postgres.WithLogger(logger.WithField("component", "postgres-order-store")),
			postgres.WithOpTimeout(cfg.StoreTimeout),
		)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("postgres order storage initialized")
		return storeRuntime{
			store:   store,
			backend: StorageDriverPostgres,
			close:   func(context.Context) error { return pg.Close() },
		}, nil

	case StorageDriverMongo:
		if cfg.MongoURI == "" {
			return storeRuntime{}, fmt.Errorf("mongo storage requires a URI")
		}
		mg, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return storeRuntime{}, err
		}
		if err := mongo.EnsureIndexes(ctx, mg); err != nil {
			_ = mg.Close(context.Background())
			return storeRuntime{}, err
		}
		store := mongo.NewOrderStore(mg,
			mongo.WithLogger(logger.WithField("component", "mongo-order-store")),
			mongo.WithOpTimeout(cfg.StoreTimeout),
		)
		logger.WithField("database", cfg.MongoDatabase).Info("mongo order storage initialized")
		return storeRuntime{store: store, backend: StorageDriverMongo, close: mg.Close}, nil

	default:
		return storeRuntime{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// initCache оборачивает store кэшем Redis, если задан адрес. Недоступный Redis
// не мешает запуску: сервис работает без кэша.
func initCache(ctx context.Context, cfg Config, store domain.OrderStore, logger *log.Entry) (domain.OrderStore, func() error) {
	noClose := func() error { return nil }
	if cfg.RedisAddr == "" {
		return store, noClose
	}

	redisCache := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		logger.WithError(err).WithField("addr", cfg.RedisAddr).Warn("redis is unavailable, continuing without order cache")
		_ = redisCache.Close()
		return store, noClose
	}

	logger.WithField("addr", cfg.RedisAddr).Info("redis order cache enabled")
	return cache.NewStore(store, redisCache, cfg.CacheTTL, logger.WithField("component", "order-cache")), redisCache.Close
}
