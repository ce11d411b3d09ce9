// Package mongo реализует документное хранилище заказов: заказ и его позиции
// хранятся одним документом в коллекции orders.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultDatabase       = "orders"

	ordersCollection   = "orders"
	countersCollection = "counters"
)

var errStoreNotInitialized = errors.New("mongo store is not initialized")

// Store владеет клиентом MongoDB и выбранной базой.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Connect подключается к MongoDB по uri и проверяет доступность сервера.
// Пустое имя базы заменяется на "orders".
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if strings.TrimSpace(database) == "" {
		database = defaultDatabase
	}

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{client: client, database: client.Database(database)}, nil
}

// Database возвращает рабочую базу.
func (s *Store) Database() *mongo.Database {
	if s == nil {
		return nil
	}
	return s.database
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return errStoreNotInitialized
	}
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
