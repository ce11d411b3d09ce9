// Package cache содержит read-through кэш заказов поверх любого domain.OrderStore.
package cache

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

const defaultTTL = 5 * time.Minute

// OrderCache хранит заказы по идентификатору. Промах возвращает found == false без ошибки.
type OrderCache interface {
	GetOrder(ctx context.Context, id int64) (order domain.Order, found bool, err error)
	SetOrder(ctx context.Context, order domain.Order, ttl time.Duration) error
	DeleteOrder(ctx context.Context, id int64) error
}

type cachedStore struct {
	inner  domain.OrderStore
	cache  OrderCache
	ttl    time.Duration
	logger *log.Entry

	// mu упорядочивает заполнение кэша после чтения из inner и инвалидацию при удалении.
	// Заполнение берёт RLock, инвалидация Lock. gen растёт на каждом удалении.
	mu  sync.RWMutex
	gen uint64
}

// NewStore оборачивает inner кэшем. Сбои кэша логируются и не влияют на результат:
// источником истины остаётся inner.
func NewStore(inner domain.OrderStore, cache OrderCache, ttl time.Duration, logger *log.Entry) domain.OrderStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "order-cache")
	}
	return &cachedStore{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (s *cachedStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	order, err := s.inner.Create(ctx, in)
	if err != nil {
		return domain.Order{}, err
	}
	s.put(ctx, order)
	return order, nil
}

// ListAll не кэшируется.
func (s *cachedStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.inner.ListAll(ctx)
}

func (s *cachedStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	order, found, err := s.cache.GetOrder(ctx, id)
	switch {
	case err != nil:
		s.logger.WithError(err).WithField("order_id", id).Warn("order cache read failed")
	case found:
		return order, nil
	}

	gen := s.generation()
	order, err = s.inner.FindByID(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	s.fill(ctx, order, gen)
	return order, nil
}

// DeleteByID инвалидирует ключ на любом исходе удаления, в том числе при ошибке inner:
// удаление могло примениться до обрыва соединения.
func (s *cachedStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.inner.DeleteByID(ctx, id)
	s.invalidate(ctx, id)
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *cachedStore) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

func (s *cachedStore) generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// fill кладёт прочитанный заказ в кэш, только если с момента чтения не было удалений.
// Иначе в кэш мог бы вернуться уже удалённый заказ.
func (s *cachedStore) fill(ctx context.Context, order domain.Order, gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen != gen {
		return
	}
	s.put(ctx, order)
}

func (s *cachedStore) invalidate(ctx context.Context, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if err := s.cache.DeleteOrder(ctx, id); err != nil {
		s.logger.WithError(err).WithField("order_id", id).Warn("order cache invalidation failed")
	}
}

func (s *cachedStore) put(ctx context.Context, order domain.Order) {
	if err := s.cache.SetOrder(ctx, order, s.ttl); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("order cache write failed")
	}
}

var _ domain.OrderStore = (*cachedStore)(nil)
