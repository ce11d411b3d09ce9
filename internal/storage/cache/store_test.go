package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/storetest"
)

var errCacheDown = errors.New("cache is down")

type fakeCache struct {
	mu     sync.Mutex
	orders map[int64]domain.Order
	ttls   map[int64]time.Duration
	gets   int
	hits   int
	fail   bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{orders: map[int64]domain.Order{}, ttls: map[int64]time.Duration{}}
}

func (c *fakeCache) GetOrder(_ context.Context, id int64) (domain.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.fail {
		return domain.Order{}, false, errCacheDown
	}
	order, ok := c.orders[id]
	if ok {
		c.hits++
	}
	return order, ok, nil
}

func (c *fakeCache) SetOrder(_ context.Context, order domain.Order, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errCacheDown
	}
	c.orders[order.ID] = order
	c.ttls[order.ID] = ttl
	return nil
}

func (c *fakeCache) DeleteOrder(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errCacheDown
	}
	delete(c.orders, id)
	return nil
}

// countingStore считает обращения к FindByID внутреннего хранилища.
type countingStore struct {
	domain.OrderStore
	mu    sync.Mutex
	finds int
}

func (s *countingStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	s.mu.Lock()
	s.finds++
	s.mu.Unlock()
	return s.OrderStore.FindByID(ctx, id)
}

// gatedStore останавливает FindByID после чтения из внутреннего хранилища,
// пока тест не закроет release.
type gatedStore struct {
	domain.OrderStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *gatedStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	order, err := s.OrderStore.FindByID(ctx, id)
	s.once.Do(func() { close(s.read) })
	<-s.release
	return order, err
}

var errDeleteFailed = errors.New("connection reset")

type failingDeleteStore struct {
	domain.OrderStore
}

func (s *failingDeleteStore) DeleteByID(context.Context, int64) (bool, error) {
	return false, errDeleteFailed
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestCachedStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.OrderStore {
		return NewStore(memory.NewOrderStore(), newFakeCache(), time.Minute, quietLogger())
	}, storetest.Options{ListAllIncludesLines: true})
}

func TestCachedStore_CreatePopulatesAndFindHits(t *testing.T) {
	inner := &countingStore{OrderStore: memory.NewOrderStore()}
	cache := newFakeCache()
	store := NewStore(inner, cache, time.Minute, quietLogger())
	ctx := context.Background()

	created, err := store.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)
	require.Equal(t, time.Minute, cache.ttls[created.ID])

	found, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Zero(t, inner.finds, "hit must not reach the store")
	require.Equal(t, 1, cache.hits)
}

func TestCachedStore_MissReadsThrough(t *testing.T) {
	mem := memory.NewOrderStore()
	created, err := mem.Create(context.Background(), storetest.SampleOrder())
	require.NoError(t, err)

	inner := &countingStore{OrderStore: mem}
	cache := newFakeCache()
	store := NewStore(inner, cache, 0, quietLogger())

	for i := 0; i < 2; i++ {
		_, err := store.FindByID(context.Background(), created.ID)
		require.NoError(t, err)
	}
	require.Equal(t, 1, inner.finds)
	require.Equal(t, defaultTTL, cache.ttls[created.ID])
}

func TestCachedStore_NotFoundIsNotCached(t *testing.T) {
	cache := newFakeCache()
	store := NewStore(memory.NewOrderStore(), cache, time.Minute, quietLogger())

	_, err := store.FindByID(context.Background(), 404)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.Empty(t, cache.orders)
}

func TestCachedStore_DeleteInvalidates(t *testing.T) {
	cache := newFakeCache()
	store := NewStore(memory.NewOrderStore(), cache, time.Minute, quietLogger())
	ctx := context.Background()

	created, err := store.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	deleted, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.NotContains(t, cache.orders, created.ID)

	_, err = store.FindByID(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCachedStore_DeleteDuringReadThroughDoesNotResurrect(t *testing.T) {
	mem := memory.NewOrderStore()
	ctx := context.Background()
	created, err := mem.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	inner := &gatedStore{OrderStore: mem, read: make(chan struct{}), release: make(chan struct{})}
	cache := newFakeCache()
	store := NewStore(inner, cache, time.Minute, quietLogger())

	type result struct {
		order domain.Order
		err   error
	}
	done := make(chan result, 1)
	go func() {
		order, err := store.FindByID(ctx, created.ID)
		done <- result{order: order, err: err}
	}()

	<-inner.read
	deleted, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	close(inner.release)

	res := <-done
	require.NoError(t, res.err)
	require.Equal(t, created.ID, res.order.ID)

	cache.mu.Lock()
	require.NotContains(t, cache.orders, created.ID, "stale read must not refill the cache")
	cache.mu.Unlock()

	_, err = store.FindByID(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestCachedStore_DeleteErrorStillInvalidates(t *testing.T) {
	mem := memory.NewOrderStore()
	cache := newFakeCache()
	ctx := context.Background()

	created, err := NewStore(mem, cache, time.Minute, quietLogger()).Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)
	require.Contains(t, cache.orders, created.ID)

	store := NewStore(&failingDeleteStore{OrderStore: mem}, cache, time.Minute, quietLogger())
	deleted, err := store.DeleteByID(ctx, created.ID)
	require.ErrorIs(t, err, errDeleteFailed)
	require.False(t, deleted)
	require.NotContains(t, cache.orders, created.ID)
}

func TestCachedStore_CacheFailureFallsThrough(t *testing.T) {
	cache := newFakeCache()
	cache.fail = true
	store := NewStore(memory.NewOrderStore(), cache, time.Minute, quietLogger())
	ctx := context.Background()

	created, err := store.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	found, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	deleted, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestOrderKey(t *testing.T) {
	require.Equal(t, "order:42", orderKey(42))
}

func TestRedisCache_RoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("ORDERS_REDIS_TEST_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}
	cache := NewRedisCache(RedisConfig{Addr: addr, DB: 15})
	t.Cleanup(func() { _ = cache.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		t.Skipf("redis is not available for integration tests: %v", err)
	}

	created, err := memory.NewOrderStore().Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)
	require.NoError(t, cache.SetOrder(ctx, created, time.Minute))
	t.Cleanup(func() { _ = cache.DeleteOrder(context.Background(), created.ID) })

	got, found, err := cache.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, created.ID, got.ID)
	require.Len(t, got.Lines, len(created.Lines))
	require.True(t, created.Total().Equal(got.Total()))

	require.NoError(t, cache.DeleteOrder(ctx, created.ID))
	_, found, err = cache.GetOrder(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, found)
}
