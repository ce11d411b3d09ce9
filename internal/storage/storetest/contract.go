// Package storetest содержит общий набор проверок, который обязана проходить
// каждая реализация domain.OrderStore.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// Options описывает различия между реализациями, которые контракт допускает.
type Options struct {
	// ListAllIncludesLines — true, если ListAll возвращает заказы вместе с позициями.
	// Реляционное хранилище читает только заголовки.
	ListAllIncludesLines bool
	// ProductIDs — существующие товары, на которые можно ссылаться в позициях.
	ProductIDs []int64
}

// Factory создаёт пустое хранилище для одного подтеста.
type Factory func(t *testing.T) domain.OrderStore

// Run запускает все проверки контракта.
func Run(t *testing.T, factory Factory, opts Options) {
	t.Helper()
	if len(opts.ProductIDs) < 2 {
		opts.ProductIDs = []int64{1, 2}
	}

	t.Run("create dine-in scenario", func(t *testing.T) { testCreateScenario(t, factory(t), opts) })
	t.Run("round trip", func(t *testing.T) { testRoundTrip(t, factory(t), opts) })
	t.Run("find missing", func(t *testing.T) { testFindMissing(t, factory(t)) })
	t.Run("cascade delete", func(t *testing.T) { testCascadeDelete(t, factory(t), opts) })
	t.Run("idempotent delete", func(t *testing.T) { testIdempotentDelete(t, factory(t), opts) })
	t.Run("ids are not reused", func(t *testing.T) { testIDsNotReused(t, factory(t), opts) })
	t.Run("list all lines", func(t *testing.T) { testListAllLines(t, factory(t), opts) })
	t.Run("json shape", func(t *testing.T) { testJSONShape(t, factory(t), opts) })
	t.Run("concurrent create", func(t *testing.T) { testConcurrentCreate(t, factory(t), opts) })
	t.Run("canceled context", func(t *testing.T) { testCanceledContext(t, factory(t), opts) })
}

// SampleOrder возвращает заказ пользователя 7 в ресторане 3 на сумму 12.00.
func SampleOrder(productIDs ...int64) domain.NewOrder {
	if len(productIDs) < 2 {
		productIDs = []int64{1, 2}
	}
	return domain.NewOrder{
		UserID:       7,
		RestaurantID: 3,
		Status:       domain.OrderStatusPending,
		Type:         domain.OrderTypeDineIn,
		Lines: []domain.NewOrderLine{
			{ProductID: productIDs[0], Quantity: 2, Subtotal: decimal.RequireFromString("10.00")},
			{ProductID: productIDs[1], Quantity: 1, Subtotal: decimal.RequireFromString("2.00")},
		},
	}
}

// RequireMatchesInput проверяет, что сохранённый заказ воспроизводит все входные поля.
func RequireMatchesInput(t *testing.T, in domain.NewOrder, got domain.Order) {
	t.Helper()

	require.NotZero(t, got.ID)
	require.False(t, got.CreatedAt.IsZero(), "createdAt must be assigned")
	require.Equal(t, in.UserID, got.UserID)
	require.Equal(t, in.RestaurantID, got.RestaurantID)
	require.Equal(t, in.Status, got.Status)
	require.Equal(t, in.Type, got.Type)
	require.Len(t, got.Lines, len(in.Lines))

	seen := make(map[int64]struct{}, len(got.Lines))
	for i, line := range got.Lines {
		require.NotZero(t, line.ID, "line %d id", i)
		require.Equal(t, got.ID, line.OrderID, "line %d owner", i)
		require.Equal(t, in.Lines[i].ProductID, line.ProductID, "line %d product", i)
		require.Equal(t, in.Lines[i].Quantity, line.Quantity, "line %d quantity", i)
		require.True(t, in.Lines[i].Subtotal.Equal(line.Subtotal), "line %d subtotal: want %s got %s", i, in.Lines[i].Subtotal, line.Subtotal)
		_, dup := seen[line.ID]
		require.False(t, dup, "line id %d duplicated", line.ID)
		seen[line.ID] = struct{}{}
	}
}

func testCreateScenario(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	in := SampleOrder(opts.ProductIDs...)

	created, err := store.Create(ctx, in)
	require.NoError(t, err)
	RequireMatchesInput(t, in, created)
	require.True(t, created.Total().Equal(decimal.RequireFromString("12.00")), "total: %s", created.Total())

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	count := 0
	for _, order := range all {
		if order.ID == created.ID {
			count++
		}
	}
	require.Equal(t, 1, count, "created order must be listed exactly once")
}

func testRoundTrip(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	in := SampleOrder(opts.ProductIDs...)
	in.Type = domain.OrderTypeDelivery
	in.Status = domain.OrderStatusPreparing

	created, err := store.Create(ctx, in)
	require.NoError(t, err)

	found, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	RequireMatchesInput(t, in, found)
	require.Equal(t, created.ID, found.ID)
	require.WithinDuration(t, created.CreatedAt, found.CreatedAt, time.Millisecond)
	for i := range created.Lines {
		require.Equal(t, created.Lines[i].ID, found.Lines[i].ID)
	}
}

func testFindMissing(t *testing.T, store domain.OrderStore) {
	_, err := store.FindByID(context.Background(), 987654321)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.False(t, errors.Is(err, domain.ErrPersistence), "not found must not be a persistence error")
}

func testCascadeDelete(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	created, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)

	deleted, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	_, err = store.FindByID(ctx, created.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	for _, order := range all {
		require.NotEqual(t, created.ID, order.ID)
		for _, line := range order.Lines {
			require.NotEqual(t, created.ID, line.OrderID, "line of deleted order is still visible")
		}
	}
}

func testIdempotentDelete(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	created, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)

	first, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, first)

	second, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, second)

	never, err := store.DeleteByID(ctx, 987654321)
	require.NoError(t, err)
	require.False(t, never)
}

func testIDsNotReused(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	first, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)
	_, err = store.DeleteByID(ctx, first.ID)
	require.NoError(t, err)

	second, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)
	require.Greater(t, second.ID, first.ID)
	for _, line := range second.Lines {
		for _, old := range first.Lines {
			require.NotEqual(t, old.ID, line.ID, "line id reused")
		}
	}
}

func testListAllLines(t *testing.T, store domain.OrderStore, opts Options) {
	ctx := context.Background()
	created, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)

	var listed *domain.Order
	for i := range all {
		if all[i].ID == created.ID {
			listed = &all[i]
		}
	}
	require.NotNil(t, listed)
	require.Equal(t, created.UserID, listed.UserID)
	require.Equal(t, created.Status, listed.Status)

	if opts.ListAllIncludesLines {
		require.Len(t, listed.Lines, len(created.Lines))
	} else {
		require.Empty(t, listed.Lines, "ListAll is expected to return headers only")
	}
}

func testJSONShape(t *testing.T, store domain.OrderStore, opts Options) {
	created, err := store.Create(context.Background(), SampleOrder(opts.ProductIDs...))
	require.NoError(t, err)

	orderKeys, lineKeys := JSONKeys(t, created)
	require.Equal(t, []string{"createdAt", "lines", "orderId", "restaurantId", "status", "type", "userId"}, orderKeys)
	require.Equal(t, []string{"lineId", "orderId", "productId", "quantity", "subtotal"}, lineKeys)
}

// JSONKeys возвращает отсортированные ключи заказа и первой позиции в JSON-представлении.
func JSONKeys(t *testing.T, order domain.Order) ([]string, []string) {
	t.Helper()

	raw, err := json.Marshal(order)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var lines []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded["lines"], &lines))
	require.NotEmpty(t, lines)

	return sortedKeys(decoded), sortedKeys(lines[0])
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func testConcurrentCreate(t *testing.T, store domain.OrderStore, opts Options) {
	const workers = 8
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ids  = make(map[int64]struct{}, workers)
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[order.ID] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, ids, workers, "concurrent creates must get distinct ids")
}

func testCanceledContext(t *testing.T, store domain.OrderStore, opts Options) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Create(ctx, SampleOrder(opts.ProductIDs...))
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrPersistence)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, all, "canceled create must not leave an order behind")
}
