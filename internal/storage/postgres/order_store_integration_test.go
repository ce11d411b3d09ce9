package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/storetest"
)

func TestOrderStore_PostgresContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.OrderStore {
		return NewOrderStore(openPostgresStoreForIntegrationTest(t))
	}, storetest.Options{
		ListAllIncludesLines: false,
		ProductIDs:           seededProductIDs,
	})
}

func TestOrderStore_PostgresUnknownProductRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)
	ctx := context.Background()

	in := storetest.SampleOrder(seededProductIDs...)
	in.Lines = append(in.Lines, domain.NewOrderLine{ProductID: 999999, Quantity: 1, Subtotal: decimal.NewFromInt(1)})

	_, err := orders.Create(ctx, in)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.Equal(t, pgForeignKeyViolation, pgErrorCode(err))

	all, err := orders.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all, "no header may survive a failed line insert")
	require.Zero(t, countRowsForIntegrationTest(t, store, "order_lines"))
}

func TestOrderStore_PostgresCheckConstraintRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	// Валидация фасада здесь не участвует, поэтому количество 0 доходит до CHECK.
	in := storetest.SampleOrder(seededProductIDs...)
	in.Lines[1].Quantity = 0

	_, err := orders.Create(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.True(t, isConstraintViolation(err), "expected constraint violation, got %v", err)
	require.Zero(t, countRowsForIntegrationTest(t, store, "orders"))
	require.Zero(t, countRowsForIntegrationTest(t, store, "order_lines"))
}

func TestOrderStore_PostgresRollbacksDoNotLeakConnections(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)

	bad := storetest.SampleOrder(seededProductIDs...)
	bad.Lines[0].ProductID = 424242

	// Больше, чем размер пула: утечка соединений привела бы к зависанию.
	for i := 0; i < DefaultPoolConfig().MaxOpenConns*2; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := orders.Create(ctx, bad)
		cancel()
		require.Error(t, err)
		require.False(t, errors.Is(err, context.DeadlineExceeded), "pool exhausted on iteration %d", i)
	}

	require.Zero(t, store.DB().Stats().InUse)

	_, err := orders.Create(context.Background(), storetest.SampleOrder(seededProductIDs...))
	require.NoError(t, err)
}

func TestOrderStore_PostgresCascadeRemovesLineRows(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store)
	ctx := context.Background()

	created, err := orders.Create(ctx, storetest.SampleOrder(seededProductIDs...))
	require.NoError(t, err)
	require.Equal(t, 2, countRowsForIntegrationTest(t, store, "order_lines"))

	deleted, err := orders.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	require.Zero(t, countRowsForIntegrationTest(t, store, "order_lines"))
}

func TestOrderStore_PostgresTimeoutIsPersistenceError(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	orders := NewOrderStore(store, WithOpTimeout(time.Nanosecond))

	_, err := orders.FindByID(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
