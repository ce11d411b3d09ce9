package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/storetest"
)

func TestOrderStore_Contract(t *testing.T) {
	storetest.Run(t, func(*testing.T) domain.OrderStore {
		return memory.NewOrderStore()
	}, storetest.Options{ListAllIncludesLines: true})
}

func TestOrderStore_ReturnedOrderIsACopy(t *testing.T) {
	store := memory.NewOrderStore()
	ctx := context.Background()

	created, err := store.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	created.Lines[0].Quantity = 99
	created.Lines = append(created.Lines, domain.OrderLine{ID: 1000})

	stored, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
	require.Equal(t, int32(2), stored.Lines[0].Quantity)
}

func TestOrderStore_Ping(t *testing.T) {
	require.NoError(t, memory.NewOrderStore().Ping(context.Background()))
}
