package orders

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodorders/internal/storage/storetest"
)

var errBroker = errors.New("broker unavailable")

type spyStore struct {
	domain.OrderStore
	mu    sync.Mutex
	calls int
	err   error
}

func (s *spyStore) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return s.OrderStore.Create(ctx, in)
}

func (s *spyStore) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return s.OrderStore.FindByID(ctx, id)
}

func (s *spyStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.OrderStore.DeleteByID(ctx, id)
}

func (s *spyStore) ListAll(ctx context.Context) ([]domain.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.OrderStore.ListAll(ctx)
}

type spyPublisher struct {
	mu      sync.Mutex
	created []int64
	deleted []int64
	err     error
}

func (p *spyPublisher) PublishOrderCreated(_ context.Context, order domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order.ID)
	return p.err
}

func (p *spyPublisher) PublishOrderDeleted(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.err
}

func quietLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestFacade_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.OrderStore {
		return NewFacade(memory.NewOrderStore(), nil, quietLogger())
	}, storetest.Options{ListAllIncludesLines: true})
}

func TestFacade_ValidationRejectedBeforeStore(t *testing.T) {
	store := &spyStore{OrderStore: memory.NewOrderStore()}
	facade := NewFacade(store, nil, quietLogger())

	cases := map[string]func(*domain.NewOrder){
		"no lines":          func(in *domain.NewOrder) { in.Lines = nil },
		"zero quantity":     func(in *domain.NewOrder) { in.Lines[0].Quantity = 0 },
		"negative quantity": func(in *domain.NewOrder) { in.Lines[1].Quantity = -3 },
		"negative subtotal": func(in *domain.NewOrder) { in.Lines[0].Subtotal = decimal.NewFromInt(-1) },
		"sub-cent subtotal": func(in *domain.NewOrder) { in.Lines[0].Subtotal = decimal.RequireFromString("1.005") },
		"unknown type":      func(in *domain.NewOrder) { in.Type = "drive-through" },
		"missing user":      func(in *domain.NewOrder) { in.UserID = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := storetest.SampleOrder()
			mutate(&in)

			_, err := facade.Create(context.Background(), in)
			require.ErrorIs(t, err, domain.ErrValidation)
			require.False(t, errors.Is(err, domain.ErrPersistence))
		})
	}
	require.Zero(t, store.calls, "invalid input must never reach the store")
}

func TestFacade_StoreFailuresBecomePersistenceErrors(t *testing.T) {
	raw := errors.New("connection refused")
	facade := NewFacade(&spyStore{OrderStore: memory.NewOrderStore(), err: raw}, nil, quietLogger())
	ctx := context.Background()

	_, err := facade.Create(ctx, storetest.SampleOrder())
	require.ErrorIs(t, err, domain.ErrPersistence)
	require.ErrorIs(t, err, raw)

	_, err = facade.ListAll(ctx)
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = facade.FindByID(ctx, 1)
	require.ErrorIs(t, err, domain.ErrPersistence)

	_, err = facade.DeleteByID(ctx, 1)
	require.ErrorIs(t, err, domain.ErrPersistence)
}

func TestFacade_PublishesAfterSuccessfulWrites(t *testing.T) {
	publisher := &spyPublisher{}
	facade := NewFacade(memory.NewOrderStore(), publisher, quietLogger())
	ctx := context.Background()

	created, err := facade.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	deleted, err := facade.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = facade.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, deleted)

	require.Equal(t, []int64{created.ID}, publisher.created)
	require.Equal(t, []int64{created.ID}, publisher.deleted, "missing order must not produce an event")
}

func TestFacade_NoEventWhenCreateFails(t *testing.T) {
	publisher := &spyPublisher{}
	store := &spyStore{OrderStore: memory.NewOrderStore(), err: errors.New("boom")}
	facade := NewFacade(store, publisher, quietLogger())

	_, err := facade.Create(context.Background(), storetest.SampleOrder())
	require.Error(t, err)
	require.Empty(t, publisher.created)
}

func TestFacade_PublisherFailureDoesNotFailWrite(t *testing.T) {
	publisher := &spyPublisher{err: errBroker}
	facade := NewFacade(memory.NewOrderStore(), publisher, quietLogger())
	ctx := context.Background()

	created, err := facade.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	found, err := facade.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	deleted, err := facade.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, deleted)
}

func TestFacade_BackendsSideBySide(t *testing.T) {
	first := NewFacade(memory.NewOrderStore(), nil, quietLogger())
	second := NewFacade(memory.NewOrderStore(), nil, quietLogger())
	ctx := context.Background()

	a, err := first.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)
	b, err := second.Create(ctx, storetest.SampleOrder())
	require.NoError(t, err)

	aOrder, aLine := storetest.JSONKeys(t, a)
	bOrder, bLine := storetest.JSONKeys(t, b)
	require.Equal(t, aOrder, bOrder)
	require.Equal(t, aLine, bLine)

	_, err = second.DeleteByID(ctx, b.ID)
	require.NoError(t, err)
	_, err = first.FindByID(ctx, a.ID)
	require.NoError(t, err, "facades must not share state")
}

var _ domain.OrderStore = (*Facade)(nil)
