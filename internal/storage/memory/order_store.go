package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// orderStoreInMemory — in-memory реализация OrderStore для локальной разработки и тестов.
// Позиции хранятся внутри заказа, как в документном хранилище.
type orderStoreInMemory struct {
	mu        sync.RWMutex
	orders    map[int64]domain.Order
	nextOrder int64
	nextLine  int64
	now       func() time.Time
}

// NewOrderStore возвращает пустое in-memory хранилище.
func NewOrderStore() domain.OrderStore {
	return &orderStoreInMemory{
		orders: make(map[int64]domain.Order),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет заказ целиком под одной блокировкой; частичное состояние наружу не видно.
func (s *orderStoreInMemory) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, domain.NewPersistenceError("create order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Идентификаторы монотонно растут и не переиспользуются после удаления.
	s.nextOrder++
	order := domain.Order{
		ID:           s.nextOrder,
		UserID:       in.UserID,
		RestaurantID: in.RestaurantID,
		Status:       in.Status,
		Type:         in.Type,
		CreatedAt:    s.now(),
		Lines:        make([]domain.OrderLine, 0, len(in.Lines)),
	}
	for _, line := range in.Lines {
		s.nextLine++
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:        s.nextLine,
			OrderID:   order.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}

	s.orders[order.ID] = order
	return cloneOrder(order), nil
}

// ListAll возвращает все заказы вместе с позициями, отсортированные по ID.
func (s *orderStoreInMemory) ListAll(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Order, 0, len(s.orders))
	for _, order := range s.orders {
		result = append(result, cloneOrder(order))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// FindByID возвращает копию заказа или ErrOrderNotFound.
func (s *orderStoreInMemory) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, domain.NewPersistenceError("find order", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// DeleteByID удаляет заказ вместе с позициями.
func (s *orderStoreInMemory) DeleteByID(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewPersistenceError("delete order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return false, nil
	}
	delete(s.orders, id)
	return true, nil
}

func (s *orderStoreInMemory) Ping(context.Context) error { return nil }

// cloneOrder копирует срез позиций, чтобы вызывающий код не мутировал хранилище.
func cloneOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order
}

var _ domain.OrderStore = (*orderStoreInMemory)(nil)
