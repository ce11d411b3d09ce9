package kafka

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// EventType определяет тип события.
type EventType string

const (
	EventTypeOrderCreated EventType = "order.created"
	EventTypeOrderDeleted EventType = "order.deleted"
)

// TopicOrderEvents — topic по умолчанию для событий заказов.
const TopicOrderEvents = "foodorders.order.events"

// HeaderEventType — заголовок сообщения с типом события.
const HeaderEventType = "x-event-type"

// OrderCreatedEvent описывает созданный заказ без позиций: потребителям
// достаточно итоговой суммы и их количества.
type OrderCreatedEvent struct {
	EventID      string          `json:"eventId"`
	EventType    EventType       `json:"eventType"`
	OrderID      int64           `json:"orderId"`
	UserID       int64           `json:"userId"`
	RestaurantID int64           `json:"restaurantId"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	LineCount    int             `json:"lineCount"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"createdAt"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// OrderDeletedEvent описывает удалённый заказ.
type OrderDeletedEvent struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	OrderID    int64     `json:"orderId"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewOrderCreatedEvent(order domain.Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		EventID:      uuid.NewString(),
		EventType:    EventTypeOrderCreated,
		OrderID:      order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		Status:       string(order.Status),
		Type:         string(order.Type),
		LineCount:    len(order.Lines),
		Total:        order.Total(),
		CreatedAt:    order.CreatedAt,
		OccurredAt:   time.Now().UTC(),
	}
}

func NewOrderDeletedEvent(orderID int64) *OrderDeletedEvent {
	return &OrderDeletedEvent{
		EventID:    uuid.NewString(),
		EventType:  EventTypeOrderDeleted,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
}
