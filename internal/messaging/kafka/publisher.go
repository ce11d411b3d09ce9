package kafka

import (
	"context"
	"strconv"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// OrderEventPublisher публикует события заказов в один topic. Ключ сообщения
// равен идентификатору заказа, события одного заказа попадают в одну партицию.
type OrderEventPublisher struct {
	producer *Producer
	topic    string
}

func NewOrderEventPublisher(producer *Producer, topic string) *OrderEventPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OrderEventPublisher{producer: producer, topic: topic}
}

func orderKey(id int64) string { return strconv.FormatInt(id, 10) }

func (p *OrderEventPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	if p == nil {
		return errProducerNotInitialized
	}
	return p.producer.PublishEvent(ctx, p.topic, orderKey(order.ID), EventTypeOrderCreated, NewOrderCreatedEvent(order))
}

func (p *OrderEventPublisher) PublishOrderDeleted(ctx context.Context, orderID int64) error {
	if p == nil {
		return errProducerNotInitialized
	}
	return p.producer.PublishEvent(ctx, p.topic, orderKey(orderID), EventTypeOrderDeleted, NewOrderDeletedEvent(orderID))
}

var _ domain.EventPublisher = (*OrderEventPublisher)(nil)
