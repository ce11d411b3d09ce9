package domain

import "context"

// EventPublisher сообщает внешним потребителям (например, поисковому индексатору)
// о созданных и удалённых заказах. Вызывается только после успешной записи.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order Order) error
	PublishOrderDeleted(ctx context.Context, orderID int64) error
}

// NoopPublisher ничего не публикует; используется, когда брокер не настроен.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(context.Context, Order) error { return nil }

func (NoopPublisher) PublishOrderDeleted(context.Context, int64) error { return nil }

var _ EventPublisher = NoopPublisher{}
