// Package orders содержит фасад хранения заказов: единую точку входа, которая
// не зависит от выбранного при старте хранилища.
package orders

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// Facade проверяет входные данные, делегирует хранилищу и публикует события.
// Хранилище передаётся в конструктор один раз и не меняется до конца жизни процесса.
type Facade struct {
	store     domain.OrderStore
	publisher domain.EventPublisher
	logger    *log.Entry
}

// NewFacade создаёт фасад. publisher == nil означает, что события не публикуются.
func NewFacade(store domain.OrderStore, publisher domain.EventPublisher, logger *log.Entry) *Facade {
	if publisher == nil {
		publisher = domain.NoopPublisher{}
	}
	if logger == nil {
		logger = log.WithField("component", "orders-facade")
	}
	return &Facade{store: store, publisher: publisher, logger: logger}
}

// Create проверяет заказ и сохраняет его вместе с позициями. Некорректный ввод
// отклоняется с ErrValidation до обращения к хранилищу. Сбой хранилища
// возвращается как ErrPersistence; частично созданный заказ не остаётся.
func (f *Facade) Create(ctx context.Context, in domain.NewOrder) (domain.Order, error) {
	if err := domain.NewValidationError(in.ValidateInvariants()); err != nil {
		return domain.Order{}, err
	}

	order, err := f.store.Create(ctx, in)
	if err != nil {
		return domain.Order{}, domain.NewPersistenceError("create order", err)
	}

	if pubErr := f.publisher.PublishOrderCreated(ctx, order); pubErr != nil {
		f.logger.WithError(pubErr).WithField("order_id", order.ID).Warn("publish order created failed")
	}

	f.logger.WithFields(log.Fields{
		"order_id":      order.ID,
		"user_id":       order.UserID,
		"restaurant_id": order.RestaurantID,
		"lines":         len(order.Lines),
	}).Info("order created")
	return order, nil
}

// ListAll возвращает все заказы в порядке хранилища. Реляционное хранилище
// возвращает только заголовки.
func (f *Facade) ListAll(ctx context.Context) ([]domain.Order, error) {
	orders, err := f.store.ListAll(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list orders", err)
	}
	return orders, nil
}

// FindByID возвращает заказ с позициями или ErrOrderNotFound.
func (f *Facade) FindByID(ctx context.Context, id int64) (domain.Order, error) {
	order, err := f.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, domain.NewPersistenceError("find order", err)
	}
	return order, nil
}

// DeleteByID удаляет заказ и его позиции. Повторное удаление возвращает false без ошибки.
func (f *Facade) DeleteByID(ctx context.Context, id int64) (bool, error) {
	deleted, err := f.store.DeleteByID(ctx, id)
	if err != nil {
		return false, domain.NewPersistenceError("delete order", err)
	}
	if !deleted {
		return false, nil
	}

	if pubErr := f.publisher.PublishOrderDeleted(ctx, id); pubErr != nil {
		f.logger.WithError(pubErr).WithField("order_id", id).Warn("publish order deleted failed")
	}
	f.logger.WithField("order_id", id).Info("order deleted")
	return true, nil
}

// Ping проверяет доступность хранилища.
func (f *Facade) Ping(ctx context.Context) error {
	return f.store.Ping(ctx)
}
