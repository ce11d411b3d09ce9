package domain

import "context"

// OrderStore описывает требования к хранилищу заказов.
// Реализации: postgres (таблицы + транзакция), mongo (документ со встроенными позициями), memory.
type OrderStore interface {
	// Create атомарно сохраняет заголовок и все позиции; возвращает заказ с назначенными идентификаторами.
	Create(ctx context.Context, order NewOrder) (Order, error)
	// ListAll возвращает все заказы в порядке хранилища.
	ListAll(ctx context.Context) ([]Order, error)
	// FindByID возвращает заказ с позициями или ErrOrderNotFound.
	FindByID(ctx context.Context, id int64) (Order, error)
	// DeleteByID удаляет заказ вместе с позициями; false, если удалять было нечего.
	DeleteByID(ctx context.Context, id int64) (bool, error)
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
}
