package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние заказа. Смена статуса после создания
// выполняется отдельным процессом и в хранилище заказов не входит.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят, но ещё не передан на кухню.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPreparing — заказ готовится.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady — заказ готов к выдаче или отправке.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusDelivered — заказ выдан клиенту.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCanceled — заказ отменён.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Valid сообщает, входит ли статус в известный набор.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// OrderType — способ исполнения заказа.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeout  OrderType = "takeout"
)

// Valid сообщает, входит ли тип исполнения в известный набор.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeDineIn, OrderTypeDelivery, OrderTypeTakeout:
		return true
	}
	return false
}

// OrderLine — одна позиция заказа. Без родительского заказа не существует.
type OrderLine struct {
	// ID назначается хранилищем при создании.
	ID int64 `json:"lineId"`
	// OrderID ссылается на владельца позиции.
	OrderID   int64 `json:"orderId"`
	ProductID int64 `json:"productId"`
	Quantity  int32 `json:"quantity"`
	// Subtotal считает вызывающая сторона, ядро цену не пересчитывает.
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Order — заказ клиента вместе с позициями.
//
// ID и CreatedAt назначает хранилище, после создания они не меняются.
type Order struct {
	ID           int64       `json:"orderId"`
	UserID       int64       `json:"userId"`
	RestaurantID int64       `json:"restaurantId"`
	Status       OrderStatus `json:"status"`
	Type         OrderType   `json:"type"`
	CreatedAt    time.Time   `json:"createdAt"`
	Lines        []OrderLine `json:"lines"`
}

// Total возвращает сумму subtotal по всем позициям.
func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Lines {
		total = total.Add(line.Subtotal)
	}
	return total
}

// NewOrderLine описывает позицию во входных данных создания заказа.
type NewOrderLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// NewOrder — входные данные для создания заказа.
type NewOrder struct {
	UserID       int64          `json:"userId"`
	RestaurantID int64          `json:"restaurantId"`
	Status       OrderStatus    `json:"status"`
	Type         OrderType      `json:"type"`
	Lines        []NewOrderLine `json:"lines"`
}

// Денежный формат позиции: NUMERIC(12, 2).
const subtotalScale = 2

var subtotalLimit = decimal.New(1, 12-subtotalScale)

// subtotalFits сообщает, сохранится ли значение в NUMERIC(12, 2) без округления и переполнения.
func subtotalFits(v decimal.Decimal) bool {
	return v.Equal(v.Round(subtotalScale)) && v.Abs().LessThan(subtotalLimit)
}

// ValidateInvariants проверяет входные данные и возвращает список замечаний.
func (n NewOrder) ValidateInvariants() []error {
	var errs []error

	if n.UserID <= 0 {
		errs = append(errs, ErrUserRequired)
	}
	if n.RestaurantID <= 0 {
		errs = append(errs, ErrRestaurantRequired)
	}
	if !n.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	if !n.Type.Valid() {
		errs = append(errs, ErrTypeInvalid)
	}
	if len(n.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	for _, line := range n.Lines {
		if line.ProductID <= 0 {
			errs = append(errs, ErrLineProductRequired)
		}
		if line.Quantity < 1 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.Subtotal.IsNegative() {
			errs = append(errs, ErrLineSubtotalInvalid)
		}
		if !subtotalFits(line.Subtotal) {
			errs = append(errs, ErrLineSubtotalPrecision)
		}
	}

	return errs
}
