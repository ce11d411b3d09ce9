package httpapi

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

type createOrderLine struct {
	ProductID int64           `json:"productId"`
	Quantity  int32           `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type createOrderRequest struct {
	UserID       int64             `json:"userId"`
	RestaurantID int64             `json:"restaurantId"`
	Status       string            `json:"status"`
	Type         string            `json:"type"`
	Lines        []createOrderLine `json:"lines"`
}

func (r createOrderRequest) toDomain() domain.NewOrder {
	in := domain.NewOrder{
		UserID:       r.UserID,
		RestaurantID: r.RestaurantID,
		Status:       domain.OrderStatus(r.Status),
		Type:         domain.OrderType(r.Type),
		Lines:        make([]domain.NewOrderLine, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, domain.NewOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}
	return in
}

type errorResponse struct {
	Error string `json:"error"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}
