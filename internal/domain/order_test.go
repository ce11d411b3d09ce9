package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

// helper для создания корректного запроса с двумя позициями.
func makeNewOrder() domain.NewOrder {
	return domain.NewOrder{
		UserID:       7,
		RestaurantID: 3,
		Status:       domain.OrderStatusPending,
		Type:         domain.OrderTypeDineIn,
		Lines: []domain.NewOrderLine{
			{ProductID: 1, Quantity: 2, Subtotal: decimal.RequireFromString("10.00")},
			{ProductID: 2, Quantity: 1, Subtotal: decimal.RequireFromString("2.00")},
		},
	}
}

func TestNewOrderValidateInvariants_Ok(t *testing.T) {
	if errs := makeNewOrder().ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestNewOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.NewOrder)
		want error
	}{
		{
			name: "no user",
			mut:  func(o *domain.NewOrder) { o.UserID = 0 },
			want: domain.ErrUserRequired,
		},
		{
			name: "no restaurant",
			mut:  func(o *domain.NewOrder) { o.RestaurantID = -1 },
			want: domain.ErrRestaurantRequired,
		},
		{
			name: "unknown status",
			mut:  func(o *domain.NewOrder) { o.Status = "lost" },
			want: domain.ErrStatusInvalid,
		},
		{
			name: "unknown type",
			mut:  func(o *domain.NewOrder) { o.Type = "drive-through" },
			want: domain.ErrTypeInvalid,
		},
		{
			name: "no lines",
			mut:  func(o *domain.NewOrder) { o.Lines = nil },
			want: domain.ErrLinesRequired,
		},
		{
			name: "zero quantity",
			mut:  func(o *domain.NewOrder) { o.Lines[0].Quantity = 0 },
			want: domain.ErrLineQtyInvalid,
		},
		{
			name: "negative quantity",
			mut:  func(o *domain.NewOrder) { o.Lines[1].Quantity = -3 },
			want: domain.ErrLineQtyInvalid,
		},
		{
			name: "missing product",
			mut:  func(o *domain.NewOrder) { o.Lines[0].ProductID = 0 },
			want: domain.ErrLineProductRequired,
		},
		{
			name: "negative subtotal",
			mut:  func(o *domain.NewOrder) { o.Lines[0].Subtotal = decimal.NewFromInt(-1) },
			want: domain.ErrLineSubtotalInvalid,
		},
		{
			name: "subtotal with three decimal places",
			mut:  func(o *domain.NewOrder) { o.Lines[0].Subtotal = decimal.RequireFromString("1.005") },
			want: domain.ErrLineSubtotalPrecision,
		},
		{
			name: "subtotal overflows money column",
			mut:  func(o *domain.NewOrder) { o.Lines[1].Subtotal = decimal.RequireFromString("10000000000.00") },
			want: domain.ErrLineSubtotalPrecision,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeNewOrder()
			tc.mut(&order)
			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatal("expected validation error")
			}
			err := domain.NewValidationError(errs)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation category, got %v", err)
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewOrderValidateInvariants_ZeroSubtotalAllowed(t *testing.T) {
	order := makeNewOrder()
	order.Lines[0].Subtotal = decimal.Zero
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("zero subtotal must be accepted, got %v", errs)
	}
}

func TestNewOrderValidateInvariants_SubtotalAtMoneyLimits(t *testing.T) {
	for _, raw := range []string{"0.01", "1.5", "1.500", "9999999999.99"} {
		order := makeNewOrder()
		order.Lines[0].Subtotal = decimal.RequireFromString(raw)
		if errs := order.ValidateInvariants(); len(errs) != 0 {
			t.Fatalf("subtotal %s must be accepted, got %v", raw, errs)
		}
	}
}

func TestOrderTotal(t *testing.T) {
	order := domain.Order{Lines: []domain.OrderLine{
		{Subtotal: decimal.RequireFromString("10.00")},
		{Subtotal: decimal.RequireFromString("2.00")},
	}}
	if !order.Total().Equal(decimal.RequireFromString("12.00")) {
		t.Fatalf("unexpected total: %s", order.Total())
	}
}
