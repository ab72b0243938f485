package orderitem

import (
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/money"
)

// OrderItem represents an item within an order
type OrderItem struct {
	ID             string                    `json:"id"`
	OrderID        string                    `json:"orderId"`
	ProductID      string                    `json:"productId"`
	ProductName    string                    `json:"productName"`
	Quantity       int                       `json:"quantity"`
	UnitPriceCents money.Cents               `json:"unitPriceCents"`
	Customizations []customization.Selection `json:"customizations"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

// LineTotal is the unit price times the quantity.
func (i OrderItem) LineTotal() (money.Cents, error) {
	return i.UnitPriceCents.Times(i.Quantity)
}
