package customization

import (
	"github.com/corray333/coffeeshop/internal/service/models/money"
)

// Option is a catalog customization (a size, a milk choice) defined for one product.
type Option struct {
	ID              string      `json:"id"`
	ProductID       string      `json:"productId"`
	Name            string      `json:"name"`
	PriceDeltaCents money.Cents `json:"priceDeltaCents"`
}

// Selection links an order line item to a chosen Option.
type Selection struct {
	ID              string `json:"id"`
	OrderItemID     string `json:"orderItemId"`
	CustomizationID string `json:"customizationId"`
	Name            string `json:"name,omitempty"`
}
