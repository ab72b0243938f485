package iorderitem

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
)

// IOrderItemRepository stores the line items of orders.
type IOrderItemRepository interface {
	// BulkInsert assigns ids and positions and returns the stored items.
	BulkInsert(ctx context.Context, orderItems []orderitem.OrderItem) ([]orderitem.OrderItem, error)
	ListByOrders(ctx context.Context, orderIDs []string) ([]orderitem.OrderItem, error)
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
}
