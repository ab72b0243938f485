package iorder

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/order"
)

// IOrderRepository is an interface for order postgres repository.
// Get and GetForUpdate return a nil order without error when the id is unknown.
type IOrderRepository interface {
	Insert(ctx context.Context, o order.Order) (order.Order, error)
	Get(ctx context.Context, id string) (*order.Order, error)
	GetForUpdate(ctx context.Context, id string) (*order.Order, error)
	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
	Update(ctx context.Context, o order.Order) error
	Delete(ctx context.Context, id string) (int64, error)
}
