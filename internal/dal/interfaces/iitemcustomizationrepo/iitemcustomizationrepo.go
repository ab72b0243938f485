package iitemcustomization

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/customization"
)

// IItemCustomizationRepository stores the customizations chosen for order items.
type IItemCustomizationRepository interface {
	BulkInsert(ctx context.Context, selections []customization.Selection) ([]customization.Selection, error)
	QueryByItems(ctx context.Context, orderItemIDs []string) ([]customization.Selection, error)
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
}
