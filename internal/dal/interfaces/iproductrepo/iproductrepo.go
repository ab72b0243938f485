package iproduct

import (
	"context"

	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/product"
)

// ICatalogRepository reads the product catalog. Unknown ids are simply absent
// from the returned maps.
type ICatalogRepository interface {
	ProductsByIDs(ctx context.Context, ids []string) (map[string]product.Product, error)
	OptionsByIDs(ctx context.Context, ids []string) (map[string]customization.Option, error)
}
