package ordersvc

import (
	"context"
	"fmt"
	"time"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
)

// ItemInput is one requested line item. UnitPrice is in major currency units and
// is only trusted when customizations are present.
type ItemInput struct {
	ProductID        string
	Quantity         int
	UnitPrice        float64
	CustomizationIDs []string
}

type validatedItem struct {
	ItemInput
	clientUnit money.Cents
}

// maxQuantity caps the quantity of a single line item.
const maxQuantity = 1000

// validateItems checks the request shape before anything touches the database.
func validateItems(items []ItemInput) ([]validatedItem, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}

	out := make([]validatedItem, len(items))
	for i, item := range items {
		if item.ProductID == "" {
			return nil, apperr.Validation("item %d: product id is required", i)
		}
		if item.Quantity <= 0 {
			return nil, apperr.Validation("item %d: quantity must be a positive integer", i)
		}
		if item.Quantity > maxQuantity {
			return nil, apperr.Validation("item %d: quantity must not exceed %d", i, maxQuantity)
		}

		cents, err := money.FromMajor(item.UnitPrice)
		if err != nil {
			return nil, apperr.Validation("item %d: invalid price: %v", i, err)
		}

		out[i] = validatedItem{ItemInput: item, clientUnit: cents}
	}

	return out, nil
}

type pricedOrder struct {
	items      []orderitem.OrderItem
	selections []customization.Selection
	total      money.Cents
}

// priceItems resolves every product and customization referenced by items and
// builds the line items of orderID with authoritative unit prices.
func (s *OrderService) priceItems(
	ctx context.Context,
	work unitOfWork,
	orderID string,
	items []validatedItem,
	now time.Time,
) (*pricedOrder, error) {
	catalog := work.CatalogRepository()

	productIDs := make([]string, 0, len(items))
	optionIDs := make([]string, 0)
	for _, item := range items {
		productIDs = append(productIDs, item.ProductID)
		optionIDs = append(optionIDs, item.CustomizationIDs...)
	}

	products, err := catalog.ProductsByIDs(ctx, unique(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve products: %w", err)
	}

	options, err := catalog.OptionsByIDs(ctx, unique(optionIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customizations: %w", err)
	}

	result := &pricedOrder{
		items: make([]orderitem.OrderItem, 0, len(items)),
	}

	for i, item := range items {
		p, ok := products[item.ProductID]
		if !ok {
			return nil, apperr.NotFound("product", item.ProductID)
		}
		if !p.Available {
			return nil, apperr.Validation("item %d: product %q is not available", i, p.ID)
		}

		line := orderitem.OrderItem{
			ID:             s.newID(),
			OrderID:        orderID,
			ProductID:      p.ID,
			ProductName:    p.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: p.BasePriceCents,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		for _, optionID := range item.CustomizationIDs {
			opt, ok := options[optionID]
			if !ok {
				return nil, apperr.NotFound("customization", optionID)
			}
			if opt.ProductID != p.ID {
				return nil, apperr.Validation(
					"item %d: customization %q does not belong to product %q", i, opt.ID, p.ID,
				)
			}

			sel := customization.Selection{
				ID:              s.newID(),
				OrderItemID:     line.ID,
				CustomizationID: opt.ID,
				Name:            opt.Name,
			}
			line.Customizations = append(line.Customizations, sel)
			result.selections = append(result.selections, sel)
		}

		// The catalog owns customization pricing, so a customized line keeps the
		// caller's unit price.
		if len(line.Customizations) > 0 {
			line.UnitPriceCents = item.clientUnit
		}

		lineTotal, err := line.LineTotal()
		if err != nil {
			return nil, apperr.Validation("item %d: line total is too large", i)
		}
		if result.total, err = result.total.Add(lineTotal); err != nil {
			return nil, apperr.Validation("order total is too large")
		}
		result.items = append(result.items, line)
	}

	return result, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}
