package ordersvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
	"go.opentelemetry.io/otel"
)

// CreateOrderInput is a new order request. AccountID is nil for kiosk orders.
type CreateOrderInput struct {
	BranchID     string
	AccountID    *string
	CustomerName *string
	Items        []ItemInput
	// ClientTotal is what the caller believes the total is. It is never stored.
	ClientTotal *float64
}

// UpdateOrderInput is a partial order update. Nil fields are left unchanged.
type UpdateOrderInput struct {
	OrderID string
	Status  *order.Status
	Items   *[]ItemInput
	// Total overrides the recomputed total, in major units.
	Total   *float64
	ActorID *string
}

// CreateOrder prices and persists a new PENDING order, then notifies the branch.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if in.BranchID == "" {
		return nil, apperr.Validation("branch id is required")
	}

	items, err := validateItems(in.Items)
	if err != nil {
		return nil, err
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, work)

	br, err := work.BranchRepository().Get(ctx, in.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	if br == nil {
		return nil, apperr.NotFound("branch", in.BranchID)
	}

	o := order.Order{
		ID:           s.newID(),
		BranchID:     br.ID,
		AccountID:    in.AccountID,
		CustomerName: in.CustomerName,
		Status:       order.StatusPending,
		Currency:     s.currency,
		Branch:       br,
	}

	if in.AccountID != nil {
		acc, err := work.AccountRepository().Get(ctx, *in.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}
		if acc == nil {
			return nil, apperr.NotFound("account", *in.AccountID)
		}
		o.Account = acc
	}

	now := s.now()
	o.CreatedAt = now
	o.UpdatedAt = now

	priced, err := s.priceItems(ctx, work, o.ID, items, now)
	if err != nil {
		return nil, err
	}
	o.TotalCents = priced.total

	if in.ClientTotal != nil {
		if client, err := money.FromMajor(*in.ClientTotal); err != nil || client != priced.total {
			slog.Debug("Client total differs from computed total",
				"client_total", *in.ClientTotal,
				"total_cents", int64(priced.total),
			)
		}
	}

	inserted, err := work.OrderRepository().Insert(ctx, o)
	if err != nil {
		return nil, err
	}
	o.OrderNumber = inserted.OrderNumber

	if _, err := work.OrderItemRepository().BulkInsert(ctx, priced.items); err != nil {
		return nil, err
	}
	if _, err := work.ItemCustomizationRepository().BulkInsert(ctx, priced.selections); err != nil {
		return nil, err
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	o.OrderItems = priced.items

	slog.Info("Order created",
		"order_id", o.ID,
		"branch_id", o.BranchID,
		"total_cents", int64(o.TotalCents),
	)

	s.notifier.NotifyNewOrder(ctx, o)
	s.audit(ctx, s.event(auditlog.EventOrderCreated, o, "", in.AccountID))

	return &o, nil
}

// UpdateOrder changes status, line items or total of an order. The order row is
// locked for the duration, so concurrent updates of one order are serialized.
func (s *OrderService) UpdateOrder(ctx context.Context, in UpdateOrderInput) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.UpdateOrder")
	defer span.End()

	var items []validatedItem
	if in.Items != nil {
		var err error
		if items, err = validateItems(*in.Items); err != nil {
			return nil, err
		}
	}

	var override *money.Cents
	if in.Total != nil {
		total, err := money.FromMajor(*in.Total)
		if err != nil {
			return nil, apperr.Validation("invalid total: %v", err)
		}
		override = &total
	}

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, work)

	current, err := work.OrderRepository().GetForUpdate(ctx, in.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if current == nil {
		return nil, apperr.NotFound("order", in.OrderID)
	}

	o := *current
	previous := o.Status
	statusChanged := false

	if in.Status != nil && *in.Status != o.Status {
		if !o.Status.CanTransition(*in.Status) {
			return nil, apperr.Validation("cannot change order status from %s to %s", o.Status, *in.Status)
		}
		o.Status = *in.Status
		statusChanged = true
	}

	if (items != nil || override != nil) && previous.IsTerminal() {
		return nil, apperr.Validation("order %q is %s and can no longer be changed", o.ID, previous)
	}

	now := s.now()
	itemsReplaced := false

	if items != nil {
		if _, err := work.ItemCustomizationRepository().DeleteByOrder(ctx, o.ID); err != nil {
			return nil, err
		}
		if _, err := work.OrderItemRepository().DeleteByOrder(ctx, o.ID); err != nil {
			return nil, err
		}

		priced, err := s.priceItems(ctx, work, o.ID, items, now)
		if err != nil {
			return nil, err
		}
		if _, err := work.OrderItemRepository().BulkInsert(ctx, priced.items); err != nil {
			return nil, err
		}
		if _, err := work.ItemCustomizationRepository().BulkInsert(ctx, priced.selections); err != nil {
			return nil, err
		}

		o.TotalCents = priced.total
		o.OrderItems = priced.items
		itemsReplaced = true
	}

	if override != nil {
		o.TotalCents = *override
	}

	o.UpdatedAt = now
	if err := work.OrderRepository().Update(ctx, o); err != nil {
		return nil, err
	}

	if !itemsReplaced {
		loaded := []order.Order{o}
		if err := loadItems(ctx, work, loaded); err != nil {
			return nil, err
		}
		o = loaded[0]
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order update: %w", err)
	}

	var events []auditlog.OrderEvent
	if statusChanged {
		slog.Info("Order status changed",
			"order_id", o.ID,
			"branch_id", o.BranchID,
			"from", previous,
			"to", o.Status,
		)
		s.notifier.NotifyStatusUpdate(ctx, o)
		events = append(events, s.event(auditlog.EventOrderStatusChanged, o, previous, in.ActorID))
	}
	if itemsReplaced {
		events = append(events, s.event(auditlog.EventOrderItemsReplaced, o, previous, in.ActorID))
	}
	s.audit(ctx, events...)

	return &o, nil
}

// RemoveOrder deletes item customizations, line items and the order in one
// transaction.
func (s *OrderService) RemoveOrder(ctx context.Context, orderID string, actorID *string) error {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.RemoveOrder")
	defer span.End()

	work := s.newUOW()
	if err := work.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, work)

	o, err := work.OrderRepository().GetForUpdate(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get order: %w", err)
	}
	if o == nil {
		return apperr.NotFound("order", orderID)
	}

	if _, err := work.ItemCustomizationRepository().DeleteByOrder(ctx, orderID); err != nil {
		return err
	}
	if _, err := work.OrderItemRepository().DeleteByOrder(ctx, orderID); err != nil {
		return err
	}
	if _, err := work.OrderRepository().Delete(ctx, orderID); err != nil {
		return err
	}

	if err := work.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order removal: %w", err)
	}

	slog.Info("Order removed", "order_id", orderID, "branch_id", o.BranchID)
	s.audit(ctx, s.event(auditlog.EventOrderRemoved, *o, o.Status, actorID))

	return nil
}

// ListBranchOrders returns the orders of a branch, newest first, optionally
// filtered by status.
func (s *OrderService) ListBranchOrders(
	ctx context.Context,
	branchID string,
	status *order.Status,
) ([]order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.ListBranchOrders")
	defer span.End()

	work := s.newUOW()

	br, err := work.BranchRepository().Get(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	if br == nil {
		return nil, apperr.NotFound("branch", branchID)
	}

	filter := &order.QueryOrdersModel{BranchIds: []string{branchID}}
	if status != nil {
		filter.Statuses = []order.Status{*status}
	}

	orders, err := work.OrderRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return []order.Order{}, nil
	}

	if err := loadItems(ctx, work, orders); err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Branch = br
	}

	return orders, nil
}

// GetOrder returns one order with its items and branch.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "OrderService.GetOrder")
	defer span.End()

	work := s.newUOW()

	o, err := work.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if o == nil {
		return nil, apperr.NotFound("order", orderID)
	}

	loaded := []order.Order{*o}
	if err := loadItems(ctx, work, loaded); err != nil {
		return nil, err
	}

	br, err := work.BranchRepository().Get(ctx, o.BranchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	loaded[0].Branch = br

	return &loaded[0], nil
}

// loadItems attaches line items and their customizations to orders in place.
func loadItems(ctx context.Context, work unitOfWork, orders []order.Order) error {
	orderIDs := make([]string, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	items, err := work.OrderItemRepository().ListByOrders(ctx, orderIDs)
	if err != nil {
		return err
	}

	itemIDs := make([]string, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	selections, err := work.ItemCustomizationRepository().QueryByItems(ctx, itemIDs)
	if err != nil {
		return err
	}

	byItem := make(map[string][]customization.Selection, len(items))
	for _, sel := range selections {
		byItem[sel.OrderItemID] = append(byItem[sel.OrderItemID], sel)
	}

	byOrder := make(map[string][]orderitem.OrderItem, len(orders))
	for _, item := range items {
		item.Customizations = byItem[item.ID]
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	for i := range orders {
		orders[i].OrderItems = byOrder[orders[i].ID]
		if orders[i].OrderItems == nil {
			orders[i].OrderItems = []orderitem.OrderItem{}
		}
	}

	return nil
}
