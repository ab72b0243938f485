package ordersvc

import (
	"context"
	"log/slog"
	"time"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/coffeeshop/internal/dal/interfaces/iauditrepo"
	ibranch "github.com/corray333/coffeeshop/internal/dal/interfaces/ibranchrepo"
	iitemcustomization "github.com/corray333/coffeeshop/internal/dal/interfaces/iitemcustomizationrepo"
	iorderitem "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderitemrepo"
	iorder "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderrepo"
	iproduct "github.com/corray333/coffeeshop/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/dal/uow"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/corray333/coffeeshop/internal/service/models/currency"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/google/uuid"
)

// OrderService is a service for managing orders.
type OrderService struct {
	newUOW   func() unitOfWork
	notifier notifier
	auditor  iauditrepo.IAuditorRepository
	currency currency.Currency

	now   func() time.Time
	newID func() string
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorder.IOrderRepository
	OrderItemRepository() iorderitem.IOrderItemRepository
	ItemCustomizationRepository() iitemcustomization.IItemCustomizationRepository
	BranchRepository() ibranch.IBranchRepository
	AccountRepository() iaccount.IAccountRepository
	CatalogRepository() iproduct.ICatalogRepository
}

// notifier pushes order lifecycle events to the staff of the order's branch.
type notifier interface {
	NotifyNewOrder(ctx context.Context, o order.Order)
	NotifyStatusUpdate(ctx context.Context, o order.Order)
}

type noopNotifier struct{}

func (noopNotifier) NotifyNewOrder(context.Context, order.Order) {}
func (noopNotifier) NotifyStatusUpdate(context.Context, order.Order) {}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		notifier: noopNotifier{},
		currency: currency.CurrencyRUB,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("ordersvc: postgres client is required")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the OrderService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *OrderService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithNotifier sets the realtime notifier for order events.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithNotifier(n notifier) option {
	return func(s *OrderService) {
		s.notifier = n
	}
}

// WithAuditor sets the audit stream for order events.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAuditor(a iauditrepo.IAuditorRepository) option {
	return func(s *OrderService) {
		s.auditor = a
	}
}

// WithCurrency sets the currency orders are priced in.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithCurrency(c currency.Currency) option {
	return func(s *OrderService) {
		s.currency = c
	}
}

// audit hands events to the audit stream. Failures never fail the operation
// that produced them.
func (s *OrderService) audit(ctx context.Context, events ...auditlog.OrderEvent) {
	if s.auditor == nil || len(events) == 0 {
		return
	}

	if err := s.auditor.LogOrderEvents(ctx, events); err != nil {
		slog.Error("Failed to log order events", "count", len(events), "error", err)
	}
}

func (s *OrderService) event(t auditlog.EventType, o order.Order, previous order.Status, actorID *string) auditlog.OrderEvent {
	return auditlog.OrderEvent{
		ID:             s.newID(),
		Type:           t,
		OrderID:        o.ID,
		BranchID:       o.BranchID,
		AccountID:      o.AccountID,
		ActorID:        actorID,
		PreviousStatus: previous.String(),
		OrderStatus:    o.Status.String(),
		TotalCents:     int64(o.TotalCents),
		OccurredAt:     s.now(),
	}
}

// rollback is deferred by every transactional operation; it is a no-op after commit.
func rollback(ctx context.Context, work unitOfWork) {
	if err := work.Rollback(context.WithoutCancel(ctx)); err != nil {
		slog.Error("Failed to rollback transaction", "error", err)
	}
}
