package ordersvc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	ibranch "github.com/corray333/coffeeshop/internal/dal/interfaces/ibranchrepo"
	iitemcustomization "github.com/corray333/coffeeshop/internal/dal/interfaces/iitemcustomizationrepo"
	iorderitem "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderitemrepo"
	iorder "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderrepo"
	iproduct "github.com/corray333/coffeeshop/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/auditlog"
	"github.com/corray333/coffeeshop/internal/service/models/branch"
	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
	"github.com/corray333/coffeeshop/internal/service/models/product"
)

var errInjected = errors.New("injected failure")

// memStore is an in-memory database. A unit of work snapshots it on Begin and
// restores the snapshot on Rollback.
type memStore struct {
	mu sync.Mutex

	branches   map[string]branch.Branch
	accounts   map[string]account.Account
	products   map[string]product.Product
	options    map[string]customization.Option
	orders     map[string]order.Order
	items      map[string]orderitem.OrderItem
	selections map[string]customization.Selection

	nextNumber int64
	// failOn names repository operations that return errInjected.
	failOn map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		branches:   map[string]branch.Branch{},
		accounts:   map[string]account.Account{},
		products:   map[string]product.Product{},
		options:    map[string]customization.Option{},
		orders:     map[string]order.Order{},
		items:      map[string]orderitem.OrderItem{},
		selections: map[string]customization.Selection{},
		failOn:     map[string]bool{},
	}
}

type snapshot struct {
	orders     map[string]order.Order
	items      map[string]orderitem.OrderItem
	selections map[string]customization.Selection
	nextNumber int64
}

func (m *memStore) snapshot() snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return snapshot{
		orders:     maps.Clone(m.orders),
		items:      maps.Clone(m.items),
		selections: maps.Clone(m.selections),
		nextNumber: m.nextNumber,
	}
}

func (m *memStore) restore(s snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders = s.orders
	m.items = s.items
	m.selections = s.selections
	m.nextNumber = s.nextNumber
}

func (m *memStore) fail(op string) error {
	if m.failOn[op] {
		return fmt.Errorf("%s: %w", op, errInjected)
	}

	return nil
}

func (m *memStore) itemsOf(orderID string) []orderitem.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []orderitem.OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}

	return out
}

func (m *memStore) selectionsOf(orderID string) []customization.Selection {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []customization.Selection
	for _, sel := range m.selections {
		if item, ok := m.items[sel.OrderItemID]; ok && item.OrderID == orderID {
			out = append(out, sel)
		}
	}

	return out
}

type memUOW struct {
	store     *memStore
	snap      *snapshot
	committed bool
}

func (u *memUOW) Begin(context.Context) error {
	s := u.store.snapshot()
	u.snap = &s

	return nil
}

func (u *memUOW) Commit(context.Context) error {
	if err := u.store.fail("commit"); err != nil {
		return err
	}
	u.committed = true

	return nil
}

func (u *memUOW) Rollback(context.Context) error {
	if u.snap != nil && !u.committed {
		u.store.restore(*u.snap)
	}

	return nil
}

func (u *memUOW) OrderRepository() iorder.IOrderRepository { return memOrders{u.store} }
func (u *memUOW) OrderItemRepository() iorderitem.IOrderItemRepository { return memItems{u.store} }
func (u *memUOW) ItemCustomizationRepository() iitemcustomization.IItemCustomizationRepository {
	return memSelections{u.store}
}
func (u *memUOW) BranchRepository() ibranch.IBranchRepository { return memBranches{u.store} }
func (u *memUOW) AccountRepository() iaccount.IAccountRepository { return memAccounts{u.store} }
func (u *memUOW) CatalogRepository() iproduct.ICatalogRepository { return memCatalog{u.store} }

type memOrders struct{ m *memStore }

func (r memOrders) Insert(_ context.Context, o order.Order) (order.Order, error) {
	if err := r.m.fail("order.insert"); err != nil {
		return order.Order{}, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.nextNumber++
	o.OrderNumber = r.m.nextNumber
	stored := o
	stored.OrderItems = nil
	stored.Branch = nil
	stored.Account = nil
	r.m.orders[o.ID] = stored

	return o, nil
}

func (r memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, nil
	}

	return &o, nil
}

func (r memOrders) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r memOrders) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []order.Order
	for _, o := range r.m.orders {
		if len(filter.BranchIds) > 0 && !contains(filter.BranchIds, o.BranchID) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber > out[j].OrderNumber })

	return out, nil
}

func (r memOrders) Update(_ context.Context, o order.Order) error {
	if err := r.m.fail("order.update"); err != nil {
		return err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	stored := r.m.orders[o.ID]
	stored.Status = o.Status
	stored.TotalCents = o.TotalCents
	stored.UpdatedAt = o.UpdatedAt
	r.m.orders[o.ID] = stored

	return nil
}

func (r memOrders) Delete(_ context.Context, id string) (int64, error) {
	if err := r.m.fail("order.delete"); err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.orders[id]; !ok {
		return 0, nil
	}
	delete(r.m.orders, id)

	return 1, nil
}

type memItems struct{ m *memStore }

func (r memItems) BulkInsert(_ context.Context, items []orderitem.OrderItem) ([]orderitem.OrderItem, error) {
	if err := r.m.fail("item.insert"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, item := range items {
		stored := item
		stored.Customizations = nil
		r.m.items[item.ID] = stored
	}

	return items, nil
}

func (r memItems) ListByOrders(_ context.Context, orderIDs []string) ([]orderitem.OrderItem, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []orderitem.OrderItem
	for _, item := range r.m.items {
		if !contains(orderIDs, item.OrderID) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r memItems) DeleteByOrder(_ context.Context, orderID string) (int64, error) {
	if err := r.m.fail("item.delete"); err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, item := range r.m.items {
		if item.OrderID == orderID {
			delete(r.m.items, id)
			n++
		}
	}

	return n, nil
}

type memSelections struct{ m *memStore }

func (r memSelections) BulkInsert(_ context.Context, sels []customization.Selection) ([]customization.Selection, error) {
	if err := r.m.fail("selection.insert"); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, sel := range sels {
		r.m.selections[sel.ID] = sel
	}

	return sels, nil
}

func (r memSelections) QueryByItems(_ context.Context, itemIDs []string) ([]customization.Selection, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var out []customization.Selection
	for _, sel := range r.m.selections {
		if contains(itemIDs, sel.OrderItemID) {
			out = append(out, sel)
		}
	}

	return out, nil
}

func (r memSelections) DeleteByOrder(_ context.Context, orderID string) (int64, error) {
	if err := r.m.fail("selection.delete"); err != nil {
		return 0, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, sel := range r.m.selections {
		if item, ok := r.m.items[sel.OrderItemID]; ok && item.OrderID == orderID {
			delete(r.m.selections, id)
			n++
		}
	}

	return n, nil
}

type memBranches struct{ m *memStore }

func (r memBranches) Get(_ context.Context, id string) (*branch.Branch, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.branches[id]
	if !ok {
		return nil, nil
	}

	return &b, nil
}

type memAccounts struct{ m *memStore }

func (r memAccounts) Get(_ context.Context, id string) (*account.Account, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return nil, nil
	}

	return &a, nil
}

func (r memAccounts) GetByEmail(context.Context, string) (*account.Account, error) {
	return nil, nil
}

func (r memAccounts) GetByRefreshTokenID(context.Context, string) (*account.Account, error) {
	return nil, nil
}

func (r memAccounts) Insert(context.Context, account.Account) error { return nil }

func (r memAccounts) SetRefreshCredential(context.Context, string, *account.RefreshCredential, time.Time) error {
	return nil
}

func (r memAccounts) RotateRefreshCredential(
	context.Context, string, string, account.RefreshCredential, time.Time,
) (bool, error) {
	return false, nil
}

type memCatalog struct{ m *memStore }

func (r memCatalog) ProductsByIDs(_ context.Context, ids []string) (map[string]product.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string]product.Product{}
	for _, id := range ids {
		if p, ok := r.m.products[id]; ok {
			out[id] = p
		}
	}

	return out, nil
}

func (r memCatalog) OptionsByIDs(_ context.Context, ids []string) (map[string]customization.Option, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := map[string]customization.Option{}
	for _, id := range ids {
		if o, ok := r.m.options[id]; ok {
			out[id] = o
		}
	}

	return out, nil
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}

	return false
}

type recordingNotifier struct {
	mu       sync.Mutex
	created  []order.Order
	statuses []order.Order
}

func (n *recordingNotifier) NotifyNewOrder(_ context.Context, o order.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, o)
}

func (n *recordingNotifier) NotifyStatusUpdate(_ context.Context, o order.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, o)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []auditlog.OrderEvent
}

func (a *recordingAuditor) LogOrderEvents(_ context.Context, events []auditlog.OrderEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, events...)

	return nil
}
