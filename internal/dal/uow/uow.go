package uow

import (
	"context"
	"errors"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	ibranch "github.com/corray333/coffeeshop/internal/dal/interfaces/ibranchrepo"
	iitemcustomization "github.com/corray333/coffeeshop/internal/dal/interfaces/iitemcustomizationrepo"
	iorderitem "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderitemrepo"
	iorder "github.com/corray333/coffeeshop/internal/dal/interfaces/iorderrepo"
	iproduct "github.com/corray333/coffeeshop/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	accountrepo "github.com/corray333/coffeeshop/internal/dal/repositories/account/postgres"
	branchrepo "github.com/corray333/coffeeshop/internal/dal/repositories/branch/postgres"
	itemcustomizationrepo "github.com/corray333/coffeeshop/internal/dal/repositories/itemcustomization/postgres"
	orderrepo "github.com/corray333/coffeeshop/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/coffeeshop/internal/dal/repositories/orderitem/postgres"
	productrepo "github.com/corray333/coffeeshop/internal/dal/repositories/product/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UnitOfWork groups repositories over one connection. Until Begin is called the
// repositories run on the pool; afterwards every call joins the transaction.
type UnitOfWork struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	orderRepo             iorder.IOrderRepository
	orderItemRepo         iorderitem.IOrderItemRepository
	itemCustomizationRepo iitemcustomization.IItemCustomizationRepository
	branchRepo            ibranch.IBranchRepository
	accountRepo           iaccount.IAccountRepository
	catalogRepo           iproduct.ICatalogRepository
}

func NewUnitOfWork(client *postgres.Client) *UnitOfWork {
	u := &UnitOfWork{pool: client.Pool()}
	u.bind(client.Pool())

	return u
}

func (u *UnitOfWork) bind(conn postgres.Conn) {
	u.orderRepo = orderrepo.NewPostgresOrderRepository(conn)
	u.orderItemRepo = orderitemrepo.NewPostgresOrderItemRepository(conn)
	u.itemCustomizationRepo = itemcustomizationrepo.NewPostgresItemCustomizationRepository(conn)
	u.branchRepo = branchrepo.NewPostgresBranchRepository(conn)
	u.accountRepo = accountrepo.NewPostgresAccountRepository(conn)
	u.catalogRepo = productrepo.NewPostgresCatalogRepository(conn)
}

func (u *UnitOfWork) OrderRepository() iorder.IOrderRepository {
	return u.orderRepo
}

func (u *UnitOfWork) OrderItemRepository() iorderitem.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *UnitOfWork) ItemCustomizationRepository() iitemcustomization.IItemCustomizationRepository {
	return u.itemCustomizationRepo
}

func (u *UnitOfWork) BranchRepository() ibranch.IBranchRepository {
	return u.branchRepo
}

func (u *UnitOfWork) AccountRepository() iaccount.IAccountRepository {
	return u.accountRepo
}

func (u *UnitOfWork) CatalogRepository() iproduct.ICatalogRepository {
	return u.catalogRepo
}

func (u *UnitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.bind(tx)

	return nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

// Rollback is safe to defer after Commit.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}
