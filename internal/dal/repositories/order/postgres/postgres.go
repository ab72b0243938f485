package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/currency"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
)

var orderColumns = []string{
	"id",
	"order_number",
	"branch_id",
	"account_id",
	"customer_name",
	"status",
	"total_cents",
	"currency",
	"created_at",
	"updated_at",
}

// OrderDal represents order data access layer model
type OrderDal struct {
	Id           string    `db:"id"`
	OrderNumber  int64     `db:"order_number"`
	BranchId     string    `db:"branch_id"`
	AccountId    *string   `db:"account_id"`
	CustomerName *string   `db:"customer_name"`
	Status       string    `db:"status"`
	TotalCents   int64     `db:"total_cents"`
	Currency     string    `db:"currency"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.Currency)
	if err != nil {
		return nil, err
	}
	status, err := order.ParseStatus(o.Status)
	if err != nil {
		return nil, err
	}

	return &order.Order{
		ID:           o.Id,
		OrderNumber:  o.OrderNumber,
		BranchID:     o.BranchId,
		AccountID:    o.AccountId,
		CustomerName: o.CustomerName,
		Status:       status,
		TotalCents:   money.Cents(o.TotalCents),
		Currency:     cur,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		OrderItems:   []orderitem.OrderItem{}, // Will be populated separately
	}, nil
}

// OrderDalFromModel converts service layer Order model to OrderDal
func OrderDalFromModel(o *order.Order) *OrderDal {
	return &OrderDal{
		Id:           o.ID,
		OrderNumber:  o.OrderNumber,
		BranchId:     o.BranchID,
		AccountId:    o.AccountID,
		CustomerName: o.CustomerName,
		Status:       o.Status.String(),
		TotalCents:   int64(o.TotalCents),
		Currency:     o.Currency.String(),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func (o *OrderDal) scanTargets() []any {
	return []any{
		&o.Id,
		&o.OrderNumber,
		&o.BranchId,
		&o.AccountId,
		&o.CustomerName,
		&o.Status,
		&o.TotalCents,
		&o.Currency,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
}

// PostgresOrderRepository represents a Postgres order repository.
type PostgresOrderRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderRepository creates a new Postgres order repository.
func NewPostgresOrderRepository(conn postgres.Conn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new order and returns it with its generated order number.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o order.Order) (order.Order, error) {
	dal := OrderDalFromModel(&o)

	sql, args, err := r.sb.
		Insert("orders").
		Columns(
			"id",
			"branch_id",
			"account_id",
			"customer_name",
			"status",
			"total_cents",
			"currency",
			"created_at",
			"updated_at",
		).
		Values(
			dal.Id,
			dal.BranchId,
			dal.AccountId,
			dal.CustomerName,
			dal.Status,
			dal.TotalCents,
			dal.Currency,
			dal.CreatedAt,
			dal.UpdatedAt,
		).
		Suffix("RETURNING order_number").
		ToSql()
	if err != nil {
		return order.Order{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.conn.QueryRow(ctx, sql, args...).Scan(&o.OrderNumber); err != nil {
		return order.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	return o, nil
}

// Get returns the order with the given id, or nil when there is none.
func (r *PostgresOrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id}))
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
}

func (r *PostgresOrderRepository) get(ctx context.Context, query sq.SelectBuilder) (*order.Order, error) {
	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal OrderDal
	if err := r.conn.QueryRow(ctx, sql, args...).Scan(dal.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	model, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
	}

	return model, nil
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.
		Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC", "order_number DESC")

	if len(filter.Ids) > 0 {
		query = query.Where(sq.Eq{"id": filter.Ids})
	}

	if len(filter.BranchIds) > 0 {
		query = query.Where(sq.Eq{"branch_id": filter.BranchIds})
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = s.String()
		}
		query = query.Where(sq.Eq{"status": statuses})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		var dal OrderDal
		if err := rows.Scan(dal.scanTargets()...); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// Update writes the mutable order fields.
func (r *PostgresOrderRepository) Update(ctx context.Context, o order.Order) error {
	sql, args, err := r.sb.
		Update("orders").
		Set("status", o.Status.String()).
		Set("total_cents", int64(o.TotalCents)).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	return nil
}

// Delete removes the order row and returns the number of rows removed.
func (r *PostgresOrderRepository) Delete(ctx context.Context, id string) (int64, error) {
	sql, args, err := r.sb.Delete("orders").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete order: %w", err)
	}

	return tag.RowsAffected(), nil
}
