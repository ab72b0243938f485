package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderItemDal represents order item data access layer model.
type OrderItemDal struct {
	Id             string    `db:"id"`
	OrderId        string    `db:"order_id"`
	ProductId      string    `db:"product_id"`
	ProductName    string    `db:"product_name"`
	Quantity       int       `db:"quantity"`
	UnitPriceCents int64     `db:"unit_price_cents"`
	Position       int       `db:"position"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// ToModel converts OrderItemDal to service layer OrderItem model.
func (oi *OrderItemDal) ToModel() *orderitem.OrderItem {
	return &orderitem.OrderItem{
		ID:             oi.Id,
		OrderID:        oi.OrderId,
		ProductID:      oi.ProductId,
		ProductName:    oi.ProductName,
		Quantity:       oi.Quantity,
		UnitPriceCents: money.Cents(oi.UnitPriceCents),
		CreatedAt:      oi.CreatedAt,
		UpdatedAt:      oi.UpdatedAt,
	}
}

// PostgresOrderItemRepository represents a Postgres order item repository.
type PostgresOrderItemRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

// NewPostgresOrderItemRepository creates a new Postgres order item repository.
func NewPostgresOrderItemRepository(conn postgres.Conn) *PostgresOrderItemRepository {
	return &PostgresOrderItemRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert inserts all items in one statement, keeping their slice order in
// the position column.
func (r *PostgresOrderItemRepository) BulkInsert(
	ctx context.Context,
	orderItems []orderitem.OrderItem,
) ([]orderitem.OrderItem, error) {
	if len(orderItems) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	var (
		ids        = make([]string, len(orderItems))
		orderIDs   = make([]string, len(orderItems))
		productIDs = make([]string, len(orderItems))
		quantities = make([]int32, len(orderItems))
		prices     = make([]int64, len(orderItems))
		positions  = make([]int32, len(orderItems))
		createdAt  = make([]pgtype.Timestamptz, len(orderItems))
		updatedAt  = make([]pgtype.Timestamptz, len(orderItems))
	)
	for i, oi := range orderItems {
		ids[i] = oi.ID
		orderIDs[i] = oi.OrderID
		productIDs[i] = oi.ProductID
		quantities[i] = int32(oi.Quantity)
		prices[i] = int64(oi.UnitPriceCents)
		positions[i] = int32(i)
		createdAt[i] = pgtype.Timestamptz{Time: oi.CreatedAt, Valid: true}
		updatedAt[i] = pgtype.Timestamptz{Time: oi.UpdatedAt, Valid: true}
	}

	sql := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price_cents, position, created_at, updated_at)
		SELECT * FROM unnest(
			$1::text[], $2::text[], $3::text[], $4::int[], $5::bigint[], $6::int[], $7::timestamptz[], $8::timestamptz[]
		)
	`

	if _, err := r.conn.Exec(ctx, sql, ids, orderIDs, productIDs, quantities, prices, positions, createdAt, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to bulk insert order items: %w", err)
	}

	return orderItems, nil
}

// ListByOrders returns the items of the given orders with their product names,
// grouped by order in the position they were placed.
func (r *PostgresOrderItemRepository) ListByOrders(ctx context.Context, orderIDs []string) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	sql, args, err := r.sb.
		Select(
			"oi.id",
			"oi.order_id",
			"oi.product_id",
			"p.name",
			"oi.quantity",
			"oi.unit_price_cents",
			"oi.position",
			"oi.created_at",
			"oi.updated_at",
		).
		From("order_items oi").
		Join("products p ON p.id = oi.product_id").
		Where(sq.Eq{"oi.order_id": orderIDs}).
		OrderBy("oi.order_id", "oi.position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build order items query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	result := make([]orderitem.OrderItem, 0, len(orderIDs))
	for rows.Next() {
		var dal OrderItemDal

		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.ProductName,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.Position,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		result = append(result, *dal.ToModel())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// DeleteByOrder removes every item of the order.
func (r *PostgresOrderItemRepository) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	sql, args, err := r.sb.Delete("order_items").Where(sq.Eq{"order_id": orderID}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete order items: %w", err)
	}

	return tag.RowsAffected(), nil
}
