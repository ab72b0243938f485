package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/customization"
)

// PostgresItemCustomizationRepository stores the options chosen for each order line.
type PostgresItemCustomizationRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresItemCustomizationRepository(conn postgres.Conn) *PostgresItemCustomizationRepository {
	return &PostgresItemCustomizationRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// BulkInsert links every selection to its order item.
func (r *PostgresItemCustomizationRepository) BulkInsert(
	ctx context.Context,
	selections []customization.Selection,
) ([]customization.Selection, error) {
	if len(selections) == 0 {
		return []customization.Selection{}, nil
	}

	query := r.sb.Insert("order_item_customizations").Columns("id", "order_item_id", "customization_id")
	for _, s := range selections {
		query = query.Values(s.ID, s.OrderItemID, s.CustomizationID)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return nil, fmt.Errorf("failed to insert item customizations: %w", err)
	}

	return selections, nil
}

// QueryByItems returns the selections of the given order items with option names.
func (r *PostgresItemCustomizationRepository) QueryByItems(
	ctx context.Context,
	orderItemIDs []string,
) ([]customization.Selection, error) {
	if len(orderItemIDs) == 0 {
		return []customization.Selection{}, nil
	}

	sql, args, err := r.sb.
		Select("ic.id", "ic.order_item_id", "ic.customization_id", "pc.name").
		From("order_item_customizations ic").
		Join("product_customizations pc ON pc.id = ic.customization_id").
		Where(sq.Eq{"ic.order_item_id": orderItemIDs}).
		OrderBy("ic.order_item_id", "pc.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query item customizations: %w", err)
	}
	defer rows.Close()

	var result []customization.Selection
	for rows.Next() {
		var s customization.Selection
		if err := rows.Scan(&s.ID, &s.OrderItemID, &s.CustomizationID, &s.Name); err != nil {
			return nil, fmt.Errorf("failed to scan item customization: %w", err)
		}
		result = append(result, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// DeleteByOrder removes the selections of every item belonging to the order.
func (r *PostgresItemCustomizationRepository) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	sql, args, err := r.sb.
		Delete("order_item_customizations").
		Where(sq.Expr("order_item_id IN (SELECT id FROM order_items WHERE order_id = ?)", orderID)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete item customizations: %w", err)
	}

	return tag.RowsAffected(), nil
}
