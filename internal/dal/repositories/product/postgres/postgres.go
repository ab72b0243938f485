package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/customization"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/product"
)

// PostgresCatalogRepository reads products and their customization options.
type PostgresCatalogRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresCatalogRepository(conn postgres.Conn) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// ProductsByIDs returns the known products keyed by id.
func (r *PostgresCatalogRepository) ProductsByIDs(ctx context.Context, ids []string) (map[string]product.Product, error) {
	result := make(map[string]product.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sql, args, err := r.sb.
		Select("id", "name", "base_price_cents", "available").
		From("products").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p     product.Product
			price int64
		)
		if err := rows.Scan(&p.ID, &p.Name, &price, &p.Available); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.BasePriceCents = money.Cents(price)
		result[p.ID] = p
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// OptionsByIDs returns the known customization options keyed by id.
func (r *PostgresCatalogRepository) OptionsByIDs(ctx context.Context, ids []string) (map[string]customization.Option, error) {
	result := make(map[string]customization.Option, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	sql, args, err := r.sb.
		Select("id", "product_id", "name", "price_delta_cents").
		From("product_customizations").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o     customization.Option
			delta int64
		)
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Name, &delta); err != nil {
			return nil, fmt.Errorf("failed to scan customization: %w", err)
		}
		o.PriceDeltaCents = money.Cents(delta)
		result[o.ID] = o
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
