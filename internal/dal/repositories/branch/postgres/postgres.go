package postgresrepo

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/branch"
	"github.com/jackc/pgx/v5"
)

type PostgresBranchRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresBranchRepository(conn postgres.Conn) *PostgresBranchRepository {
	return &PostgresBranchRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Get returns the branch or nil when it does not exist.
func (r *PostgresBranchRepository) Get(ctx context.Context, id string) (*branch.Branch, error) {
	sql, args, err := r.sb.
		Select("id", "name", "address", "created_at", "updated_at").
		From("branches").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var b branch.Branch
	err = r.conn.QueryRow(ctx, sql, args...).Scan(&b.ID, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get branch: %w", err)
	}

	return &b, nil
}
