package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var accountColumns = []string{
	"id",
	"email",
	"name",
	"role",
	"branch_id",
	"password_hash",
	"refresh_token_id",
	"refresh_token_hash",
	"refresh_expires_at",
	"created_at",
	"updated_at",
}

// AccountDal represents account data access layer model.
type AccountDal struct {
	Id               string     `db:"id"`
	Email            string     `db:"email"`
	Name             string     `db:"name"`
	Role             string     `db:"role"`
	BranchId         *string    `db:"branch_id"`
	PasswordHash     string     `db:"password_hash"`
	RefreshTokenId   *string    `db:"refresh_token_id"`
	RefreshTokenHash *string    `db:"refresh_token_hash"`
	RefreshExpiresAt *time.Time `db:"refresh_expires_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (a *AccountDal) ToModel() (*account.Account, error) {
	role, err := account.ParseRole(a.Role)
	if err != nil {
		return nil, err
	}

	return &account.Account{
		ID:               a.Id,
		Email:            a.Email,
		Name:             a.Name,
		Role:             role,
		BranchID:         a.BranchId,
		PasswordHash:     a.PasswordHash,
		RefreshTokenID:   a.RefreshTokenId,
		RefreshTokenHash: a.RefreshTokenHash,
		RefreshExpiresAt: a.RefreshExpiresAt,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}, nil
}

type PostgresAccountRepository struct {
	conn postgres.Conn
	sb   sq.StatementBuilderType
}

func NewPostgresAccountRepository(conn postgres.Conn) *PostgresAccountRepository {
	return &PostgresAccountRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresAccountRepository) Get(ctx context.Context, id string) (*account.Account, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

func (r *PostgresAccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.getBy(ctx, sq.Eq{"email": email})
}

func (r *PostgresAccountRepository) GetByRefreshTokenID(ctx context.Context, lookupID string) (*account.Account, error) {
	return r.getBy(ctx, sq.Eq{"refresh_token_id": lookupID})
}

func (r *PostgresAccountRepository) getBy(ctx context.Context, pred sq.Eq) (*account.Account, error) {
	sql, args, err := r.sb.Select(accountColumns...).From("accounts").Where(pred).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var dal AccountDal
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&dal.Id,
		&dal.Email,
		&dal.Name,
		&dal.Role,
		&dal.BranchId,
		&dal.PasswordHash,
		&dal.RefreshTokenId,
		&dal.RefreshTokenHash,
		&dal.RefreshExpiresAt,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	acc, err := dal.ToModel()
	if err != nil {
		return nil, fmt.Errorf("failed to convert account dal to model: %w", err)
	}

	return acc, nil
}

// Insert stores a new account. A taken email yields iaccount.ErrDuplicateEmail.
func (r *PostgresAccountRepository) Insert(ctx context.Context, acc account.Account) error {
	sql, args, err := r.sb.
		Insert("accounts").
		Columns("id", "email", "name", "role", "branch_id", "password_hash", "created_at", "updated_at").
		Values(acc.ID, acc.Email, acc.Name, acc.Role.String(), acc.BranchID, acc.PasswordHash, acc.CreatedAt, acc.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return iaccount.ErrDuplicateEmail
		}

		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// SetRefreshCredential overwrites the stored credential; nil clears it.
func (r *PostgresAccountRepository) SetRefreshCredential(
	ctx context.Context,
	accountID string,
	cred *account.RefreshCredential,
	now time.Time,
) error {
	query := r.sb.Update("accounts").Set("updated_at", now).Where(sq.Eq{"id": accountID})
	if cred == nil {
		query = query.
			Set("refresh_token_id", nil).
			Set("refresh_token_hash", nil).
			Set("refresh_expires_at", nil)
	} else {
		query = query.
			Set("refresh_token_id", cred.LookupID).
			Set("refresh_token_hash", cred.Hash).
			Set("refresh_expires_at", cred.ExpiresAt)
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to store refresh credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return iaccount.ErrAccountNotFound
	}

	return nil
}

// RotateRefreshCredential swaps the credential only if previousLookupID is still
// current. Two concurrent refreshes of one token cannot both succeed.
func (r *PostgresAccountRepository) RotateRefreshCredential(
	ctx context.Context,
	accountID string,
	previousLookupID string,
	next account.RefreshCredential,
	now time.Time,
) (bool, error) {
	sql, args, err := r.sb.
		Update("accounts").
		Set("refresh_token_id", next.LookupID).
		Set("refresh_token_hash", next.Hash).
		Set("refresh_expires_at", next.ExpiresAt).
		Set("updated_at", now).
		Where(sq.Eq{"id": accountID, "refresh_token_id": previousLookupID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh credential: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
