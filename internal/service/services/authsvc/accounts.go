package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

var errBadLogin = errors.New("invalid email or password")

// dummyHash is compared against when the email is unknown, so a missing account
// costs the same bcrypt round as a wrong password.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("coffeeshop-timing-equalizer"), bcrypt.DefaultCost)

// RegisterInput is a new customer account request.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*account.Account, *credential.Pair, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "AuthService.Register")
	defer span.End()

	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apperr.Validation("invalid email address")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, nil, apperr.Validation("name is required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if existing != nil {
		return nil, nil, apperr.Conflict("email %q is already registered", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, nil, apperr.Validation("password is too long")
		}

		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	acc := account.Account{
		ID:           s.newID(),
		Email:        email,
		Name:         name,
		Role:         account.RoleCustomer,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.accounts.Insert(ctx, acc); err != nil {
		if errors.Is(err, iaccount.ErrDuplicateEmail) {
			return nil, nil, apperr.Conflict("email %q is already registered", email)
		}

		return nil, nil, err
	}

	pair, err := s.IssuePair(ctx, acc)
	if err != nil {
		return nil, nil, err
	}

	return &acc, pair, nil
}

// Login checks the password and issues a new pair, which invalidates the
// rotating credential of any earlier session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*account.Account, *credential.Pair, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "AuthService.Login")
	defer span.End()

	acc, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if acc == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))

		return nil, nil, apperr.Unauthorized(errBadLogin)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, nil, apperr.Unauthorized(errBadLogin)
	}

	pair, err := s.IssuePair(ctx, *acc)
	if err != nil {
		return nil, nil, err
	}

	return acc, pair, nil
}

// Account returns the account with the given id.
func (s *AuthService) Account(ctx context.Context, id string) (*account.Account, error) {
	acc, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if acc == nil {
		return nil, apperr.NotFound("account", id)
	}

	return acc, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
