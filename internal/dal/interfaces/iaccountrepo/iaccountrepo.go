package iaccount

import (
	"context"
	"errors"
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/account"
)

var (
	// ErrDuplicateEmail is returned by Insert when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrAccountNotFound is returned by SetRefreshCredential for an unknown account.
	ErrAccountNotFound = errors.New("account not found")
)

// IAccountRepository is the credential store. Lookups return nil without error
// when nothing matches.
type IAccountRepository interface {
	Get(ctx context.Context, id string) (*account.Account, error)
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
	GetByRefreshTokenID(ctx context.Context, lookupID string) (*account.Account, error)
	Insert(ctx context.Context, acc account.Account) error

	// SetRefreshCredential overwrites the stored rotating credential. A nil
	// credential clears it.
	SetRefreshCredential(
		ctx context.Context,
		accountID string,
		cred *account.RefreshCredential,
		now time.Time,
	) error

	// RotateRefreshCredential replaces the credential only while previousLookupID is
	// still the stored one, and reports whether it did.
	RotateRefreshCredential(
		ctx context.Context,
		accountID string,
		previousLookupID string,
		next account.RefreshCredential,
		now time.Time,
	) (bool, error)
}
