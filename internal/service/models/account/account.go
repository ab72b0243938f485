package account

import (
	"errors"
	"time"
)

// Role is the authorization role of an account.
type Role string

const (
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

var ErrInvalidRole = errors.New("invalid role")

func (r Role) String() string {
	return string(r)
}

// IsStaff reports whether the role may act as a barista.
func (r Role) IsStaff() bool {
	return r == RoleStaff
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStaff, RoleCustomer:
		return Role(s), nil
	default:
		return "", ErrInvalidRole
	}
}

// Account is a registered user. Refresh fields hold the single rotating credential
// currently valid for the account; all three are nil when none is.
type Account struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Role             Role       `json:"role"`
	BranchID         *string    `json:"branchId,omitempty"`
	PasswordHash     string     `json:"-"`
	RefreshTokenID   *string    `json:"-"`
	RefreshTokenHash *string    `json:"-"`
	RefreshExpiresAt *time.Time `json:"-"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// RefreshCredential is the stored form of a rotating credential.
type RefreshCredential struct {
	LookupID  string
	Hash      string
	ExpiresAt time.Time
}
