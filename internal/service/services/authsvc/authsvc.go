package authsvc

import (
	"os"
	"time"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/coffeeshop/internal/dal/postgres"
	accountrepo "github.com/corray333/coffeeshop/internal/dal/repositories/account/postgres"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultIssuer     = "coffeeshop"
	minPasswordLength = 8
)

// AuthService issues and verifies credentials. Access credentials are signed
// JWTs; rotating credentials are opaque "<lookup id>.<secret>" strings of which
// only a bcrypt hash of the secret is stored.
type AuthService struct {
	accounts iaccount.IAccountRepository

	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int

	now   func() time.Time
	newID func() string
}

// option is a function that configures the AuthService.
type option func(*AuthService)

// MustNewAuthService creates a new AuthService. Settings come from viper
// (auth.*) and the signing secret from COFFEE_JWT_SECRET.
func MustNewAuthService(opts ...option) *AuthService {
	s := &AuthService{
		secret:     []byte(os.Getenv("COFFEE_JWT_SECRET")),
		issuer:     viper.GetString("auth.issuer"),
		accessTTL:  viper.GetDuration("auth.access_ttl"),
		refreshTTL: viper.GetDuration("auth.refresh_ttl"),
		bcryptCost: viper.GetInt("auth.bcrypt_cost"),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.issuer == "" {
		s.issuer = defaultIssuer
	}
	if s.accessTTL <= 0 {
		s.accessTTL = defaultAccessTTL
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = defaultRefreshTTL
	}
	if s.bcryptCost < bcrypt.MinCost {
		s.bcryptCost = bcrypt.DefaultCost
	}

	if len(s.secret) < 32 {
		panic("authsvc: COFFEE_JWT_SECRET must be at least 32 bytes")
	}
	if s.accounts == nil {
		panic("authsvc: account repository is required")
	}

	return s
}

// WithPostgresClient sets the Postgres client used for the account store.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *AuthService) {
		s.accounts = accountrepo.NewPostgresAccountRepository(pgClient.Pool())
	}
}

// WithAccountRepository sets the account store directly.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAccountRepository(repo iaccount.IAccountRepository) option {
	return func(s *AuthService) {
		s.accounts = repo
	}
}

// WithSecret overrides the signing secret.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithSecret(secret []byte) option {
	return func(s *AuthService) {
		s.secret = secret
	}
}

// AccessTTL is the lifetime of issued access credentials.
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL is the lifetime of issued rotating credentials.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}
