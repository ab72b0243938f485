package authsvc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	iaccount "github.com/corray333/coffeeshop/internal/dal/interfaces/iaccountrepo"
	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshSeparator   = "."
	refreshSecretBytes = 32
)

var (
	errMalformedRefresh = errors.New("malformed rotating credential")
	errUnknownRefresh   = errors.New("unknown rotating credential")
	errExpiredRefresh   = errors.New("rotating credential expired")
	errRefreshMismatch  = errors.New("rotating credential mismatch")
	errRefreshRaced     = errors.New("rotating credential already rotated")
)

// accessClaims is the JWT payload of an access credential.
type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssuePair signs a new access credential and stores a fresh rotating
// credential for the account, replacing any previous one.
func (s *AuthService) IssuePair(ctx context.Context, acc account.Account) (*credential.Pair, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "AuthService.IssuePair")
	defer span.End()

	pair, stored, err := s.newPair(acc)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.SetRefreshCredential(ctx, acc.ID, stored, s.now()); err != nil {
		if errors.Is(err, iaccount.ErrAccountNotFound) {
			return nil, apperr.NotFound("account", acc.ID)
		}

		return nil, fmt.Errorf("failed to store rotating credential: %w", err)
	}

	return pair, nil
}

// Refresh exchanges a rotating credential for a new pair. The presented
// credential stops working once this returns successfully.
func (s *AuthService) Refresh(ctx context.Context, presented string) (*account.Account, *credential.Pair, error) {
	ctx, span := otel.Tracer("service").Start(ctx, "AuthService.Refresh")
	defer span.End()

	lookupID, secret, ok := strings.Cut(presented, refreshSeparator)
	if !ok || lookupID == "" || secret == "" {
		return nil, nil, apperr.Unauthorized(errMalformedRefresh)
	}

	acc, err := s.accounts.GetByRefreshTokenID(ctx, lookupID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up rotating credential: %w", err)
	}
	if acc == nil || acc.RefreshTokenHash == nil || acc.RefreshExpiresAt == nil {
		return nil, nil, apperr.Unauthorized(errUnknownRefresh)
	}

	now := s.now()
	if !acc.RefreshExpiresAt.After(now) {
		return nil, nil, apperr.Unauthorized(errExpiredRefresh)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*acc.RefreshTokenHash), []byte(secret)); err != nil {
		slog.Warn("Rotating credential hash mismatch", "account_id", acc.ID)

		return nil, nil, apperr.Unauthorized(errRefreshMismatch)
	}

	pair, next, err := s.newPair(*acc)
	if err != nil {
		return nil, nil, err
	}

	rotated, err := s.accounts.RotateRefreshCredential(ctx, acc.ID, lookupID, *next, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to rotate credential: %w", err)
	}
	if !rotated {
		return nil, nil, apperr.Unauthorized(errRefreshRaced)
	}

	return acc, pair, nil
}

// Revoke clears the stored rotating credential of the account.
func (s *AuthService) Revoke(ctx context.Context, accountID string) error {
	if err := s.accounts.SetRefreshCredential(ctx, accountID, nil, s.now()); err != nil {
		if errors.Is(err, iaccount.ErrAccountNotFound) {
			return apperr.NotFound("account", accountID)
		}

		return fmt.Errorf("failed to revoke rotating credential: %w", err)
	}

	return nil
}

// VerifyAccess validates an access credential and returns its identity. Every
// failure is reported as the same Unauthorized error.
func (s *AuthService) VerifyAccess(token string) (credential.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return credential.Claims{}, apperr.Unauthorized(errors.New("access credential is required"))
	}

	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return credential.Claims{}, apperr.Unauthorized(err)
	}

	if parsed.Issuer != s.issuer {
		return credential.Claims{}, apperr.Unauthorized(errors.New("issuer mismatch"))
	}
	if parsed.ExpiresAt == nil {
		return credential.Claims{}, apperr.Unauthorized(errors.New("exp is required"))
	}
	if !parsed.ExpiresAt.Time.After(s.now()) {
		return credential.Claims{}, apperr.Unauthorized(jwt.ErrTokenExpired)
	}
	if parsed.Subject == "" {
		return credential.Claims{}, apperr.Unauthorized(errors.New("sub is required"))
	}

	role, err := account.ParseRole(parsed.Role)
	if err != nil {
		return credential.Claims{}, apperr.Unauthorized(err)
	}

	return credential.Claims{
		AccountID: parsed.Subject,
		Role:      role,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

// newPair builds both credentials without storing anything.
func (s *AuthService) newPair(acc account.Account) (*credential.Pair, *account.RefreshCredential, error) {
	now := s.now()

	accessExpiresAt := now.Add(s.accessTTL)
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   acc.ID,
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        s.newID(),
		},
		Role: acc.Role.String(),
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign access credential: %w", err)
	}

	raw := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, nil, fmt.Errorf("failed to generate rotating credential: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash rotating credential: %w", err)
	}

	stored := &account.RefreshCredential{
		LookupID:  s.newID(),
		Hash:      string(hash),
		ExpiresAt: now.Add(s.refreshTTL),
	}

	return &credential.Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     stored.LookupID + refreshSeparator + secret,
		RefreshExpiresAt: stored.ExpiresAt,
	}, stored, nil
}
