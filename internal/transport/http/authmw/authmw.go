// Package authmw authenticates REST requests with bearer access credentials.
package authmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
)

var (
	errMissingBearer = errors.New("missing bearer credential")
	errStaffOnly     = errors.New("staff role required")
)

type verifier interface {
	VerifyAccess(token string) (credential.Claims, error)
}

type claimsKey struct{}

// RequireAuth rejects requests without a valid access credential and stores the
// claims in the request context.
func RequireAuth(v verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				response.Error(w, r, apperr.Unauthorized(errMissingBearer))
				return
			}

			claims, err := v.VerifyAccess(token)
			if err != nil {
				response.Error(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireStaff must run after RequireAuth.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok || !claims.Role.IsStaff() {
			slog.WarnContext(r.Context(), "Staff endpoint denied",
				"account_id", claims.AccountID,
				"role", claims.Role,
				"path", r.URL.Path,
			)
			response.Error(w, r, apperr.Unauthorized(errStaffOnly))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// BearerToken extracts the credential from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)

	return token, token != ""
}

func WithClaims(ctx context.Context, claims credential.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func ClaimsFromContext(ctx context.Context) (credential.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(credential.Claims)
	return claims, ok
}
