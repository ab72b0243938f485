// Package auth serves registration, login, credential refresh and logout.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/service/services/authsvc"
	"github.com/corray333/coffeeshop/internal/transport/dto"
	"github.com/corray333/coffeeshop/internal/transport/http/authmw"
	"github.com/corray333/coffeeshop/internal/transport/http/converters"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
	"github.com/spf13/viper"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

var errNoRefreshCredential = errors.New("no refresh credential presented")

type service interface {
	Register(ctx context.Context, in authsvc.RegisterInput) (*account.Account, *credential.Pair, error)
	Login(ctx context.Context, email, password string) (*account.Account, *credential.Pair, error)
	Refresh(ctx context.Context, presented string) (*account.Account, *credential.Pair, error)
	Revoke(ctx context.Context, accountID string) error
}

type registerRequest struct {
	Email    string `json:"email"    validate:"required"`
	Name     string `json:"name"     validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	AccessToken string      `json:"accessToken"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Account     dto.Account `json:"account"`
}

func Register(w http.ResponseWriter, r *http.Request, service service) {
	req := registerRequest{}
	if err := converters.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	acc, pair, err := service.Register(r.Context(), authsvc.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	writeSession(w, r, http.StatusCreated, acc, pair)
}

func Login(w http.ResponseWriter, r *http.Request, service service) {
	req := loginRequest{}
	if err := converters.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	acc, pair, err := service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	writeSession(w, r, http.StatusOK, acc, pair)
}

// Refresh rotates the credential from the refresh_token cookie. Clients without
// cookie support may send it as {"refreshToken": "..."} instead.
func Refresh(w http.ResponseWriter, r *http.Request, service service) {
	presented := ""
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		presented = cookie.Value
	}
	if presented == "" && r.Body != nil {
		req := refreshRequest{}
		r.Body = http.MaxBytesReader(w, r.Body, 4096)
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			presented = req.RefreshToken
		}
	}
	if presented == "" {
		clearRefreshCookie(w)
		response.Error(w, r, apperr.Unauthorized(errNoRefreshCredential))
		return
	}

	acc, pair, err := service.Refresh(r.Context(), presented)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnauthorized {
			clearRefreshCookie(w)
		}
		response.Error(w, r, err)
		return
	}

	writeSession(w, r, http.StatusOK, acc, pair)
}

// Logout revokes the account's rotating credential.
func Logout(w http.ResponseWriter, r *http.Request, service service) {
	claims, ok := authmw.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, apperr.Unauthorized(nil))
		return
	}

	if err := service.Revoke(r.Context(), claims.AccountID); err != nil {
		response.Error(w, r, err)
		return
	}

	clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeSession(w http.ResponseWriter, r *http.Request, status int, acc *account.Account, pair *credential.Pair) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     refreshCookiePath,
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   viper.GetBool("auth.cookie_secure"),
		SameSite: http.SameSiteStrictMode,
	})

	response.JSON(w, r, status, sessionResponse{
		AccessToken: pair.AccessToken,
		ExpiresAt:   pair.AccessExpiresAt,
		Account:     dto.AccountFromModel(*acc),
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   viper.GetBool("auth.cookie_secure"),
		SameSite: http.SameSiteStrictMode,
	})
}
