package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/service/models/currency"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/services/authsvc"
	"github.com/corray333/coffeeshop/internal/service/services/ordersvc"
)

type fakeOrders struct {
	orders  map[string]*order.Order
	created []ordersvc.CreateOrderInput
	removed []string
	listed  []string
}

func (f *fakeOrders) CreateOrder(_ context.Context, in ordersvc.CreateOrderInput) (*order.Order, error) {
	f.created = append(f.created, in)

	return &order.Order{
		ID:           "ord-new",
		OrderNumber:  17,
		BranchID:     in.BranchID,
		AccountID:    in.AccountID,
		CustomerName: in.CustomerName,
		Status:       order.StatusPending,
		TotalCents:   890,
		Currency:     currency.CurrencyRUB,
	}, nil
}

func (f *fakeOrders) UpdateOrder(_ context.Context, in ordersvc.UpdateOrderInput) (*order.Order, error) {
	o, ok := f.orders[in.OrderID]
	if !ok {
		return nil, apperr.NotFound("order", in.OrderID)
	}

	return o, nil
}

func (f *fakeOrders) RemoveOrder(_ context.Context, orderID string, actorID *string) error {
	if _, ok := f.orders[orderID]; !ok {
		return apperr.NotFound("order", orderID)
	}
	if actorID != nil {
		f.removed = append(f.removed, orderID+":"+*actorID)
	}

	return nil
}

func (f *fakeOrders) ListBranchOrders(_ context.Context, branchID string, _ *order.Status) ([]order.Order, error) {
	f.listed = append(f.listed, branchID)

	return []order.Order{}, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, orderID string) (*order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, apperr.NotFound("order", orderID)
	}

	return o, nil
}

type fakeAuth struct {
	tokens     map[string]credential.Claims
	refreshErr error
	revoked    []string
}

func (f *fakeAuth) session() (*account.Account, *credential.Pair) {
	acc := &account.Account{ID: "acc-1", Email: "ann@example.com", Name: "Ann", Role: account.RoleCustomer}
	pair := &credential.Pair{
		AccessToken:      "access-1",
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshToken:     "lookup.secret",
		RefreshExpiresAt: time.Now().Add(24 * time.Hour),
	}

	return acc, pair
}

func (f *fakeAuth) Register(context.Context, authsvc.RegisterInput) (*account.Account, *credential.Pair, error) {
	acc, pair := f.session()
	return acc, pair, nil
}

func (f *fakeAuth) Login(_ context.Context, _, password string) (*account.Account, *credential.Pair, error) {
	if password != "correct horse" {
		return nil, nil, apperr.Unauthorized(errors.New("password mismatch"))
	}
	acc, pair := f.session()

	return acc, pair, nil
}

func (f *fakeAuth) Refresh(context.Context, string) (*account.Account, *credential.Pair, error) {
	if f.refreshErr != nil {
		return nil, nil, f.refreshErr
	}
	acc, pair := f.session()

	return acc, pair, nil
}

func (f *fakeAuth) Revoke(_ context.Context, accountID string) error {
	f.revoked = append(f.revoked, accountID)
	return nil
}

func (f *fakeAuth) VerifyAccess(token string) (credential.Claims, error) {
	claims, ok := f.tokens[token]
	if !ok {
		return credential.Claims{}, apperr.Unauthorized(errors.New("unknown token"))
	}

	return claims, nil
}

func strPtr(s string) *string { return &s }

func newTestTransport() (*HTTPTransport, *fakeOrders, *fakeAuth) {
	orders := &fakeOrders{orders: map[string]*order.Order{
		"ord-1": {ID: "ord-1", BranchID: "br-1", AccountID: strPtr("cust-1"), Status: order.StatusPending, TotalCents: 450},
	}}
	auth := &fakeAuth{tokens: map[string]credential.Claims{
		"staff":  {AccountID: "staff-1", Role: account.RoleStaff},
		"cust-1": {AccountID: "cust-1", Role: account.RoleCustomer},
		"cust-2": {AccountID: "cust-2", Role: account.RoleCustomer},
	}}

	transport := NewHTTPTransport(orders, auth, nil)
	transport.RegisterRoutes()

	return transport, orders, auth
}

func do(t *testing.T, h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func TestCreatePublicOrderReturnsReceipt(t *testing.T) {
	transport, orders, _ := newTestTransport()

	body := `{"branchId":" br-1 ","customerName":"  Ann ","items":[{"productId":"p-1","quantity":2,"price":4.45}],"total":8.9}`
	rec := do(t, transport.Handler(), http.MethodPost, "/orders/public", "", body)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var receipt struct {
		ID            string  `json:"id"`
		OrderNumber   int64   `json:"orderNumber"`
		Status        string  `json:"status"`
		Total         float64 `json:"total"`
		EstimatedTime int     `json:"estimatedTime"`
		CustomerName  *string `json:"customerName"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if receipt.ID != "ord-new" || receipt.OrderNumber != 17 || receipt.Status != "PENDING" || receipt.Total != 8.9 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.CustomerName == nil || *receipt.CustomerName != "Ann" {
		t.Fatalf("customer name = %v", receipt.CustomerName)
	}

	in := orders.created[0]
	if in.BranchID != "br-1" || in.AccountID != nil {
		t.Fatalf("unexpected input: %+v", in)
	}
	if in.ClientTotal == nil || *in.ClientTotal != 8.9 {
		t.Fatalf("client total not forwarded")
	}
	if len(in.Items) != 1 || in.Items[0].Quantity != 2 || in.Items[0].UnitPrice != 4.45 {
		t.Fatalf("unexpected items: %+v", in.Items)
	}
}

func TestCreatePublicOrderRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no items", `{"branchId":"br-1","items":[]}`},
		{"no branch", `{"items":[{"productId":"p-1","quantity":1}]}`},
		{"customizations without price", `{"branchId":"br-1","items":[{"productId":"p-1","quantity":1,"customizations":["c-1"]}]}`},
		{"not json", `{"branchId":`},
		{"quantity above cap", `{"branchId":"br-1","items":[{"productId":"p-1","quantity":1001}]}`},
		{"huge quantity", `{"branchId":"br-1","items":[{"productId":"p-1","quantity":2000000000,"price":1000000000000,"customizations":["c-1"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, orders, _ := newTestTransport()

			rec := do(t, transport.Handler(), http.MethodPost, "/orders/public", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if len(orders.created) != 0 {
				t.Fatal("service must not be called")
			}
		})
	}
}

func TestStaffRoutesRequireStaffRole(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		want   int
	}{
		{"list without token", http.MethodGet, "/orders/branch?branch=br-1", "", "", http.StatusUnauthorized},
		{"list as customer", http.MethodGet, "/orders/branch?branch=br-1", "cust-1", "", http.StatusUnauthorized},
		{"list as staff", http.MethodGet, "/orders/branch?branch=br-1", "staff", "", http.StatusOK},
		{"list unknown status", http.MethodGet, "/orders/branch?branch=br-1&status=lost", "staff", "", http.StatusBadRequest},
		{"list without branch", http.MethodGet, "/orders/branch", "staff", "", http.StatusBadRequest},
		{"update as customer", http.MethodPatch, "/orders/ord-1", "cust-1", `{"status":"READY"}`, http.StatusUnauthorized},
		{"update as staff", http.MethodPatch, "/orders/ord-1", "staff", `{"status":"READY"}`, http.StatusOK},
		{"update with nothing", http.MethodPatch, "/orders/ord-1", "staff", `{}`, http.StatusBadRequest},
		{"remove as customer", http.MethodDelete, "/orders/ord-1", "cust-1", "", http.StatusUnauthorized},
		{"remove missing", http.MethodDelete, "/orders/nope", "staff", "", http.StatusNotFound},
		{"remove as staff", http.MethodDelete, "/orders/ord-1", "staff", "", http.StatusNoContent},
		{"bad token", http.MethodGet, "/orders/branch?branch=br-1", "forged", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport, _, _ := newTestTransport()

			rec := do(t, transport.Handler(), tt.method, tt.target, tt.token, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRemoveOrderRecordsActor(t *testing.T) {
	transport, orders, _ := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodDelete, "/orders/ord-1", "staff", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(orders.removed) != 1 || orders.removed[0] != "ord-1:staff-1" {
		t.Fatalf("removed = %v", orders.removed)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	tests := []struct {
		token string
		want  int
	}{
		{"cust-1", http.StatusOK},
		{"cust-2", http.StatusNotFound},
		{"staff", http.StatusOK},
		{"", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run("token "+tt.token, func(t *testing.T) {
			transport, _, _ := newTestTransport()

			rec := do(t, transport.Handler(), http.MethodGet, "/orders/ord-1", tt.token, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestLoginSetsRefreshCookie(t *testing.T) {
	transport, _, _ := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodPost, "/auth/login", "",
		`{"email":"ann@example.com","password":"correct horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "refresh_token" || c.Value != "lookup.secret" || c.Path != "/auth" || !c.HttpOnly {
		t.Fatalf("unexpected cookie: %+v", c)
	}
	if c.SameSite != http.SameSiteStrictMode {
		t.Fatalf("same site = %v", c.SameSite)
	}

	var session struct {
		AccessToken string `json:"accessToken"`
		Account     struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"account"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.AccessToken != "access-1" || session.Account.ID != "acc-1" || session.Account.Role != "customer" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if strings.Contains(rec.Body.String(), "lookup.secret") {
		t.Fatal("refresh credential must only travel in the cookie")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	transport, _, _ := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodPost, "/auth/login", "",
		`{"email":"ann@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("no cookie on failed login")
	}
}

func TestRefreshFailureClearsCookie(t *testing.T) {
	transport, _, auth := newTestTransport()
	auth.refreshErr = apperr.Unauthorized(errors.New("reused credential"))

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "lookup.stale"})
	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "refresh_token" || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected cleared cookie, got %+v", cookies)
	}
}

func TestRefreshAcceptsBodyCredential(t *testing.T) {
	transport, _, _ := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodPost, "/auth/refresh", "", `{"refreshToken":"lookup.secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutRevokes(t *testing.T) {
	transport, _, auth := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodPost, "/auth/logout", "cust-1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(auth.revoked) != 1 || auth.revoked[0] != "cust-1" {
		t.Fatalf("revoked = %v", auth.revoked)
	}
}

func TestHealthz(t *testing.T) {
	transport, _, _ := newTestTransport()

	rec := do(t, transport.Handler(), http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("status = %d, body = %q", rec.Code, rec.Body.String())
	}
}
