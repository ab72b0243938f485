package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/transport/dto"
	"github.com/corray333/coffeeshop/internal/transport/http/authmw"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
}

// GetOrder returns one order. Customers only see their own orders; anything
// else is reported as not found.
func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	orderID := chi.URLParam(r, "id")

	o, err := service.GetOrder(r.Context(), orderID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	claims, _ := authmw.ClaimsFromContext(r.Context())
	if !claims.Role.IsStaff() && (o.AccountID == nil || *o.AccountID != claims.AccountID) {
		response.Error(w, r, apperr.NotFound("order", orderID))
		return
	}

	response.JSON(w, r, http.StatusOK, dto.FromOrder(*o))
}
