package updateorder

import (
	"context"
	"net/http"
	"strings"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/services/ordersvc"
	"github.com/corray333/coffeeshop/internal/transport/dto"
	"github.com/corray333/coffeeshop/internal/transport/http/authmw"
	"github.com/corray333/coffeeshop/internal/transport/http/converters"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	UpdateOrder(ctx context.Context, in ordersvc.UpdateOrderInput) (*order.Order, error)
}

// updateOrderRequest is a partial update; absent fields stay unchanged.
type updateOrderRequest struct {
	Status *string                   `json:"status"`
	Items  *[]converters.ItemRequest `json:"items" validate:"omitempty,dive"`
	Total  *float64                  `json:"total"`
}

func (r *updateOrderRequest) toInput(orderID string, actorID *string) (ordersvc.UpdateOrderInput, error) {
	in := ordersvc.UpdateOrderInput{
		OrderID: orderID,
		Total:   r.Total,
		ActorID: actorID,
	}

	if r.Status != nil {
		status, err := order.ParseStatus(strings.ToUpper(strings.TrimSpace(*r.Status)))
		if err != nil {
			return in, apperr.Validation("unknown status %q", *r.Status)
		}
		in.Status = &status
	}

	if r.Items != nil {
		items, err := converters.ItemInputsFromRequest(*r.Items)
		if err != nil {
			return in, err
		}
		in.Items = &items
	}

	if in.Status == nil && in.Items == nil && in.Total == nil {
		return in, apperr.Validation("nothing to update")
	}

	return in, nil
}

// UpdateOrder changes the status, items or total of an order.
func UpdateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := updateOrderRequest{}
	if err := converters.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	var actorID *string
	if claims, ok := authmw.ClaimsFromContext(r.Context()); ok {
		actorID = &claims.AccountID
	}

	in, err := req.toInput(chi.URLParam(r, "id"), actorID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	o, err := service.UpdateOrder(r.Context(), in)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, dto.FromOrder(*o))
}
