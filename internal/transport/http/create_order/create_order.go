package createorder

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
)

// service is an interface for the service layer.
type service interface {
	CreateOrder(ctx context.Context, in ordersvc.CreateOrderInput) (*order.Order, error)
}

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	BranchID     string                   `json:"branchId"     validate:"required"`
	CustomerName *string                  `json:"customerName" validate:"omitempty,max=100"`
	Items        []converters.ItemRequest `json:"items"        validate:"required,min=1,dive"`
	Total        *float64                 `json:"total"`
}

// toInput converts createOrderRequest to the service input.
func (r *createOrderRequest) toInput(accountID *string) (ordersvc.CreateOrderInput, error) {
	items, err := converters.ItemInputsFromRequest(r.Items)
	if err != nil {
		return ordersvc.CreateOrderInput{}, err
	}

	var name *string
	if r.CustomerName != nil {
		if trimmed := strings.TrimSpace(*r.CustomerName); trimmed != "" {
			name = &trimmed
		}
	}

	return ordersvc.CreateOrderInput{
		BranchID:     strings.TrimSpace(r.BranchID),
		AccountID:    accountID,
		CustomerName: name,
		Items:        items,
		ClientTotal:  r.Total,
	}, nil
}

// CreatePublic handles anonymous kiosk orders and answers with a receipt.
func CreatePublic(w http.ResponseWriter, r *http.Request, service service) {
	o, ok := create(w, r, service, nil)
	if !ok {
		return
	}

	response.JSON(w, r, http.StatusCreated, dto.ReceiptFromOrder(*o))
}

// Create handles orders placed by a signed-in account.
func Create(w http.ResponseWriter, r *http.Request, service service) {
	claims, ok := authmw.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, r, apperr.Unauthorized(nil))
		return
	}

	accountID := claims.AccountID
	o, ok := create(w, r, service, &accountID)
	if !ok {
		return
	}

	response.JSON(w, r, http.StatusCreated, dto.FromOrder(*o))
}

func create(w http.ResponseWriter, r *http.Request, service service, accountID *string) (*order.Order, bool) {
	req := createOrderRequest{}
	if err := converters.DecodeJSON(w, r, &req); err != nil {
		response.Error(w, r, err)
		return nil, false
	}

	in, err := req.toInput(accountID)
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}

	o, err := service.CreateOrder(r.Context(), in)
	if err != nil {
		response.Error(w, r, err)
		return nil, false
	}

	return o, true
}
