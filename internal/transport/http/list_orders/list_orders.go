package listorders

import (
	"context"
	"net/http"
	"strings"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/transport/dto"
	"github.com/corray333/coffeeshop/internal/transport/http/converters"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
	"github.com/gorilla/schema"
)

type service interface {
	ListBranchOrders(ctx context.Context, branchID string, status *order.Status) ([]order.Order, error)
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

type listOrdersRequest struct {
	Branch string `schema:"branch" validate:"required"`
	Status string `schema:"status"`
}

func (q *listOrdersRequest) status() (*order.Status, error) {
	if q.Status == "" {
		return nil, nil
	}

	status, err := order.ParseStatus(strings.ToUpper(q.Status))
	if err != nil {
		return nil, apperr.Validation("unknown status %q", q.Status)
	}

	return &status, nil
}

// ListBranchOrders lists the orders of one branch, newest first.
func ListBranchOrders(w http.ResponseWriter, r *http.Request, service service) {
	query := &listOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		response.Error(w, r, apperr.Validation("invalid query parameters"))
		return
	}
	if err := converters.Validate(query); err != nil {
		response.Error(w, r, err)
		return
	}

	status, err := query.status()
	if err != nil {
		response.Error(w, r, err)
		return
	}

	orders, err := service.ListBranchOrders(r.Context(), query.Branch, status)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, dto.FromOrders(orders))
}
