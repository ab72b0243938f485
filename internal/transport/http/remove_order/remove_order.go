package removeorder

import (
	"context"
	"net/http"

	"github.com/corray333/coffeeshop/internal/transport/http/authmw"
	"github.com/corray333/coffeeshop/internal/transport/http/response"
	"github.com/go-chi/chi/v5"
)

type service interface {
	RemoveOrder(ctx context.Context, orderID string, actorID *string) error
}

// RemoveOrder deletes an order together with its items.
func RemoveOrder(w http.ResponseWriter, r *http.Request, service service) {
	var actorID *string
	if claims, ok := authmw.ClaimsFromContext(r.Context()); ok {
		actorID = &claims.AccountID
	}

	if err := service.RemoveOrder(r.Context(), chi.URLParam(r, "id"), actorID); err != nil {
		response.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
