// Package converters maps REST request bodies to service inputs.
package converters

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/corray333/coffeeshop/internal/service/apperr"
	"github.com/corray333/coffeeshop/internal/service/services/ordersvc"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// ItemRequest is one line item as sent by the kiosk or the admin console.
type ItemRequest struct {
	ProductID      string   `json:"productId"      validate:"required"`
	Quantity       int      `json:"quantity"       validate:"gt=0,lte=1000"`
	Price          *float64 `json:"price"`
	Customizations []string `json:"customizations" validate:"omitempty,dive,required"`
}

// ItemInputsFromRequest converts request items. A price is only mandatory when
// customizations are selected, since otherwise the catalog price is used.
func ItemInputsFromRequest(items []ItemRequest) ([]ordersvc.ItemInput, error) {
	inputs := make([]ordersvc.ItemInput, len(items))
	for i, item := range items {
		if item.Price == nil && len(item.Customizations) > 0 {
			return nil, apperr.Validation("item %d: price is required with customizations", i)
		}

		var price float64
		if item.Price != nil {
			price = *item.Price
		}

		inputs[i] = ordersvc.ItemInput{
			ProductID:        item.ProductID,
			Quantity:         item.Quantity,
			UnitPrice:        price,
			CustomizationIDs: item.Customizations,
		}
	}

	return inputs, nil
}

// DecodeJSON reads a size-limited JSON body into dst and validates it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperr.Validation("request body is too large")
		}

		return apperr.Validation("invalid request body")
	}

	return Validate(dst)
}

// Validate runs struct tag validation.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Param() != "" {
				return apperr.Validation("field %s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
			}

			return apperr.Validation("field %s failed %s", fe.Namespace(), fe.Tag())
		}

		return apperr.Validation("invalid request body")
	}

	return nil
}
