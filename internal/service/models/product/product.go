package product

import (
	"github.com/corray333/coffeeshop/internal/service/models/money"
)

// Product is a catalog entry. The catalog is owned by another subsystem; orders
// only read it.
type Product struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	BasePriceCents money.Cents `json:"basePriceCents"`
	Available      bool        `json:"available"`
}
