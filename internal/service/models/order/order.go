package order

import (
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/branch"
	"github.com/corray333/coffeeshop/internal/service/models/currency"
	"github.com/corray333/coffeeshop/internal/service/models/money"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
)

// Order represents one customer transaction at a branch.
type Order struct {
	ID           string                `json:"id"`
	OrderNumber  int64                 `json:"orderNumber"`
	BranchID     string                `json:"branchId"`
	AccountID    *string               `json:"accountId,omitempty"`
	CustomerName *string               `json:"customerName,omitempty"`
	Status       Status                `json:"status"`
	TotalCents   money.Cents           `json:"totalCents"`
	Currency     currency.Currency     `json:"currency"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	OrderItems   []orderitem.OrderItem `json:"orderItems"`

	// Resolved on reads, never persisted with the order row.
	Branch  *branch.Branch   `json:"branch,omitempty"`
	Account *account.Account `json:"account,omitempty"`
}

// ItemsTotal sums price times quantity across the order's line items.
func (o *Order) ItemsTotal() (money.Cents, error) {
	var total money.Cents
	for _, item := range o.OrderItems {
		line, err := item.LineTotal()
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(line); err != nil {
			return 0, err
		}
	}

	return total, nil
}

// ItemCount is the total quantity across all line items.
func (o *Order) ItemCount() int {
	count := 0
	for _, item := range o.OrderItems {
		count += item.Quantity
	}

	return count
}

// EstimatedMinutes is a display estimate shown on the kiosk receipt.
func (o *Order) EstimatedMinutes() int {
	minutes := 5 + 2*o.ItemCount()
	if minutes > 30 {
		return 30
	}

	return minutes
}
