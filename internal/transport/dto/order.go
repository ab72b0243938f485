// Package dto holds the JSON shapes shared by the REST and realtime transports.
// Amounts are decimal numbers in major currency units.
package dto

import (
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
)

type Customization struct {
	ID              string `json:"id"`
	CustomizationID string `json:"customizationId"`
	Name            string `json:"name,omitempty"`
}

type OrderItem struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"productId"`
	ProductName    string          `json:"productName,omitempty"`
	Quantity       int             `json:"quantity"`
	Price          float64         `json:"price"`
	LineTotal      float64         `json:"lineTotal"`
	Customizations []Customization `json:"customizations"`
}

type Branch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type Order struct {
	ID            string      `json:"id"`
	OrderNumber   int64       `json:"orderNumber"`
	BranchID      string      `json:"branchId"`
	AccountID     *string     `json:"accountId,omitempty"`
	CustomerName  *string     `json:"customerName,omitempty"`
	Status        string      `json:"status"`
	Total         float64     `json:"total"`
	Currency      string      `json:"currency"`
	EstimatedTime int         `json:"estimatedTime"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Items         []OrderItem `json:"items"`
	Branch        *Branch     `json:"branch,omitempty"`
	Account       *Account    `json:"account,omitempty"`
}

// Receipt is what an anonymous kiosk customer gets back.
type Receipt struct {
	ID            string    `json:"id"`
	OrderNumber   int64     `json:"orderNumber"`
	Status        string    `json:"status"`
	Total         float64   `json:"total"`
	EstimatedTime int       `json:"estimatedTime"`
	CreatedAt     time.Time `json:"createdAt"`
	CustomerName  *string   `json:"customerName"`
}

func FromOrder(o order.Order) Order {
	out := Order{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		BranchID:      o.BranchID,
		AccountID:     o.AccountID,
		CustomerName:  o.CustomerName,
		Status:        o.Status.String(),
		Total:         o.TotalCents.Major(),
		Currency:      o.Currency.String(),
		EstimatedTime: o.EstimatedMinutes(),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Items:         FromOrderItems(o.OrderItems),
	}

	if o.Branch != nil {
		out.Branch = &Branch{ID: o.Branch.ID, Name: o.Branch.Name, Address: o.Branch.Address}
	}
	if o.Account != nil {
		acc := AccountFromModel(*o.Account)
		out.Account = &acc
	}

	return out
}

func FromOrders(orders []order.Order) []Order {
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = FromOrder(o)
	}

	return out
}

func FromOrderItems(items []orderitem.OrderItem) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		customizations := make([]Customization, len(item.Customizations))
		for j, c := range item.Customizations {
			customizations[j] = Customization{ID: c.ID, CustomizationID: c.CustomizationID, Name: c.Name}
		}

		// Stored lines were bounded when they were priced.
		lineTotal, _ := item.LineTotal()

		out[i] = OrderItem{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			Price:          item.UnitPriceCents.Major(),
			LineTotal:      lineTotal.Major(),
			Customizations: customizations,
		}
	}

	return out
}

func ReceiptFromOrder(o order.Order) Receipt {
	return Receipt{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status.String(),
		Total:         o.TotalCents.Major(),
		EstimatedTime: o.EstimatedMinutes(),
		CreatedAt:     o.CreatedAt,
		CustomerName:  o.CustomerName,
	}
}

func AccountFromModel(acc account.Account) Account {
	return Account{ID: acc.ID, Email: acc.Email, Name: acc.Name, Role: acc.Role.String()}
}
