package auditlog

import "time"

// EventType names an order lifecycle event on the audit stream.
type EventType string

const (
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
	EventOrderItemsReplaced EventType = "order.items_replaced"
	EventOrderRemoved       EventType = "order.removed"
)

// OrderEvent is one audit record describing a change to an order.
type OrderEvent struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrderID        string    `json:"order_id"`
	BranchID       string    `json:"branch_id"`
	AccountID      *string   `json:"account_id,omitempty"`
	ActorID        *string   `json:"actor_id,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	OrderStatus    string    `json:"order_status"`
	TotalCents     int64     `json:"total_cents"`
	OccurredAt     time.Time `json:"occurred_at"`
}
