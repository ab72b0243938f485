package order

import "errors"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPreparing Status = "PREPARING"
	StatusReady     Status = "READY"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var ErrInvalidStatus = errors.New("invalid order status")

type transition struct {
	from Status
	to   Status
}

// transitions lists every legal status change. Orders move forward through the
// preparation pipeline (steps may be skipped) or are cancelled before they finish.
// Nothing leaves COMPLETED or CANCELLED.
var transitions = map[transition]struct{}{
	{StatusPending, StatusConfirmed}: {},
	{StatusPending, StatusPreparing}: {},
	{StatusPending, StatusReady}:     {},
	{StatusPending, StatusCompleted}: {},
	{StatusPending, StatusCancelled}: {},

	{StatusConfirmed, StatusPreparing}: {},
	{StatusConfirmed, StatusReady}:     {},
	{StatusConfirmed, StatusCompleted}: {},
	{StatusConfirmed, StatusCancelled}: {},

	{StatusPreparing, StatusReady}:     {},
	{StatusPreparing, StatusCompleted}: {},
	{StatusPreparing, StatusCancelled}: {},

	{StatusReady, StatusCompleted}: {},
	{StatusReady, StatusCancelled}: {},
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether an order in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	_, ok := transitions[transition{from: s, to: next}]

	return ok
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}
