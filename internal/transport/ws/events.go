package ws

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/transport/dto"
)

const (
	EventJoinBaristaRoom   = "joinBaristaRoom"
	EventLeaveBaristaRoom  = "leaveBaristaRoom"
	EventJoinedBaristaRoom = "joinedBaristaRoom"
	EventNewOrder          = "newOrder"
	EventOrderStatusUpdate = "orderStatusUpdate"
)

var (
	errUnknownEvent = errors.New("unknown event")
	errBadPayload   = errors.New("malformed event payload")
)

// wsFrame is the envelope of every message in both directions.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// clientEvent is one of the frames a client may send.
type clientEvent interface {
	clientEvent()
}

type JoinBaristaRoom struct {
	BranchID string `json:"branchId"`
}

type LeaveBaristaRoom struct {
	BranchID string `json:"branchId"`
}

func (JoinBaristaRoom) clientEvent() {}
func (LeaveBaristaRoom) clientEvent() {}

// decodeClientEvent turns a frame into a typed client event. Anything outside
// the known set, or with an empty branch id, is rejected.
func decodeClientEvent(frame wsFrame) (clientEvent, error) {
	var branchID struct {
		BranchID string `json:"branchId"`
	}

	switch frame.Event {
	case EventJoinBaristaRoom, EventLeaveBaristaRoom:
	default:
		return nil, errUnknownEvent
	}

	if len(frame.Data) == 0 {
		return nil, errBadPayload
	}
	if err := json.Unmarshal(frame.Data, &branchID); err != nil {
		return nil, errBadPayload
	}
	id := strings.TrimSpace(branchID.BranchID)
	if id == "" {
		return nil, errBadPayload
	}

	if frame.Event == EventJoinBaristaRoom {
		return JoinBaristaRoom{BranchID: id}, nil
	}

	return LeaveBaristaRoom{BranchID: id}, nil
}

// ServerEvent is one of the frames the gateway sends.
type ServerEvent interface {
	eventName() string
}

type JoinedBaristaRoom struct {
	BranchID string `json:"branchId"`
	Success  bool   `json:"success"`
}

// NewOrder carries the full order as returned by the REST API.
type NewOrder struct {
	dto.Order
}

type OrderStatusUpdate struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (JoinedBaristaRoom) eventName() string { return EventJoinedBaristaRoom }
func (NewOrder) eventName() string { return EventNewOrder }
func (OrderStatusUpdate) eventName() string { return EventOrderStatusUpdate }

func NewOrderEvent(o order.Order) NewOrder {
	return NewOrder{Order: dto.FromOrder(o)}
}

func StatusUpdateEvent(o order.Order) OrderStatusUpdate {
	return OrderStatusUpdate{OrderID: o.ID, Status: o.Status.String()}
}

func encodeEvent(event ServerEvent) (wsFrame, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return wsFrame{}, err
	}

	return wsFrame{Event: event.eventName(), Data: data}, nil
}
