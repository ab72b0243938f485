package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/corray333/coffeeshop/internal/realtime/registry"
	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/models/orderitem"
	"golang.org/x/net/websocket"
)

type fakeVerifier map[string]credential.Claims

func (f fakeVerifier) VerifyAccess(token string) (credential.Claims, error) {
	claims, ok := f[token]
	if !ok {
		return credential.Claims{}, errors.New("bad token")
	}

	return claims, nil
}

var verifier = fakeVerifier{
	"staff-1":    {AccountID: "S1", Role: account.RoleStaff},
	"staff-2":    {AccountID: "S2", Role: account.RoleStaff},
	"customer-1": {AccountID: "C1", Role: account.RoleCustomer},
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T) (*Gateway, *httptest.Server) {
	t.Helper()

	gateway := NewGateway(registry.New(), verifier, WithWriteTimeout(time.Second))
	server := httptest.NewServer(gateway)
	t.Cleanup(func() {
		gateway.Shutdown()
		server.Close()
	})

	return gateway, server
}

func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()

	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	return buf
}

type testClient struct {
	t       *testing.T
	conn    *websocket.Conn
	decoder *json.Decoder
}

func wsURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

func dialWithHeader(t *testing.T, serverURL, token string) *testClient {
	t.Helper()

	config, err := websocket.NewConfig(wsURL(serverURL), serverURL)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	config.Header = http.Header{"Authorization": {"Bearer " + token}}

	return dialConfig(t, config)
}

func dialWithQuery(t *testing.T, serverURL, token string) *testClient {
	t.Helper()

	config, err := websocket.NewConfig(wsURL(serverURL)+"?token="+url.QueryEscape(token), serverURL)
	if err != nil {
		t.Fatalf("new config: %v", err)
	}

	return dialConfig(t, config)
}

func dialConfig(t *testing.T, config *websocket.Config) *testClient {
	t.Helper()

	conn, err := websocket.DialConfig(config)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn, decoder: json.NewDecoder(conn)}
}

func (c *testClient) send(event string, data any) {
	c.t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	if err := json.NewEncoder(c.conn).Encode(wsFrame{Event: event, Data: raw}); err != nil {
		c.t.Fatalf("write frame: %v", err)
	}
}

func (c *testClient) sendRaw(payload string) {
	c.t.Helper()

	if _, err := c.conn.Write([]byte(payload)); err != nil {
		c.t.Fatalf("write raw: %v", err)
	}
}

func (c *testClient) read() wsFrame {
	c.t.Helper()

	if err := c.conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		c.t.Fatalf("set deadline: %v", err)
	}
	var frame wsFrame
	if err := c.decoder.Decode(&frame); err != nil {
		c.t.Fatalf("read frame: %v", err)
	}

	return frame
}

func (c *testClient) join(branchID string) {
	c.t.Helper()

	c.send(EventJoinBaristaRoom, map[string]string{"branchId": branchID})
	frame := c.read()
	if frame.Event != EventJoinedBaristaRoom {
		c.t.Fatalf("event = %q, want %q", frame.Event, EventJoinedBaristaRoom)
	}

	var reply JoinedBaristaRoom
	if err := json.Unmarshal(frame.Data, &reply); err != nil {
		c.t.Fatalf("decode reply: %v", err)
	}
	if reply.BranchID != branchID || !reply.Success {
		c.t.Fatalf("reply = %+v", reply)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHandshakeRequiresValidToken(t *testing.T) {
	_, server := newTestServer(t)

	tests := []struct {
		name   string
		header string
		query  string
	}{
		{name: "missing"},
		{name: "unknown bearer", header: "Bearer nope"},
		{name: "wrong scheme", header: "Basic staff-1"},
		{name: "unknown query token", query: "nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := server.URL + "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req, err := http.NewRequest(http.MethodGet, target, nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			req.Header.Set("Connection", "Upgrade")
			req.Header.Set("Upgrade", "websocket")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("do: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestStaffReceivesNewOrdersForJoinedBranchOnly(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b2 := dialWithQuery(t, server.URL, "staff-2")
	b1.join("B1")
	b2.join("B2")

	o := order.Order{
		ID:         "O1",
		BranchID:   "B1",
		Status:     order.StatusPending,
		TotalCents: 178000,
		Currency:   "RUB",
		OrderItems: []orderitem.OrderItem{
			{ID: "I1", ProductID: "P1", ProductName: "Latte", Quantity: 2, UnitPriceCents: 89000},
		},
	}
	if n := gateway.Publish("B1", NewOrderEvent(o)); n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}

	frame := b1.read()
	if frame.Event != EventNewOrder {
		t.Fatalf("event = %q", frame.Event)
	}
	var payload struct {
		ID     string  `json:"id"`
		Status string  `json:"status"`
		Total  float64 `json:"total"`
		Items  []struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		} `json:"items"`
	}
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.ID != "O1" || payload.Status != "PENDING" || payload.Total != 1780 {
		t.Fatalf("payload = %+v", payload)
	}
	if len(payload.Items) != 1 || payload.Items[0].ProductID != "P1" || payload.Items[0].Quantity != 2 {
		t.Fatalf("items = %+v", payload.Items)
	}

	// B2 only sees its own branch.
	gateway.Publish("B2", OrderStatusUpdate{OrderID: "O2", Status: "READY"})
	if frame := b2.read(); frame.Event != EventOrderStatusUpdate {
		t.Fatalf("B2 got %q first, want %q", frame.Event, EventOrderStatusUpdate)
	}
}

func TestCustomerJoinIsIgnored(t *testing.T) {
	logs := captureLogs(t)
	gateway, server := newTestServer(t)

	c := dialWithHeader(t, server.URL, "customer-1")
	c.send(EventJoinBaristaRoom, map[string]string{"branchId": "B1"})

	waitFor(t, "denial log", func() bool {
		return strings.Contains(logs.String(), "Barista room join denied")
	})
	if got := gateway.registry.Members("B1"); len(got) != 0 {
		t.Fatalf("members = %v", got)
	}
	if n := gateway.Publish("B1", OrderStatusUpdate{OrderID: "O1", Status: "READY"}); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Fatalf("denial not logged at warn: %s", logs.String())
	}
}

func TestStatusUpdatesArriveInPublishOrder(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.join("B1")

	statuses := []string{"CONFIRMED", "PREPARING", "READY", "COMPLETED"}
	for _, status := range statuses {
		gateway.Publish("B1", OrderStatusUpdate{OrderID: "O1", Status: status})
	}

	for _, want := range statuses {
		frame := b1.read()
		var update OrderStatusUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if frame.Event != EventOrderStatusUpdate || update.Status != want || update.OrderID != "O1" {
			t.Fatalf("got %s %+v, want status %s", frame.Event, update, want)
		}
	}
}

func TestNotifyReturnsWhileBranchDeliveryIsBlocked(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.join("B1")

	// Holding the branch lock stalls delivery the way a slow socket does.
	lock := gateway.branchLock("B1")
	lock.Lock()
	locked := true
	defer func() {
		if locked {
			lock.Unlock()
		}
	}()

	statuses := []order.Status{order.StatusConfirmed, order.StatusPreparing, order.StatusReady}
	returned := make(chan struct{})
	go func() {
		defer close(returned)
		gateway.NotifyNewOrder(context.Background(), order.Order{ID: "O1", BranchID: "B1", Status: order.StatusPending})
		for _, status := range statuses {
			gateway.NotifyStatusUpdate(context.Background(), order.Order{ID: "O1", BranchID: "B1", Status: status})
		}
	}()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("notify blocked on branch delivery")
	}

	lock.Unlock()
	locked = false

	if frame := b1.read(); frame.Event != EventNewOrder {
		t.Fatalf("first event = %q, want %q", frame.Event, EventNewOrder)
	}
	for _, want := range statuses {
		frame := b1.read()
		var update OrderStatusUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if frame.Event != EventOrderStatusUpdate || update.Status != want.String() {
			t.Fatalf("got %s %+v, want status %s", frame.Event, update, want)
		}
	}
}

func TestNotifyAfterShutdownIsDropped(t *testing.T) {
	logs := captureLogs(t)
	gateway, _ := newTestServer(t)

	gateway.Shutdown()
	gateway.NotifyStatusUpdate(context.Background(), order.Order{ID: "O1", BranchID: "B1", Status: order.StatusReady})

	if !strings.Contains(logs.String(), "Dropped order status notification") {
		t.Fatalf("drop not logged: %s", logs.String())
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.join("B1")
	b1.send(EventLeaveBaristaRoom, map[string]string{"branchId": "B1"})

	waitFor(t, "leave", func() bool { return len(gateway.registry.Members("B1")) == 0 })
	if n := gateway.Publish("B1", OrderStatusUpdate{OrderID: "O1", Status: "READY"}); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}

	// Leaving a room that was never joined is a no-op and keeps the connection.
	b1.send(EventLeaveBaristaRoom, map[string]string{"branchId": "B9"})
	b1.join("B2")
}

func TestDisconnectRemovesFromRooms(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.join("B1")
	b1.join("B2")

	_ = b1.conn.Close()

	waitFor(t, "unregister", func() bool { return gateway.registry.Stats() == registry.Stats{} })
	if n := gateway.Publish("B1", OrderStatusUpdate{OrderID: "O1", Status: "READY"}); n != 0 {
		t.Fatalf("delivered = %d, want 0", n)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	_, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.send("makeCoffee", map[string]string{"branchId": "B1"})
	b1.send(EventJoinBaristaRoom, map[string]string{"branchId": "  "})
	b1.send(EventJoinBaristaRoom, []int{1, 2})
	b1.sendRaw("{not json")

	b1.join("B1")
}

func TestOversizedFrameIsDiscardedUnread(t *testing.T) {
	logs := captureLogs(t)
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	padding := strings.Repeat("x", maxFramePayloadBytes)
	b1.sendRaw(`{"event":"` + EventJoinBaristaRoom + `","data":{"branchId":"B9","pad":"` + padding + `"}}`)

	b1.join("B1")

	if got := gateway.registry.Members("B9"); len(got) != 0 {
		t.Fatalf("oversized join was applied: %v", got)
	}
	if !strings.Contains(logs.String(), "Dropped oversized websocket frame") {
		t.Fatalf("oversized frame not logged: %s", logs.String())
	}
}

func TestRepeatedDecodeErrorsCloseConnection(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	waitFor(t, "register", func() bool { return gateway.registry.Stats().Connections == 1 })

	for range maxDecodeErrorsPerConn {
		b1.sendRaw("{not json")
	}

	waitFor(t, "close", func() bool { return gateway.registry.Stats().Connections == 0 })
}

func TestShutdownClosesConnections(t *testing.T) {
	gateway, server := newTestServer(t)

	b1 := dialWithHeader(t, server.URL, "staff-1")
	b1.join("B1")

	gateway.Shutdown()

	if err := b1.conn.SetDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var frame wsFrame
	if err := b1.decoder.Decode(&frame); err == nil {
		t.Fatalf("read after shutdown succeeded: %+v", frame)
	}
}

func TestDecodeClientEvent(t *testing.T) {
	tests := []struct {
		name    string
		frame   wsFrame
		want    clientEvent
		wantErr error
	}{
		{
			name:  "join",
			frame: wsFrame{Event: EventJoinBaristaRoom, Data: json.RawMessage(`{"branchId":"B1"}`)},
			want:  JoinBaristaRoom{BranchID: "B1"},
		},
		{
			name:  "leave",
			frame: wsFrame{Event: EventLeaveBaristaRoom, Data: json.RawMessage(`{"branchId":" B1 "}`)},
			want:  LeaveBaristaRoom{BranchID: "B1"},
		},
		{
			name:    "unknown",
			frame:   wsFrame{Event: EventNewOrder, Data: json.RawMessage(`{}`)},
			wantErr: errUnknownEvent,
		},
		{
			name:    "missing data",
			frame:   wsFrame{Event: EventJoinBaristaRoom},
			wantErr: errBadPayload,
		},
		{
			name:    "wrong type",
			frame:   wsFrame{Event: EventJoinBaristaRoom, Data: json.RawMessage(`{"branchId":7}`)},
			wantErr: errBadPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeClientEvent(tt.frame)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("event = %#v, want %#v", got, tt.want)
			}
		})
	}
}
