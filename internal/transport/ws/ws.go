// Package ws is the realtime gateway baristas use to receive new orders and
// status changes for the branches they watch.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/corray333/coffeeshop/internal/realtime/registry"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
	defaultWriteTimeout    = 5 * time.Second
	branchQueueSize        = 256
)

type tokenVerifier interface {
	VerifyAccess(token string) (credential.Claims, error)
}

type identityContextKey struct{}

// Gateway owns the websocket endpoint and fans order events out to branch rooms.
type Gateway struct {
	registry *registry.Registry
	verifier tokenVerifier

	writeTimeout   time.Duration
	allowedOrigins []string

	mu          sync.RWMutex
	peers       map[string]*wsPeer
	branchLocks map[string]*sync.Mutex
	queues      map[string]chan ServerEvent
	stopped     bool

	stop     chan struct{}
	stopOnce sync.Once
	drains   sync.WaitGroup

	newID func() string
	now   func() time.Time
}

type option func(*Gateway)

// NewGateway creates a gateway that records connections in reg and
// authenticates them with verifier.
func NewGateway(reg *registry.Registry, verifier tokenVerifier, opts ...option) *Gateway {
	writeTimeout := viper.GetDuration("ws.write_timeout")
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	g := &Gateway{
		registry:       reg,
		verifier:       verifier,
		writeTimeout:   writeTimeout,
		allowedOrigins: viper.GetStringSlice("ws.allowed_origins"),
		peers:          make(map[string]*wsPeer),
		branchLocks:    make(map[string]*sync.Mutex),
		queues:         make(map[string]chan ServerEvent),
		stop:           make(chan struct{}),
		newID:          uuid.NewString,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// WithWriteTimeout bounds every frame write.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithWriteTimeout(d time.Duration) option {
	return func(g *Gateway) {
		g.writeTimeout = d
	}
}

// WithAllowedOrigins restricts the Origin header of the handshake. An empty list
// or "*" accepts any origin.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithAllowedOrigins(origins []string) option {
	return func(g *Gateway) {
		g.allowedOrigins = origins
	}
}

// ServeHTTP authenticates the request and upgrades it. Unauthenticated requests
// never reach the upgrade.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := accessTokenFromRequest(r)
	if token == "" {
		slog.Info("Websocket handshake rejected", "reason", "missing token", "remote_addr", r.RemoteAddr)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	claims, err := g.verifier.VerifyAccess(token)
	if err != nil {
		slog.Info("Websocket handshake rejected", "reason", "invalid token", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	identity := registry.Identity{AccountID: claims.AccountID, Role: claims.Role}
	ctx := context.WithValue(r.Context(), identityContextKey{}, identity)

	server := websocket.Server{
		Handshake: g.checkOrigin,
		Handler:   g.handleConn,
	}
	server.ServeHTTP(w, r.WithContext(ctx))
}

func accessTokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}

		return ""
	}

	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func (g *Gateway) checkOrigin(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return err
	}
	config.Origin = origin

	if len(g.allowedOrigins) == 0 {
		return nil
	}
	for _, allowed := range g.allowedOrigins {
		if allowed == "*" || (origin != nil && strings.EqualFold(allowed, origin.Scheme+"://"+origin.Host)) {
			return nil
		}
	}

	return errors.New("origin not allowed")
}

func (g *Gateway) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	identity, ok := conn.Request().Context().Value(identityContextKey{}).(registry.Identity)
	if !ok {
		return
	}

	connID := g.newID()
	peer := newWSPeer(conn, g.writeTimeout)
	if !g.registry.Register(connID, identity) {
		return
	}
	g.addPeer(connID, peer)
	defer g.disconnect(connID)

	slog.Debug("Websocket connected", "conn_id", connID, "account_id", identity.AccountID, "role", identity.Role)

	conn.MaxPayloadBytes = maxFramePayloadBytes
	windowStart := g.now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		var payload []byte
		if err := websocket.Message.Receive(conn, &payload); err != nil {
			if !errors.Is(err, websocket.ErrFrameTooLarge) {
				return
			}

			// The oversized frame is discarded unread on the next receive.
			decodeErrors++
			slog.Debug("Dropped oversized websocket frame", "conn_id", connID, "limit", maxFramePayloadBytes)
			if decodeErrors >= maxDecodeErrorsPerConn {
				slog.Warn("Closing websocket after repeated bad frames", "conn_id", connID)
				return
			}
			continue
		}

		var frame wsFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			decodeErrors++
			slog.Debug("Dropped undecodable websocket frame", "conn_id", connID, "error", err)
			if decodeErrors >= maxDecodeErrorsPerConn {
				slog.Warn("Closing websocket after repeated bad frames", "conn_id", connID)
				return
			}
			continue
		}
		decodeErrors = 0

		now := g.now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			slog.Warn("Closing websocket over frame rate limit", "conn_id", connID)
			return
		}

		event, err := decodeClientEvent(frame)
		if err != nil {
			slog.Debug("Dropped websocket frame", "conn_id", connID, "event", frame.Event, "error", err)
			continue
		}

		switch e := event.(type) {
		case JoinBaristaRoom:
			g.join(connID, identity, peer, e.BranchID)
		case LeaveBaristaRoom:
			g.registry.Leave(connID, e.BranchID)
		}
	}
}

func (g *Gateway) join(connID string, identity registry.Identity, peer *wsPeer, branchID string) {
	if !identity.Role.IsStaff() {
		slog.Warn("Barista room join denied",
			"conn_id", connID,
			"account_id", identity.AccountID,
			"role", identity.Role,
			"branch_id", branchID,
		)
		return
	}

	if !g.registry.Join(connID, branchID) {
		return
	}

	frame, err := encodeEvent(JoinedBaristaRoom{BranchID: branchID, Success: true})
	if err != nil {
		slog.Error("Failed to encode join reply", "error", err)
		return
	}
	if err := peer.writeFrame(frame); err != nil {
		slog.Warn("Failed to send join reply", "conn_id", connID, "error", err)
		peer.close()
	}
}

// Publish delivers event to every connection in the branch room at call time and
// returns how many received it. Publishes to one branch are serialized.
func (g *Gateway) Publish(branchID string, event ServerEvent) int {
	frame, err := encodeEvent(event)
	if err != nil {
		slog.Error("Failed to encode realtime event", "event", event.eventName(), "error", err)
		return 0
	}

	lock := g.branchLock(branchID)
	lock.Lock()
	defer lock.Unlock()

	delivered := 0
	for _, connID := range g.registry.Members(branchID) {
		peer := g.peer(connID)
		if peer == nil {
			continue
		}

		if err := peer.writeFrame(frame); err != nil {
			slog.Warn("Failed to deliver realtime event",
				"conn_id", connID,
				"branch_id", branchID,
				"event", frame.Event,
				"error", err,
			)
			peer.close()
			continue
		}
		delivered++
	}

	return delivered
}

// NotifyNewOrder queues the order for the branch room and returns without
// waiting for delivery.
func (g *Gateway) NotifyNewOrder(_ context.Context, o order.Order) {
	if !g.enqueue(o.BranchID, NewOrderEvent(o)) {
		slog.Warn("Dropped new order notification", "order_id", o.ID, "branch_id", o.BranchID)
	}
}

// NotifyStatusUpdate queues the status change for the branch room. Events of one
// branch are delivered in the order they were queued.
func (g *Gateway) NotifyStatusUpdate(_ context.Context, o order.Order) {
	if !g.enqueue(o.BranchID, StatusUpdateEvent(o)) {
		slog.Warn("Dropped order status notification", "order_id", o.ID, "branch_id", o.BranchID, "status", o.Status)
	}
}

// enqueue hands event to the branch's delivery goroutine, starting it on first
// use. It reports false when the gateway is shut down or the queue is full.
func (g *Gateway) enqueue(branchID string, event ServerEvent) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return false
	}

	queue, ok := g.queues[branchID]
	if !ok {
		queue = make(chan ServerEvent, branchQueueSize)
		g.queues[branchID] = queue
		g.drains.Add(1)
		go g.drain(branchID, queue)
	}

	select {
	case queue <- event:
		return true
	default:
		return false
	}
}

func (g *Gateway) drain(branchID string, queue <-chan ServerEvent) {
	defer g.drains.Done()

	for {
		select {
		case <-g.stop:
			return
		case event := <-queue:
			n := g.Publish(branchID, event)
			slog.Debug("Published realtime event", "branch_id", branchID, "event", event.eventName(), "delivered", n)
		}
	}
}

// Shutdown stops queued delivery, closes every live connection and refuses new
// ones.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
	g.stopOnce.Do(func() { close(g.stop) })

	for _, connID := range g.registry.Close() {
		if peer := g.peer(connID); peer != nil {
			peer.close()
		}
	}

	g.drains.Wait()
}

func (g *Gateway) disconnect(connID string) {
	left := g.registry.Unregister(connID)

	g.mu.Lock()
	delete(g.peers, connID)
	g.mu.Unlock()

	slog.Debug("Websocket disconnected", "conn_id", connID, "rooms", left)
}

func (g *Gateway) addPeer(connID string, peer *wsPeer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.peers[connID] = peer
}

func (g *Gateway) peer(connID string) *wsPeer {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.peers[connID]
}

func (g *Gateway) branchLock(branchID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.branchLocks[branchID]
	if !ok {
		lock = &sync.Mutex{}
		g.branchLocks[branchID] = lock
	}

	return lock
}

type wsPeer struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	encoder      *json.Encoder
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newWSPeer(conn *websocket.Conn, writeTimeout time.Duration) *wsPeer {
	return &wsPeer{
		conn:         conn,
		encoder:      json.NewEncoder(conn),
		writeTimeout: writeTimeout,
	}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writeTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return err
		}
	}

	return p.encoder.Encode(frame)
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		_ = p.conn.Close()
	})
}
