// Package registry tracks live realtime connections and the branch rooms they
// have joined. State is process-local and lost on restart.
package registry

import (
	"sort"
	"sync"

	"github.com/corray333/coffeeshop/internal/service/models/account"
)

// Identity is the authenticated owner of a connection.
type Identity struct {
	AccountID string
	Role      account.Role
}

// Stats is a point-in-time size of the registry.
type Stats struct {
	Connections int
	Rooms       int
	Members     int
}

type connection struct {
	identity Identity
	rooms    map[string]struct{}
}

// Registry maps branch rooms to connection ids and connection ids to identities.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{}
	conns  map[string]*connection
	closed bool
}

func New() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]struct{}),
		conns: make(map[string]*connection),
	}
}

// Register records an authenticated connection. It returns false once the
// registry is closed or when the id is already taken.
func (r *Registry) Register(connID string, identity Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.conns[connID]; ok {
		return false
	}

	r.conns[connID] = &connection{
		identity: identity,
		rooms:    make(map[string]struct{}),
	}

	return true
}

// Unregister removes the connection from every room and forgets its identity.
// It returns the branches the connection had joined.
func (r *Registry) Unregister(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil
	}

	left := make([]string, 0, len(conn.rooms))
	for branchID := range conn.rooms {
		r.removeMember(branchID, connID)
		left = append(left, branchID)
	}
	delete(r.conns, connID)
	sort.Strings(left)

	return left
}

// Join adds the connection to the branch room. Unknown connections are rejected.
func (r *Registry) Join(connID, branchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok || branchID == "" {
		return false
	}

	room, ok := r.rooms[branchID]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[branchID] = room
	}
	room[connID] = struct{}{}
	conn.rooms[branchID] = struct{}{}

	return true
}

// Leave removes the connection from the branch room and reports whether it was
// a member.
func (r *Registry) Leave(connID, branchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return false
	}
	if _, ok := conn.rooms[branchID]; !ok {
		return false
	}

	delete(conn.rooms, branchID)
	r.removeMember(branchID, connID)

	return true
}

// removeMember drops connID from a room and deletes the room once empty.
// Callers hold the write lock.
func (r *Registry) removeMember(branchID, connID string) {
	room, ok := r.rooms[branchID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, branchID)
	}
}

// Members returns a snapshot of the connection ids in the branch room.
func (r *Registry) Members(branchID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[branchID]
	members := make([]string, 0, len(room))
	for connID := range room {
		members = append(members, connID)
	}
	sort.Strings(members)

	return members
}

// Identity returns the identity recorded for the connection.
func (r *Registry) Identity(connID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return Identity{}, false
	}

	return conn.identity, true
}

// Rooms returns the branches the connection has joined.
func (r *Registry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil
	}

	rooms := make([]string, 0, len(conn.rooms))
	for branchID := range conn.rooms {
		rooms = append(rooms, branchID)
	}
	sort.Strings(rooms)

	return rooms
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Connections: len(r.conns),
		Rooms:       len(r.rooms),
	}
	for _, room := range r.rooms {
		stats.Members += len(room)
	}

	return stats
}

// Close empties the registry and refuses further registrations. It returns the
// ids of the connections that were still registered.
func (r *Registry) Close() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.conns))
	for connID := range r.conns {
		ids = append(ids, connID)
	}
	sort.Strings(ids)

	r.closed = true
	r.rooms = make(map[string]map[string]struct{})
	r.conns = make(map[string]*connection)

	return ids
}
