// Package session tracks the live client connections of each user and fans
// events out to them.
package session

import (
	"sort"
	"sync"
)

// Conn is one live client connection. Send must not block: a connection
// that cannot accept the event right away returns an error and the event
// is dropped for that connection only.
type Conn interface {
	ID() string
	UserID() string
	Send(ev Event) error
}

// Registry maps users to their live connections. It is process local and
// starts empty.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]map[string]Conn)}
}

// Register adds conn under conn.UserID(). Registering the same connection
// id again replaces the previous handle.
func (r *Registry) Register(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID := conn.UserID()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]Conn)
		r.byUser[userID] = conns
	}
	conns[conn.ID()] = conn
}

// Unregister removes conn. Removing the last connection of a user drops
// the user from the registry. Unknown connections are ignored.
func (r *Registry) Unregister(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID := conn.UserID()
	conns, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(conns, conn.ID())
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}

// Connections returns a snapshot of the user's connections ordered by id.
func (r *Registry) Connections(userID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedConns(r.byUser[userID])
}

// All returns a snapshot of every registered connection.
func (r *Registry) All() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Conn
	for _, conns := range r.byUser {
		out = append(out, sortedConns(conns)...)
	}
	return out
}

func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Stats returns the number of online users and live connections.
func (r *Registry) Stats() (users, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byUser {
		users++
		conns += len(c)
	}
	return users, conns
}

func sortedConns(conns map[string]Conn) []Conn {
	out := make([]Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
