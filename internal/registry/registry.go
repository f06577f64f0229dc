// Package registry tracks which connections are subscribed to which
// topics. It owns no transport; pollers are started and stopped by the
// 0->1 and 1->0 transitions it reports.
package registry

import (
	"sync"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
)

// Conn is the view of a connection the fan-out side needs
type Conn interface {
	ID() string
	// TrySend queues a message without blocking; false means the
	// connection's buffer is full.
	TrySend(msg models.ServerMessage) bool
	// Kick forcefully closes the connection
	Kick(reason string)
}

// Registry relates connections to topics. Subscribe is idempotent; a
// connection may hold any number of subscriptions.
type Registry struct {
	mu      sync.RWMutex
	byTopic map[string]map[Conn]bool
	byConn  map[Conn]map[string]bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		byTopic: make(map[string]map[Conn]bool),
		byConn:  make(map[Conn]map[string]bool),
	}
}

// Subscribe adds a subscription and reports whether the topic went from
// zero subscribers to one.
func (r *Registry) Subscribe(conn Conn, topic string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[conn] == nil {
		r.byConn[conn] = make(map[string]bool)
	}
	if r.byConn[conn][topic] {
		return false // duplicate subscribe, idempotent
	}
	r.byConn[conn][topic] = true

	subs := r.byTopic[topic]
	if subs == nil {
		subs = make(map[Conn]bool)
		r.byTopic[topic] = subs
	}
	subs[conn] = true

	return len(subs) == 1
}

// Unsubscribe removes a subscription and reports whether the topic
// dropped to zero subscribers.
func (r *Registry) Unsubscribe(conn Conn, topic string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.remove(conn, topic)
}

// Drop removes every subscription held by a connection and returns the
// topics that dropped to zero subscribers.
func (r *Registry) Drop(conn Conn) (emptied []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic := range r.byConn[conn] {
		if r.remove(conn, topic) {
			emptied = append(emptied, topic)
		}
	}
	return emptied
}

// remove deletes one edge; caller holds the lock.
func (r *Registry) remove(conn Conn, topic string) (last bool) {
	topics, ok := r.byConn[conn]
	if !ok || !topics[topic] {
		return false
	}
	delete(topics, topic)
	if len(topics) == 0 {
		delete(r.byConn, conn)
	}

	subs := r.byTopic[topic]
	delete(subs, conn)
	if len(subs) == 0 {
		delete(r.byTopic, topic)
		return true
	}
	return false
}

// Subscribers returns the connections currently subscribed to a topic
func (r *Registry) Subscribers(topic string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.byTopic[topic]
	conns := make([]Conn, 0, len(subs))
	for conn := range subs {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of subscribers for a topic
func (r *Registry) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTopic[topic])
}

// Topics returns the topics that currently have subscribers
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.byTopic))
	for topic := range r.byTopic {
		topics = append(topics, topic)
	}
	return topics
}
