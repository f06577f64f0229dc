// Package hub is the broadcast dispatcher: it delivers topic snapshots to
// subscribed connections and to the observer audience, with per-recipient
// error isolation.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/registry"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/rs/zerolog"
)

const broadcastBuffer = 1000

// event is one queued publish. A single run loop drains the queue, which
// preserves per-connection delivery order for a topic.
type event struct {
	topic string
	msg   models.ServerMessage
}

// Hub maintains the set of active connections and fans out topic updates
type Hub struct {
	subs *registry.Registry

	clientsMu sync.RWMutex
	clients   map[registry.Conn]bool

	observersMu sync.RWMutex
	observers   map[registry.Conn]bool

	broadcast  chan event
	register   chan registry.Conn
	unregister chan registry.Conn

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a hub fanning out to the given subscription registry
func New(subs *registry.Registry, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		subs:       subs,
		clients:    make(map[registry.Conn]bool),
		observers:  make(map[registry.Conn]bool),
		broadcast:  make(chan event, broadcastBuffer),
		register:   make(chan registry.Conn),
		unregister: make(chan registry.Conn),
		metrics:    m,
		log:        log.With().Str("component", "hub").Logger(),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	h.log.Info().Msg("hub started")

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case conn := <-h.register:
			h.addClient(conn)
		case conn := <-h.unregister:
			h.removeClient(conn)
		case ev := <-h.broadcast:
			h.dispatch(ev)
		}
	}
}

// Register adds a connection to the hub
func (h *Hub) Register(conn registry.Conn) {
	h.register <- conn
}

// Unregister removes a connection from the hub
func (h *Hub) Unregister(conn registry.Conn) {
	h.unregister <- conn
}

// RegisterObserver adds a connection to the all-topics audience
func (h *Hub) RegisterObserver(conn registry.Conn) {
	h.observersMu.Lock()
	h.observers[conn] = true
	h.observersMu.Unlock()

	h.log.Info().Str("client_id", conn.ID()).Msg("observer registered")
}

// UnregisterObserver removes a connection from the observer audience
func (h *Hub) UnregisterObserver(conn registry.Conn) {
	h.observersMu.Lock()
	delete(h.observers, conn)
	h.observersMu.Unlock()
}

// PublishOdds queues a snapshot for delivery to a topic's subscribers and
// all observers. Fire-and-forget: a full queue drops the update.
func (h *Hub) PublishOdds(topic string, snap models.Snapshot) {
	h.publish(topic, models.ServerMessage{
		Type: models.MessageTypeOddsUpdate,
		Payload: models.OddsUpdate{
			Sport:     topic,
			Odds:      snap.Games,
			Timestamp: snap.FetchedAt.UnixMilli(),
		},
		Timestamp: time.Now(),
	})
}

// PublishError queues a best-effort provider error notice for a topic's
// current subscribers.
func (h *Hub) PublishError(topic string, message string) {
	h.publish(topic, models.ServerMessage{
		Type:      models.MessageTypeError,
		Payload:   models.ErrorMessage{Message: message},
		Timestamp: time.Now(),
	})
}

func (h *Hub) publish(topic string, msg models.ServerMessage) {
	select {
	case h.broadcast <- event{topic: topic, msg: msg}:
	default:
		h.log.Warn().Str("topic", topic).Msg("broadcast buffer full, dropping message")
		h.metrics.MessagesDropped.WithLabelValues(msg.Type).Inc()
	}
}

// ClientCount returns the number of active connections
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(conn registry.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.metrics.ActiveClients.Set(float64(total))
	h.log.Info().Str("client_id", conn.ID()).Int("total", total).Msg("client connected")
}

func (h *Hub) removeClient(conn registry.Conn) {
	h.clientsMu.Lock()
	delete(h.clients, conn)
	total := len(h.clients)
	h.clientsMu.Unlock()

	h.UnregisterObserver(conn)

	h.metrics.ActiveClients.Set(float64(total))
	h.log.Info().Str("client_id", conn.ID()).Int("total", total).Msg("client disconnected")
}

// dispatch delivers one event to the topic's subscribers plus observers.
// A failed recipient is logged and kicked; the rest still receive.
func (h *Hub) dispatch(ev event) {
	recipients := h.subs.Subscribers(ev.topic)

	h.observersMu.RLock()
	seen := make(map[registry.Conn]bool, len(recipients))
	for _, conn := range recipients {
		seen[conn] = true
	}
	for conn := range h.observers {
		if !seen[conn] {
			recipients = append(recipients, conn)
		}
	}
	h.observersMu.RUnlock()

	for _, conn := range recipients {
		if conn.TrySend(ev.msg) {
			h.metrics.MessagesSent.WithLabelValues(ev.msg.Type).Inc()
			continue
		}

		h.metrics.MessagesDropped.WithLabelValues(ev.msg.Type).Inc()
		h.log.Warn().
			Str("client_id", conn.ID()).
			Str("topic", ev.topic).
			Msg("client buffer full, kicking")
		conn.Kick("send buffer full")
	}
}

// shutdown closes every connection
func (h *Hub) shutdown() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	h.log.Info().Int("clients", len(h.clients)).Msg("hub shutting down")
	for conn := range h.clients {
		conn.Kick("server shutting down")
		delete(h.clients, conn)
	}
}
