// Package handlers exposes the HTTP surface: the client and observer
// WebSocket endpoints plus health and metrics.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/client"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/hub"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/poller"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Restrict in production
		return true
	},
}

// Handler manages HTTP endpoints
type Handler struct {
	hub     *hub.Hub
	gateway client.Gateway
	pollers *poller.Manager
	log     zerolog.Logger
}

// New creates a handler instance
func New(h *hub.Hub, gateway client.Gateway, pollers *poller.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		hub:     h,
		gateway: gateway,
		pollers: pollers,
		log:     log.With().Str("component", "handlers").Logger(),
	}
}

// Routes builds the service router
func (h *Handler) Routes(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/ws", h.HandleWebSocket)
	r.Get("/ws/ops", h.HandleObserver)
	r.Get("/health", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

// HandleWebSocket upgrades a client connection and starts its pumps
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, ok := h.upgrade(w, r)
	if !ok {
		return
	}

	h.hub.Register(c)
	go c.WritePump()
	go c.ReadPump()
}

// HandleObserver upgrades an operations connection that receives every
// topic's updates without subscribing.
func (h *Handler) HandleObserver(w http.ResponseWriter, r *http.Request) {
	c, ok := h.upgrade(w, r)
	if !ok {
		return
	}

	h.hub.Register(c)
	h.hub.RegisterObserver(c)
	go c.WritePump()
	go c.ReadPump()
}

func (h *Handler) upgrade(w http.ResponseWriter, r *http.Request) (*client.Client, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return nil, false
	}

	c := client.New(uuid.New().String(), conn, h.gateway, h.log)
	h.log.Info().Str("client_id", c.ID()).Msg("websocket connection established")
	return c, true
}

// HandleHealth returns service health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":         "healthy",
		"service":        "live-sync",
		"active_clients": h.hub.ClientCount(),
		"polled_topics":  h.pollers.Active(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
