// Package client owns one WebSocket connection: its read/write pumps and
// the dispatch of inbound protocol messages.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Buffer size for outbound messages
	sendBufferSize = 256
)

// Gateway is what a connection needs from the rest of the core
type Gateway interface {
	Subscribe(c *Client, sport string) error
	Unsubscribe(c *Client, sport string) error
	Disconnect(c *Client)
	LatestOdds(sport string) (models.Snapshot, bool)
	SyncSlip(c *Client, req models.SlipSyncRequest) (models.SlipSyncAck, error)
}

// Client represents one WebSocket connection
type Client struct {
	id   string
	conn *websocket.Conn
	Send chan models.ServerMessage

	gateway Gateway
	log     zerolog.Logger

	// Sync identity, learned from the first accepted bet_slip_sync
	mu       sync.Mutex
	userID   string
	deviceID string

	closeOnce sync.Once
}

// New creates a client for an upgraded connection
func New(id string, conn *websocket.Conn, gateway Gateway, log zerolog.Logger) *Client {
	return &Client{
		id:      id,
		conn:    conn,
		Send:    make(chan models.ServerMessage, sendBufferSize),
		gateway: gateway,
		log:     log.With().Str("client_id", id).Logger(),
	}
}

// ID returns the connection's identifier
func (c *Client) ID() string { return c.id }

// TrySend queues a message without blocking.
// Returns false if the send buffer is full.
func (c *Client) TrySend(msg models.ServerMessage) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// Kick forcefully closes the connection. The read pump observes the
// closed socket and runs the normal disconnect path.
func (c *Client) Kick(reason string) {
	c.closeOnce.Do(func() {
		c.log.Warn().Str("reason", reason).Msg("kicking connection")
		c.conn.Close()
	})
}

// SyncIdentity returns the (userID, deviceID) learned from this
// connection's accepted syncs, if any.
func (c *Client) SyncIdentity() (userID, deviceID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.deviceID, c.userID != ""
}

func (c *Client) setSyncIdentity(userID, deviceID string) {
	c.mu.Lock()
	c.userID = userID
	c.deviceID = deviceID
	c.mu.Unlock()
}

// ReadPump pumps messages from the WebSocket connection into the core.
// Disconnection is terminal: the deferred cleanup drops subscriptions and
// marks the device stale, but never deletes historical records.
func (c *Client) ReadPump() {
	defer func() {
		c.gateway.Disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg models.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		c.handleMessage(msg)
	}
}

// WritePump pumps queued messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Warn().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage validates and dispatches one inbound message. Validation
// failures reply with an error and mutate nothing.
func (c *Client) handleMessage(msg models.ClientMessage) {
	switch msg.Type {
	case models.MessageTypeSubscribe:
		c.handleSubscribe(msg.Payload)
	case models.MessageTypeUnsubscribe:
		c.handleUnsubscribe(msg.Payload)
	case models.MessageTypeGetOdds:
		c.handleGetOdds(msg.Payload)
	case models.MessageTypePing:
		c.handlePing(msg.Payload)
	case models.MessageTypeBetSlipSync:
		c.handleSlipSync(msg.Payload)
	default:
		c.sendError(fmt.Sprintf("unknown message type: %s", msg.Type))
	}
}

func (c *Client) handleSubscribe(payload json.RawMessage) {
	var req models.SubscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Sport == "" {
		c.sendError("subscribe requires a sport")
		return
	}

	if err := c.gateway.Subscribe(c, req.Sport); err != nil {
		c.sendError(err.Error())
		return
	}

	c.reply(models.MessageTypeSubscriptionAck, models.SubscriptionAck{
		Sport:  req.Sport,
		Status: "subscribed",
	})
}

func (c *Client) handleUnsubscribe(payload json.RawMessage) {
	var req models.SubscribeRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Sport == "" {
		c.sendError("unsubscribe requires a sport")
		return
	}

	if err := c.gateway.Unsubscribe(c, req.Sport); err != nil {
		c.sendError(err.Error())
		return
	}

	c.reply(models.MessageTypeSubscriptionAck, models.SubscriptionAck{
		Sport:  req.Sport,
		Status: "unsubscribed",
	})
}

func (c *Client) handleGetOdds(payload json.RawMessage) {
	var req models.GetOddsRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.Sport == "" {
		c.sendError("get_odds requires a sport")
		return
	}

	snap, ok := c.gateway.LatestOdds(req.Sport)
	update := models.OddsUpdate{Sport: req.Sport}
	if ok {
		update.Timestamp = snap.FetchedAt.UnixMilli()
		if req.GameID != "" {
			if game, found := snap.Find(req.GameID); found {
				update.Odds = []models.Game{game}
			}
		} else {
			update.Odds = snap.Games
		}
	}

	c.reply(models.MessageTypeOddsUpdate, update)
}

func (c *Client) handlePing(payload json.RawMessage) {
	var req models.PingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendError("malformed ping")
		return
	}

	c.reply(models.MessageTypePong, models.Pong{
		ClientTimestamp: req.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	})
}

func (c *Client) handleSlipSync(payload json.RawMessage) {
	var req models.SlipSyncRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		c.sendSyncError("malformed bet_slip_sync payload")
		return
	}

	ack, err := c.gateway.SyncSlip(c, req)
	if err != nil {
		c.sendSyncError(err.Error())
		return
	}

	c.setSyncIdentity(req.UserID, req.DeviceID)
	c.reply(models.MessageTypeSyncConfirm, ack)
}

func (c *Client) reply(msgType string, payload interface{}) {
	c.TrySend(models.ServerMessage{
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

func (c *Client) sendError(message string) {
	c.reply(models.MessageTypeError, models.ErrorMessage{Message: message})
}

func (c *Client) sendSyncError(message string) {
	c.reply(models.MessageTypeSyncError, models.ErrorMessage{Message: message})
}
