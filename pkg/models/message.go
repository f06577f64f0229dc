package models

import (
	"encoding/json"
	"time"
)

// Message types for WebSocket communication
const (
	// Client -> server
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeGetOdds     = "get_odds"
	MessageTypePing        = "ping"
	MessageTypeBetSlipSync = "bet_slip_sync"

	// Server -> client
	MessageTypeSubscriptionAck = "subscription_ack"
	MessageTypeOddsUpdate      = "odds_update"
	MessageTypeError           = "error"
	MessageTypePong            = "pong"
	MessageTypeSyncConfirm     = "bet_slip_sync_confirmation"
	MessageTypeSyncError       = "bet_slip_sync_error"
)

// ClientMessage represents a message from client to server. The payload is
// decoded per message type so malformed payloads can be rejected without
// touching any state.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage represents a message from server to client
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// SubscribeRequest is the payload of subscribe and unsubscribe messages
type SubscribeRequest struct {
	Sport string `json:"sport"`
}

// GetOddsRequest asks for the latest cached snapshot of a sport,
// optionally narrowed to a single game.
type GetOddsRequest struct {
	Sport  string `json:"sport"`
	GameID string `json:"gameId,omitempty"`
}

// PingRequest carries the client's clock for round-trip measurement
type PingRequest struct {
	Timestamp int64 `json:"timestamp"`
}

// SubscriptionAck confirms a subscribe or unsubscribe request
type SubscriptionAck struct {
	Sport  string `json:"sport"`
	Status string `json:"status"` // "subscribed" | "unsubscribed"
}

// OddsUpdate carries one topic snapshot to a subscriber
type OddsUpdate struct {
	Sport     string `json:"sport"`
	Odds      []Game `json:"odds"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// Pong answers a ping with both clocks
type Pong struct {
	ClientTimestamp int64 `json:"clientTimestamp"`
	ServerTimestamp int64 `json:"serverTimestamp"`
}

// ErrorMessage is sent for validation failures and provider errors
type ErrorMessage struct {
	Message string `json:"message"`
}
