package models

import (
	"errors"
	"fmt"
)

// Pick change actions accepted in a sync request
const (
	ChangeActionAdd    = "add"
	ChangeActionUpdate = "update"
	ChangeActionRemove = "remove"
)

// SlipPick is one entry of a user's selection slip as a device sees it
type SlipPick struct {
	PickID     string `json:"pickId"`
	GameID     string `json:"gameId,omitempty"`
	Selection  string `json:"selection,omitempty"`
	Confidence int    `json:"confidence"`
	UpdatedAt  int64  `json:"updatedAt"` // unix ms of the last edit on the device
}

// PickChange is one atomic pick-level edit inside a sync request
type PickChange struct {
	PickID    string `json:"pickId"`
	Action    string `json:"action"`
	Timestamp int64  `json:"timestamp"` // unix ms
}

// SlipSyncRequest is the payload of a bet_slip_sync message
type SlipSyncRequest struct {
	UserID     string       `json:"userId"`
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName,omitempty"`
	Changes    []PickChange `json:"changes"`
	Slip       []SlipPick   `json:"slip"`
	Timestamp  int64        `json:"timestamp"` // unix ms, device clock
	Version    int          `json:"version"`
}

// SlipSyncAck is the payload of bet_slip_sync_confirmation
type SlipSyncAck struct {
	DeviceID      string `json:"deviceId"`
	SyncTimestamp int64  `json:"syncTimestamp"` // unix ms, server clock
	Status        string `json:"status"`
}

// SlipSyncBroadcast is the rebroadcast of an accepted sync to the user's
// other devices. FromDevice lets a receiver distinguish a remote apply
// from an echo of its own write.
type SlipSyncBroadcast struct {
	UserID     string       `json:"userId"`
	DeviceID   string       `json:"deviceId"`
	DeviceName string       `json:"deviceName,omitempty"`
	Changes    []PickChange `json:"changes"`
	Slip       []SlipPick   `json:"slip"`
	Timestamp  int64        `json:"timestamp"`
	Version    int          `json:"version"`
	FromDevice bool         `json:"fromDevice"`
}

var ErrInvalidSync = errors.New("invalid bet_slip_sync payload")

// Validate checks the request shape. A failing request must not mutate
// any reconciler state.
func (r SlipSyncRequest) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing userId", ErrInvalidSync)
	}
	if r.DeviceID == "" {
		return fmt.Errorf("%w: missing deviceId", ErrInvalidSync)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: timestamp must be positive", ErrInvalidSync)
	}
	for i, c := range r.Changes {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: changes[%d]: %v", ErrInvalidSync, i, err)
		}
	}
	for i, p := range r.Slip {
		if p.PickID == "" {
			return fmt.Errorf("%w: slip[%d]: missing pickId", ErrInvalidSync, i)
		}
	}
	return nil
}

// Validate checks one pick-level edit
func (c PickChange) Validate() error {
	if c.PickID == "" {
		return errors.New("missing pickId")
	}
	switch c.Action {
	case ChangeActionAdd, ChangeActionUpdate, ChangeActionRemove:
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	if c.Timestamp <= 0 {
		return errors.New("timestamp must be positive")
	}
	return nil
}
