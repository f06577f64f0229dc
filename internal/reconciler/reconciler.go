// Package reconciler keeps each user's bet slip consistent across that
// user's connected devices. It accepts incremental change sets, records
// them in a bounded history, detects cross-device edit conflicts, and
// rebroadcasts accepted changes to the user's other devices.
package reconciler

import (
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/live-sync/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/live-sync/internal/ring"
	"github.com/XavierBriggs/fortuna/services/live-sync/pkg/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultHistoryCapacity bounds the per-user change and conflict buffers
const DefaultHistoryCapacity = 500

// ResolutionLastWriteWins is the only resolution policy applied: the
// conflict is recorded for observability, both writes stand, and readers
// resolve by the most recent edit timestamp.
const ResolutionLastWriteWins = "most-recent-timestamp-wins"

// Sender is the view of a device's connection the reconciler needs
type Sender interface {
	ID() string
	TrySend(msg models.ServerMessage) bool
}

// Device is one endpoint of a user. It goes stale (sender nil) when its
// connection closes, so history stays attributable; only Reap removes it.
type Device struct {
	DeviceID     string
	Name         string
	FirstSeen    time.Time
	LastActivity time.Time

	sender Sender
}

// Connected reports whether the device currently has an open connection.
// Liveness is computed from the connection handle, never stored as a flag.
func (d *Device) Connected() bool { return d.sender != nil }

// ChangeRecord is one accepted sync submission from a device
type ChangeRecord struct {
	DeviceID        string
	Changes         []models.PickChange
	Slip            []models.SlipPick
	ClientTimestamp int64
	Sequence        uint64
	ReceivedAt      time.Time
}

// ConflictRecord is a detected overlapping edit between two devices
type ConflictRecord struct {
	ConflictID string
	DeviceA    string
	DeviceB    string
	PickIDs    []string
	DetectedAt time.Time
	Resolution string
}

// userState is everything the reconciler tracks for one user. Its mutex
// serializes that user's syncs; users never contend with each other.
type userState struct {
	mu        sync.Mutex
	devices   map[string]*Device
	sequence  uint64
	history   *ring.Buffer[ChangeRecord]
	conflicts *ring.Buffer[ConflictRecord]
}

// Reconciler is the per-user device registry and sync history
type Reconciler struct {
	mu       sync.Mutex
	users    map[string]*userState
	capacity int

	clock   clockwork.Clock
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// New creates a reconciler with the given history capacity per user
func New(capacity int, clock clockwork.Clock, m *metrics.Metrics, log zerolog.Logger) *Reconciler {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Reconciler{
		users:    make(map[string]*userState),
		capacity: capacity,
		clock:    clock,
		metrics:  m,
		log:      log.With().Str("component", "reconciler").Logger(),
	}
}

// Sync processes one bet_slip_sync submission from a device. Malformed
// input is rejected without mutating any state. An accepted submission is
// appended to the user's history, checked against the previous record for
// a cross-device conflict, rebroadcast to the user's other connected
// devices, and acknowledged with the server-observed timestamp.
func (r *Reconciler) Sync(sender Sender, req models.SlipSyncRequest) (models.SlipSyncAck, error) {
	if err := req.Validate(); err != nil {
		r.metrics.SyncRequests.WithLabelValues("rejected").Inc()
		return models.SlipSyncAck{}, err
	}

	now := r.clock.Now()
	u := r.user(req.UserID)

	u.mu.Lock()
	r.refreshDevice(u, req, sender, now)

	u.sequence++
	rec := ChangeRecord{
		DeviceID:        req.DeviceID,
		Changes:         req.Changes,
		Slip:            req.Slip,
		ClientTimestamp: req.Timestamp,
		Sequence:        u.sequence,
		ReceivedAt:      now,
	}

	if prev, ok := u.history.Last(); ok {
		r.detectConflict(req.UserID, u, prev, rec, now)
	}
	u.history.Push(rec)

	peers := r.connectedPeers(u, req.DeviceID)
	u.mu.Unlock()

	r.fanOut(req, peers, now)

	r.metrics.SyncRequests.WithLabelValues("accepted").Inc()
	return models.SlipSyncAck{
		DeviceID:      req.DeviceID,
		SyncTimestamp: now.UnixMilli(),
		Status:        "ok",
	}, nil
}

// Disconnect marks a device stale. Historical records survive; the device
// entry itself stays until an explicit Reap.
func (r *Reconciler) Disconnect(userID, deviceID string) {
	u, ok := r.lookup(userID)
	if !ok {
		return
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if d, ok := u.devices[deviceID]; ok {
		d.sender = nil
		d.LastActivity = r.clock.Now()
		r.log.Info().Str("user_id", userID).Str("device_id", deviceID).Msg("device went stale")
	}
}

// Reap removes a user's stale devices and returns how many were removed.
// History and conflict records are untouched; attribution is by device id.
func (r *Reconciler) Reap(userID string) int {
	u, ok := r.lookup(userID)
	if !ok {
		return 0
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	reaped := 0
	for id, d := range u.devices {
		if !d.Connected() {
			delete(u.devices, id)
			reaped++
		}
	}
	return reaped
}

// History returns a user's change records, oldest first
func (r *Reconciler) History(userID string) []ChangeRecord {
	u, ok := r.lookup(userID)
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.history.Items()
}

// Conflicts returns a user's conflict records, oldest first
func (r *Reconciler) Conflicts(userID string) []ConflictRecord {
	u, ok := r.lookup(userID)
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conflicts.Items()
}

// Devices returns copies of a user's device entries
func (r *Reconciler) Devices(userID string) []Device {
	u, ok := r.lookup(userID)
	if !ok {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	out := make([]Device, 0, len(u.devices))
	for _, d := range u.devices {
		out = append(out, *d)
	}
	return out
}

// CurrentSlip computes the user's canonical slip by merging the slips of
// every record in history, most recent edit winning per pick.
func (r *Reconciler) CurrentSlip(userID string) []models.SlipPick {
	u, ok := r.lookup(userID)
	if !ok {
		return nil
	}
	u.mu.Lock()
	records := u.history.Items()
	u.mu.Unlock()

	slips := make([][]models.SlipPick, 0, len(records))
	for _, rec := range records {
		slips = append(slips, rec.Slip)
	}
	return MergeSlips(slips...)
}

func (r *Reconciler) user(userID string) *userState {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		u = &userState{
			devices:   make(map[string]*Device),
			history:   ring.New[ChangeRecord](r.capacity),
			conflicts: ring.New[ConflictRecord](r.capacity),
		}
		r.users[userID] = u
	}
	return u
}

func (r *Reconciler) lookup(userID string) (*userState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	return u, ok
}

// refreshDevice creates or updates the device entry; caller holds u.mu.
func (r *Reconciler) refreshDevice(u *userState, req models.SlipSyncRequest, sender Sender, now time.Time) {
	d, ok := u.devices[req.DeviceID]
	if !ok {
		d = &Device{DeviceID: req.DeviceID, FirstSeen: now}
		u.devices[req.DeviceID] = d
		r.log.Info().
			Str("user_id", req.UserID).
			Str("device_id", req.DeviceID).
			Str("device_name", req.DeviceName).
			Msg("device registered")
	}
	if req.DeviceName != "" {
		d.Name = req.DeviceName
	}
	d.sender = sender
	d.LastActivity = now
}

// detectConflict compares the new record's pick-id set against the
// immediately preceding record. Overlap from a different device yields a
// conflict record; both writes still stand. Caller holds u.mu.
func (r *Reconciler) detectConflict(userID string, u *userState, prev, next ChangeRecord, now time.Time) {
	if prev.DeviceID == next.DeviceID {
		return
	}

	overlap := intersectPickIDs(prev.Changes, next.Changes)
	if len(overlap) == 0 {
		return
	}

	u.conflicts.Push(ConflictRecord{
		ConflictID: uuid.New().String(),
		DeviceA:    prev.DeviceID,
		DeviceB:    next.DeviceID,
		PickIDs:    overlap,
		DetectedAt: now,
		Resolution: ResolutionLastWriteWins,
	})

	r.metrics.ConflictsDetected.Inc()
	r.log.Warn().
		Str("user_id", userID).
		Str("device_a", prev.DeviceID).
		Str("device_b", next.DeviceID).
		Strs("pick_ids", overlap).
		Msg("cross-device edit conflict recorded")
}

// connectedPeers snapshots the senders of every other connected device;
// caller holds u.mu.
func (r *Reconciler) connectedPeers(u *userState, originDeviceID string) []Sender {
	var peers []Sender
	for id, d := range u.devices {
		if id != originDeviceID && d.Connected() {
			peers = append(peers, d.sender)
		}
	}
	return peers
}

// fanOut rebroadcasts an accepted sync to peer devices. Delivery is
// best-effort per peer; the originating device never receives its own echo.
func (r *Reconciler) fanOut(req models.SlipSyncRequest, peers []Sender, now time.Time) {
	if len(peers) == 0 {
		return
	}

	msg := models.ServerMessage{
		Type: models.MessageTypeBetSlipSync,
		Payload: models.SlipSyncBroadcast{
			UserID:     req.UserID,
			DeviceID:   req.DeviceID,
			DeviceName: req.DeviceName,
			Changes:    req.Changes,
			Slip:       req.Slip,
			Timestamp:  req.Timestamp,
			Version:    req.Version,
			FromDevice: true,
		},
		Timestamp: now,
	}

	for _, peer := range peers {
		if !peer.TrySend(msg) {
			r.log.Warn().
				Str("user_id", req.UserID).
				Str("peer_id", peer.ID()).
				Msg("peer device buffer full, sync rebroadcast dropped")
		}
	}
}

// intersectPickIDs returns the pick ids touched by both change sets
func intersectPickIDs(a, b []models.PickChange) []string {
	inA := make(map[string]bool, len(a))
	for _, c := range a {
		inA[c.PickID] = true
	}

	var overlap []string
	seen := make(map[string]bool)
	for _, c := range b {
		if inA[c.PickID] && !seen[c.PickID] {
			overlap = append(overlap, c.PickID)
			seen[c.PickID] = true
		}
	}
	return overlap
}
